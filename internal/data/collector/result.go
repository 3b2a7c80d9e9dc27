package collector

import (
	"time"
)

// Status is the terminal state of a run
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// PairResult is the outcome of one metric/resource pair
type PairResult struct {
	Metrica  string `json:"metrica"`
	Entidad  string `json:"entidad"`
	Recurso  string `json:"recurso,omitempty"`
	Window   string `json:"window"`
	Rows     int64  `json:"rows"`
	Skipped  int    `json:"skipped"`
	Rejected int    `json:"rejected"`
	Empty    bool   `json:"empty"`
	Error    string `json:"error,omitempty"`

	err error
}

// Failed reports whether the pair failed
func (p PairResult) Failed() bool {
	return p.err != nil
}

// Err returns the pair failure
func (p PairResult) Err() error {
	return p.err
}

// RunResult summarizes one ingestion run
type RunResult struct {
	RunID        string        `json:"run_id"`
	Mode         Mode          `json:"mode"`
	Status       Status        `json:"status"`
	Attempted    int           `json:"attempted"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Empty        int           `json:"empty"`
	RowsInserted int64         `json:"rows_inserted"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Pairs        []PairResult  `json:"pairs"`
}

// Failures returns the failed pairs
func (r *RunResult) Failures() []PairResult {
	var out []PairResult
	for _, p := range r.Pairs {
		if p.Failed() {
			out = append(out, p)
		}
	}
	return out
}

// tally fills the counters and the status from Pairs. Partial completion
// is a valid terminal state; only a run where every pair failed is failed.
func (r *RunResult) tally() {
	r.Attempted = len(r.Pairs)
	r.Succeeded, r.Failed, r.Empty, r.RowsInserted = 0, 0, 0, 0

	for _, p := range r.Pairs {
		switch {
		case p.Failed():
			r.Failed++
		default:
			r.Succeeded++
			if p.Empty {
				r.Empty++
			}
		}
		r.RowsInserted += p.Rows
	}

	switch {
	case r.Failed == 0:
		r.Status = StatusSuccess
	case r.Succeeded == 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartial
	}
}
