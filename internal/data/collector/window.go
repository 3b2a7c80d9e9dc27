package collector

import (
	"fmt"
	"time"

	"github.com/wonny/energia/backend/internal/contracts"
)

// Mode selects how the date window of a spec is computed
type Mode string

const (
	// ModeIncremental resumes from the latest stored date (minus overlap)
	ModeIncremental Mode = "incremental"
	// ModeFull reloads the whole history_days of a spec
	ModeFull Mode = "full"
	// ModeRange uses an explicit [From, To]
	ModeRange Mode = "range"
)

// ParseMode parses a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeIncremental, ModeFull, ModeRange:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown ingestion mode %q", s)
	}
}

// Window is an inclusive civil-date interval
type Window struct {
	From time.Time
	To   time.Time
}

// Days returns the number of days covered
func (w Window) Days() int {
	return int(contracts.Day(w.To).Sub(contracts.Day(w.From)).Hours()/24) + 1
}

func (w Window) String() string {
	return w.From.Format(contracts.DateLayout) + ".." + w.To.Format(contracts.DateLayout)
}

// Split cuts the window into consecutive chunks of at most days days
func (w Window) Split(days int) []Window {
	from, to := contracts.Day(w.From), contracts.Day(w.To)
	if days <= 0 || to.Before(from) {
		return []Window{{From: from, To: to}}
	}

	var out []Window
	for start := from; !start.After(to); start = start.AddDate(0, 0, days) {
		end := start.AddDate(0, 0, days-1)
		if end.After(to) {
			end = to
		}
		out = append(out, Window{From: start, To: end})
	}
	return out
}
