// Package memstore is an in-process contracts.MetricStore. Transactions
// are serialized and applied copy-on-write, so a failed transaction leaves
// no trace.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/energia/backend/internal/contracts"
)

// Store keeps metric rows in memory
type Store struct {
	mu     sync.Mutex
	rows   map[int64]contracts.Metric
	nextID int64
	now    func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		rows:   make(map[int64]contracts.Metric),
		nextID: 1,
		now:    time.Now,
	}
}

// Seed stores rows with their given IDs (assigning one when zero)
func (s *Store) Seed(rows ...contracts.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range rows {
		if m.ID == 0 {
			m.ID = s.nextID
		}
		if m.ID >= s.nextID {
			s.nextID = m.ID + 1
		}
		if m.Unidad == "" {
			m.Unidad = contracts.DefaultUnit
		}
		m.Fecha = contracts.Day(m.Fecha)
		s.rows[m.ID] = m
	}
}

// Snapshot returns every row ordered by id
func (s *Store) Snapshot() []contracts.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.rows)
}

// Get returns one row by id
func (s *Store) Get(id int64) (contracts.Metric, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	return m, ok
}

// Insert appends rows with fresh ids
func (s *Store) Insert(ctx context.Context, rows []contracts.Metric) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, m := range rows {
		m.ID = s.nextID
		s.nextID++
		m.Fecha = contracts.Day(m.Fecha)
		if m.Unidad == "" {
			m.Unidad = contracts.DefaultUnit
		}
		if m.FechaActualizacion.IsZero() {
			m.FechaActualizacion = now
		}
		s.rows[m.ID] = m
	}
	return int64(len(rows)), nil
}

// Query applies the read-side filter
func (s *Store) Query(ctx context.Context, f contracts.Filter) ([]contracts.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []contracts.Metric
	for _, m := range sorted(s.rows) {
		if f.Metrica != "" && m.Metrica != f.Metrica {
			continue
		}
		if f.Entidad != "" && m.Entidad != f.Entidad {
			continue
		}
		if f.Recurso != "" && m.Recurso != f.Recurso {
			continue
		}
		if !f.From.IsZero() && m.Fecha.Before(contracts.Day(f.From)) {
			continue
		}
		if !f.To.IsZero() && m.Fecha.After(contracts.Day(f.To)) {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Fecha.Equal(out[j].Fecha) {
			return out[i].Fecha.Before(out[j].Fecha)
		}
		if out[i].Recurso != out[j].Recurso {
			return out[i].Recurso < out[j].Recurso
		}
		return out[i].ID < out[j].ID
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// LatestDate returns the newest fecha for metrica/entidad
func (s *Store) LatestDate(ctx context.Context, metrica, entidad string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest time.Time
	found := false
	for _, m := range s.rows {
		if m.Metrica != metrica || m.Entidad != entidad {
			continue
		}
		if !found || m.Fecha.After(latest) {
			latest = m.Fecha
			found = true
		}
	}
	return latest, found, nil
}

// Count returns the number of rows
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

// WithTx runs fn against a private copy and publishes it on success
func (s *Store) WithTx(ctx context.Context, fn func(tx contracts.MetricTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := make(map[int64]contracts.Metric, len(s.rows))
	for id, m := range s.rows {
		work[id] = m
	}

	if err := fn(&tx{rows: work}); err != nil {
		return err
	}

	s.rows = work
	return nil
}

type tx struct {
	rows map[int64]contracts.Metric
}

func (t *tx) Find(ctx context.Context, sel contracts.Selector) ([]contracts.Metric, error) {
	var out []contracts.Metric
	for _, m := range sorted(t.rows) {
		if sel.Matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *tx) DuplicateGroups(ctx context.Context) ([]contracts.DuplicateGroup, error) {
	byKey := make(map[contracts.Key][]int64)
	for _, m := range sorted(t.rows) {
		byKey[m.Key()] = append(byKey[m.Key()], m.ID)
	}

	var groups []contracts.DuplicateGroup
	for k, ids := range byKey {
		if len(ids) > 1 {
			groups = append(groups, contracts.DuplicateGroup{Key: k, IDs: ids})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].IDs[0] < groups[j].IDs[0]
	})
	return groups, nil
}

func (t *tx) DeleteIDs(ctx context.Context, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := t.rows[id]; ok {
			delete(t.rows, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) SetRecurso(ctx context.Context, ids []int64, recurso string) (int64, error) {
	var n int64
	for _, id := range ids {
		m, ok := t.rows[id]
		if !ok {
			continue
		}
		m.Recurso = recurso
		t.rows[id] = m
		n++
	}
	return n, nil
}

func sorted(rows map[int64]contracts.Metric) []contracts.Metric {
	out := make([]contracts.Metric, 0, len(rows))
	for _, m := range rows {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
