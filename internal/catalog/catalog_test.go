package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/energia/backend/internal/cache"
	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/pkg/logger"
	"github.com/wonny/energia/backend/pkg/redis"
)

type memRepo struct {
	mu    sync.Mutex
	rows  map[string]map[string]contracts.Resource
	lists int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]map[string]contracts.Resource)}
}

func (r *memRepo) Upsert(_ context.Context, resources []contracts.Resource) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range resources {
		if r.rows[res.Catalogo] == nil {
			r.rows[res.Catalogo] = make(map[string]contracts.Resource)
		}
		r.rows[res.Catalogo][res.Codigo] = res
	}
	return int64(len(resources)), nil
}

func (r *memRepo) List(_ context.Context, catalogo string) ([]contracts.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	var out []contracts.Resource
	for _, res := range r.rows[catalogo] {
		out = append(out, res)
	}
	return out, nil
}

type fakeSource struct {
	calls    int
	listings map[string][]contracts.Resource
}

func (f *fakeSource) Listing(_ context.Context, name string) ([]contracts.Resource, error) {
	f.calls++
	res, ok := f.listings[name]
	if !ok {
		return nil, errors.New("503 service unavailable")
	}
	return res, nil
}

func recursos() []contracts.Resource {
	return []contracts.Resource{
		{Catalogo: ListadoRecursos, Codigo: "GVIO", Nombre: "GUAVIO", Tipo: "HIDRAULICA"},
		{Catalogo: ListadoRecursos, Codigo: "CHVR", Nombre: "CHIVOR", Tipo: "HIDRAULICA"},
		{Catalogo: ListadoRecursos, Codigo: "SLGP", Nombre: "EL PASO", Tipo: "SOLAR"},
	}
}

func newService(src *fakeSource, repo *memRepo) *Service {
	provider := func(context.Context) (Source, error) { return src, nil }
	shared := redis.NewCache(redis.Disabled(), "energia")
	return NewService(provider, repo, cache.New[[]contracts.Resource](time.Hour), shared, logger.Nop())
}

func TestRefresh_IsolatesFailingListing(t *testing.T) {
	src := &fakeSource{listings: map[string][]contracts.Resource{ListadoRecursos: recursos()}}
	repo := newMemRepo()
	svc := newService(src, repo)

	res, err := svc.Refresh(context.Background(), ListadoRecursos, ListadoEmbalses)
	require.Error(t, err)
	assert.EqualValues(t, 3, res.Upserted[ListadoRecursos])
	assert.Contains(t, res.Failed, ListadoEmbalses)

	stored, _ := repo.List(context.Background(), ListadoRecursos)
	assert.Len(t, stored, 3)
}

func TestCodes_FiltersByTipoAndCaches(t *testing.T) {
	src := &fakeSource{listings: map[string][]contracts.Resource{ListadoRecursos: recursos()}}
	repo := newMemRepo()
	svc := newService(src, repo)

	codes, err := svc.Codes(context.Background(), "hidraulica")
	require.NoError(t, err)
	assert.Equal(t, []string{"CHVR", "GVIO"}, codes)
	assert.Equal(t, 1, src.calls, "empty table falls through to XM once")

	codes, err = svc.Codes(context.Background(), "SOLAR")
	require.NoError(t, err)
	assert.Equal(t, []string{"SLGP"}, codes)
	assert.Equal(t, 1, src.calls, "second read is served from cache")
}

func TestResources_PrefersStoredTable(t *testing.T) {
	src := &fakeSource{}
	repo := newMemRepo()
	_, _ = repo.Upsert(context.Background(), recursos())
	svc := newService(src, repo)

	got, err := svc.Resources(context.Background(), ListadoRecursos)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Zero(t, src.calls)
}

func TestResources_UnavailableSource(t *testing.T) {
	repo := newMemRepo()
	provider := func(context.Context) (Source, error) { return nil, errors.New("xm disabled") }
	svc := NewService(provider, repo, cache.New[[]contracts.Resource](time.Hour), nil, logger.Nop())

	_, err := svc.Resources(context.Background(), ListadoRios)
	assert.ErrorContains(t, err, "source unavailable")

	_, err = svc.Refresh(context.Background())
	assert.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	src := &fakeSource{listings: map[string][]contracts.Resource{ListadoRecursos: recursos()}}
	repo := newMemRepo()
	svc := newService(src, repo)

	_, err := svc.Resources(context.Background(), ListadoRecursos)
	require.NoError(t, err)
	listsBefore := repo.lists

	svc.Invalidate(context.Background(), ListadoRecursos)
	_, err = svc.Resources(context.Background(), ListadoRecursos)
	require.NoError(t, err)
	assert.Greater(t, repo.lists, listsBefore)
}
