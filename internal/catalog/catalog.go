// Package catalog maintains the XM resource listings that drive which
// resources ingestion requests.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/energia/backend/internal/cache"
	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/pkg/logger"
	"github.com/wonny/energia/backend/pkg/redis"
)

// Listing names served by the XM /lists endpoint
const (
	ListadoRecursos = "ListadoRecursos"
	ListadoEmbalses = "ListadoEmbalses"
	ListadoRios     = "ListadoRios"
	ListadoAgentes  = "ListadoAgentes"
)

// DefaultListings are refreshed by the catalog job
var DefaultListings = []string{ListadoRecursos, ListadoEmbalses, ListadoRios, ListadoAgentes}

// Source fetches a listing upstream (*xm.Client)
type Source interface {
	Listing(ctx context.Context, name string) ([]contracts.Resource, error)
}

// SourceProvider resolves the upstream lazily; an error means unavailable
type SourceProvider func(ctx context.Context) (Source, error)

// Service reads listings through two cache tiers: the in-process TTL
// cache, then redis, then the catalogs table, then XM itself
// ⭐ SSOT: resource listings are read through this service only
type Service struct {
	source SourceProvider
	repo   contracts.CatalogRepository
	local  *cache.TTLCache[[]contracts.Resource]
	shared *redis.Cache
	logger *logger.Logger
}

// NewService creates a catalog service. shared may be nil.
func NewService(source SourceProvider, repo contracts.CatalogRepository, local *cache.TTLCache[[]contracts.Resource], shared *redis.Cache, log *logger.Logger) *Service {
	return &Service{
		source: source,
		repo:   repo,
		local:  local,
		shared: shared,
		logger: log.Module("catalog"),
	}
}

// RefreshResult counts upserted resources per listing
type RefreshResult struct {
	Upserted map[string]int64 `json:"upserted"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Refresh pulls every listing from XM and upserts it. A failing listing
// does not stop the others; the error joins every failure.
func (s *Service) Refresh(ctx context.Context, listings ...string) (*RefreshResult, error) {
	if len(listings) == 0 {
		listings = DefaultListings
	}
	result := &RefreshResult{Upserted: make(map[string]int64), Failed: make(map[string]string)}

	src, err := s.source(ctx)
	if err != nil {
		return result, fmt.Errorf("catalog refresh: %w", err)
	}

	var errs []error
	for _, name := range listings {
		n, err := s.refreshOne(ctx, src, name)
		if err != nil {
			s.logger.WithError(err).WithField("listing", name).Warn("Listing refresh failed")
			result.Failed[name] = err.Error()
			errs = append(errs, err)
			continue
		}
		result.Upserted[name] = n
	}

	s.logger.WithFields(map[string]interface{}{
		"listings": len(listings),
		"failed":   len(result.Failed),
	}).Info("Catalog refresh completed")

	return result, errors.Join(errs...)
}

func (s *Service) refreshOne(ctx context.Context, src Source, name string) (int64, error) {
	resources, err := src.Listing(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", name, err)
	}
	if len(resources) == 0 {
		return 0, fmt.Errorf("listing %s is empty", name)
	}

	n, err := s.repo.Upsert(ctx, resources)
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", name, err)
	}

	s.local.Set(name, resources)
	s.setShared(ctx, name, resources)
	return n, nil
}

// Resources returns one listing, loading it on a cache miss
func (s *Service) Resources(ctx context.Context, listing string) ([]contracts.Resource, error) {
	return s.local.GetOrLoad(ctx, listing, func(ctx context.Context) ([]contracts.Resource, error) {
		return s.load(ctx, listing)
	})
}

func (s *Service) load(ctx context.Context, listing string) ([]contracts.Resource, error) {
	if s.shared != nil {
		var cached []contracts.Resource
		found, err := s.shared.Get(ctx, redis.ListingKey(listing), &cached)
		if err != nil {
			s.logger.WithError(err).Debug("Shared listing cache unavailable")
		}
		if found && len(cached) > 0 {
			return cached, nil
		}
	}

	stored, err := s.repo.List(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", listing, err)
	}
	if len(stored) > 0 {
		s.setShared(ctx, listing, stored)
		return stored, nil
	}

	// empty table: first run, go upstream once
	src, err := s.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s not stored and source unavailable: %w", listing, err)
	}
	if _, err := s.refreshOne(ctx, src, listing); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, listing)
}

func (s *Service) setShared(ctx context.Context, listing string, resources []contracts.Resource) {
	if s.shared == nil {
		return
	}
	if err := s.shared.Set(ctx, redis.ListingKey(listing), resources, s.local.TTL()); err != nil {
		s.logger.WithError(err).Debug("Shared listing cache write failed")
	}
}

// Codes returns the ListadoRecursos codes of one tipo (HIDRAULICA,
// TERMICA, SOLAR, EOLICA, ...), sorted
func (s *Service) Codes(ctx context.Context, tipo string) ([]string, error) {
	resources, err := s.Resources(ctx, ListadoRecursos)
	if err != nil {
		return nil, err
	}

	var codes []string
	for _, r := range resources {
		if strings.EqualFold(r.Tipo, tipo) {
			codes = append(codes, r.Codigo)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// Invalidate drops a listing from both cache tiers
func (s *Service) Invalidate(ctx context.Context, listing string) {
	s.local.Delete(listing)
	if s.shared != nil {
		_ = s.shared.Delete(ctx, redis.ListingKey(listing))
	}
}
