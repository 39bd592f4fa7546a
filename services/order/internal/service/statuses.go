package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Skotchmaster/storefront/pkg/cache"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

const statusCacheKey = "order_status"

type StatusService struct {
	store StatusStore
	cache Cache
	ids   map[models.StatusCode]int64
	ttl   time.Duration
}

// NewStatusService builds the status catalog reader. c may be nil.
func NewStatusService(store StatusStore, c Cache, ids map[models.StatusCode]int64) *StatusService {
	if ids == nil {
		ids = models.DefaultStatusIDs()
	}
	return &StatusService{store: store, cache: c, ids: ids, ttl: 5 * time.Minute}
}

func (s *StatusService) Catalog(ctx context.Context) (models.StatusCatalog, error) {
	l := logging.FromContext(ctx)

	var rows []models.OrderStatus
	if s.cache != nil {
		err := s.cache.Get(ctx, statusCacheKey, &rows)
		if err == nil && len(rows) > 0 {
			return models.NewStatusCatalog(rows, s.ids), nil
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			l.Warn("status_cache_error", "error", err)
		}
	}

	rows, err := s.store.ListStatuses(ctx)
	if err != nil {
		return models.NewStatusCatalog(nil, s.ids), upstream(err, "load order statuses")
	}

	if s.cache != nil && len(rows) > 0 {
		if err := s.cache.Set(ctx, statusCacheKey, rows, s.ttl); err != nil {
			l.Warn("status_cache_error", "error", err)
		}
	}
	return models.NewStatusCatalog(rows, s.ids), nil
}

// CatalogOrFallback never fails. When the table cannot be read the catalog
// is synthesized from the configured STATUS_IDS mapping.
func (s *StatusService) CatalogOrFallback(ctx context.Context) models.StatusCatalog {
	cat, err := s.Catalog(ctx)
	if err == nil {
		return cat
	}
	logging.FromContext(ctx).Warn("status_catalog_fallback", "error", err)

	rows := make([]models.OrderStatus, 0, len(s.ids))
	for code, id := range s.ids {
		rows = append(rows, models.OrderStatus{ID: id, Nama: string(code), Kode: string(code)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return models.NewStatusCatalog(rows, s.ids)
}
