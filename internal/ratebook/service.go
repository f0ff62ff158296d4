package ratebook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/towdesk/backoffice-api/internal/common"
)

// RateItem is one standard charge in the company rate book. Locked items
// carry a fixed rate dispatchers cannot edit on the job.
type RateItem struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Rate        float64   `json:"rate"`
	Locked      bool      `json:"locked"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrNotFound is returned for unknown rate items.
var ErrNotFound = errors.New("ratebook: not found")

// Store is the persistence surface for rate items.
type Store interface {
	ListActive(ctx context.Context) ([]RateItem, error)
	Get(ctx context.Context, id string) (RateItem, error)
	Create(ctx context.Context, item RateItem) (RateItem, error)
	Update(ctx context.Context, item RateItem) (RateItem, error)
	Deactivate(ctx context.Context, id string) error
}

// Service serves the rate book with a Redis read-through cache.
type Service struct {
	Store  Store
	Cache  *Cache
	Logger zerolog.Logger
}

// List returns active rate items, from cache when warm.
func (s *Service) List(ctx context.Context) ([]RateItem, error) {
	var cached []RateItem
	hit, err := s.Cache.GetList(ctx, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("ratebook cache read")
	}
	if hit {
		return cached, nil
	}
	items, err := s.Store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rate items: %w", err)
	}
	if err := s.Cache.SetList(ctx, items); err != nil {
		s.Logger.Warn().Err(err).Msg("ratebook cache write")
	}
	return items, nil
}

// Get fetches one rate item by id.
func (s *Service) Get(ctx context.Context, id string) (RateItem, error) {
	item, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RateItem{}, common.NotFound("rate item not found")
		}
		return RateItem{}, err
	}
	return item, nil
}

// Create adds a rate item and invalidates the listing cache.
func (s *Service) Create(ctx context.Context, description string, rate float64, locked bool) (RateItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return RateItem{}, common.BadRequest("VALIDATION_ERROR", "description is required")
	}
	if rate < 0 {
		return RateItem{}, common.BadRequest("VALIDATION_ERROR", "rate must not be negative")
	}
	created, err := s.Store.Create(ctx, RateItem{
		Description: description,
		Rate:        rate,
		Locked:      locked,
		Active:      true,
	})
	if err != nil {
		return RateItem{}, fmt.Errorf("create rate item: %w", err)
	}
	s.invalidate(ctx)
	return created, nil
}

// Update replaces a rate item's fields and invalidates the listing cache.
func (s *Service) Update(ctx context.Context, id, description string, rate float64, locked bool) (RateItem, error) {
	existing, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RateItem{}, common.NotFound("rate item not found")
		}
		return RateItem{}, err
	}
	existing.Description = strings.TrimSpace(description)
	existing.Rate = rate
	existing.Locked = locked
	if existing.Description == "" {
		return RateItem{}, common.BadRequest("VALIDATION_ERROR", "description is required")
	}
	updated, err := s.Store.Update(ctx, existing)
	if err != nil {
		return RateItem{}, fmt.Errorf("update rate item: %w", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// Deactivate retires a rate item from the active listing.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.Store.Deactivate(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return common.NotFound("rate item not found")
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Logger.Warn().Err(err).Msg("ratebook cache invalidate")
	}
}
