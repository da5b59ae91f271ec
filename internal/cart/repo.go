package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront/internal/storage"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Repository persists local lists, one whole blob per namespace.
type Repository interface {
	Get(ctx context.Context, ns Namespace) []Line
	Set(ctx context.Context, ns Namespace, lines []Line) error
	Clear(ctx context.Context, ns Namespace) error
}

type repository struct {
	store storage.Store
	logg  *logger.Logger
}

// NewRepository binds a cart repository to the local store.
func NewRepository(store storage.Store, logg *logger.Logger) (Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("local store required")
	}
	return &repository{store: store, logg: logg}, nil
}

// Get never fails: unreadable or corrupt lists read as empty.
func (r *repository) Get(ctx context.Context, ns Namespace) []Line {
	var lines []Line
	if !storage.LoadJSON(ctx, r.store, r.logg, string(ns), &lines) || lines == nil {
		return []Line{}
	}
	return lines
}

func (r *repository) Set(ctx context.Context, ns Namespace, lines []Line) error {
	if lines == nil {
		lines = []Line{}
	}
	return storage.SaveJSON(ctx, r.store, string(ns), lines)
}

func (r *repository) Clear(ctx context.Context, ns Namespace) error {
	if err := r.store.Delete(ctx, string(ns)); err != nil {
		return fmt.Errorf("clear %s: %w", ns, err)
	}
	return nil
}
