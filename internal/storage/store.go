package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront/pkg/logger"
)

// Keys of the persistent local store. Each holds one whole JSON blob.
const (
	KeyCartItems = "cartItems"
	KeyBasket    = "basket"
	KeyProducts  = "products"
)

// ErrKeyRequired is returned when an empty key is passed to a Store.
var ErrKeyRequired = errors.New("storage key is required")

// Store is a string-keyed blob store. Writes replace the whole value and the
// last writer wins.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// LoadJSON decodes the blob under key into dest and reports whether it did.
// A missing blob, a backend read error or an unparseable blob all report
// false and the caller treats them as empty state. Failures are logged.
func LoadJSON(ctx context.Context, store Store, logg *logger.Logger, key string, dest any) bool {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		if logg != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()}), "local store read failed, treating as empty")
		}
		return false
	}
	if !found || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		if logg != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()}), "local store blob unparseable, treating as empty")
		}
		return false
	}
	return true
}

// SaveJSON encodes value and writes it under key.
func SaveJSON(ctx context.Context, store Store, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
