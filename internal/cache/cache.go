// Package cache abstracts the external hash-keyed store shared between the
// period-max refresher (writer) and the period-max strategy (reader). The
// store is independently synchronized; no client-side locking is layered
// on top.
package cache

import (
	"context"

	"github.com/moznion/go-optional"
)

// Cache is a hash-map-like store.
type Cache interface {
	// HSet writes all fields of mapping under name in one batch.
	HSet(ctx context.Context, name string, mapping map[string]string) error
	// HGet reads one field. A missing field is None, not an error.
	HGet(ctx context.Context, name string, key string) (optional.Option[string], error)
}
