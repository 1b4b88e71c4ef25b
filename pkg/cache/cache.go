// Package cache provides storage for computed placement results.
//
// The pipeline caches the rendered result of placing a layout document so
// that re-running the same document with the same options is a lookup. Keys
// are derived by a [Keyer] from a content hash of the document and the
// options that influence the result.
//
// Backends:
//   - [FileCache]: entries as JSON files under a directory, for the CLI
//   - [RedisCache]: entries in Redis, for servers sharing a cache
//   - [NullCache]: stores nothing, for --no-cache and tests
package cache

import (
	"context"
	"fmt"
	"time"
)

// PlacementTTL is how long placement results are kept.
const PlacementTTL = 7 * 24 * time.Hour

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value for key and whether it was found. A missing or
	// expired entry is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A non-positive ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// PlacementKeyOpts are the options that change a placement result.
type PlacementKeyOpts struct {
	Compact          bool `json:"compact"`
	MaxDisplacements int  `json:"max_displacements"`
}

// Keyer derives cache keys.
type Keyer interface {
	// PlacementKey returns the key for the placement of the document whose
	// content hash is documentHash.
	PlacementKey(documentHash string, opts PlacementKeyOpts) string
}

// DefaultKeyer is the unscoped Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// PlacementKey implements Keyer.
func (DefaultKeyer) PlacementKey(documentHash string, opts PlacementKeyOpts) string {
	return hashKey(fmt.Sprintf("placement:%s", documentHash), opts)
}
