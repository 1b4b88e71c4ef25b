package pipeline

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanegrid/pkg/cache"
	lgio "github.com/matzehuels/lanegrid/pkg/io"
	"github.com/matzehuels/lanegrid/pkg/observability"
)

const keyTypePlacement = "placement"

// Runner encapsulates placement runs with caching.
// Both CLI and API use it so caching behaves the same everywhere.
//
// The Runner holds no results, only its cache, keyer and logger. Multiple
// goroutines can safely use the same Runner.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// PlaceWithCacheInfo places doc, serving the result from the cache when the
// same document was placed with the same options before.
func (r *Runner) PlaceWithCacheInfo(ctx context.Context, doc *lgio.Document, opts Options) (*Result, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	if doc == nil {
		_, err := Place(ctx, doc, opts)
		return nil, false, err
	}

	hash, err := DocumentHash(doc, opts)
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.PlacementKey(hash, opts.PlacementKeyOpts())
	hooks := observability.Cache()

	if !opts.Refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.Logger.Warn("cache read failed", "error", err)
		}
		if err == nil && hit {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				hooks.OnCacheHit(ctx, keyTypePlacement)
				cached.CacheInfo.PlaceHit = true
				r.Logger.Debug("placement cache hit", "hash", hash[:12])
				return &cached, true, nil
			}
			// undecodable entry: fall through and overwrite it
		}
		hooks.OnCacheMiss(ctx, keyTypePlacement)
	}

	res, err := Place(ctx, doc, opts)
	if err != nil {
		return nil, false, err
	}
	r.Logger.Info("placed layout",
		"items", res.Stats.Items,
		"moved", res.Stats.Moved,
		"size", []int{res.Placement.SizeX, res.Placement.SizeY},
		"duration", res.Stats.PlaceTime)

	if data, err := json.Marshal(res); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.PlacementTTL); err != nil {
			r.Logger.Warn("cache write failed", "error", err)
		} else {
			hooks.OnCacheSet(ctx, keyTypePlacement, len(data))
		}
	}
	return res, false, nil
}

// Place is a convenience wrapper that calls PlaceWithCacheInfo and discards
// the cache hit info.
func (r *Runner) Place(ctx context.Context, doc *lgio.Document, opts Options) (*Result, error) {
	res, _, err := r.PlaceWithCacheInfo(ctx, doc, opts)
	return res, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
