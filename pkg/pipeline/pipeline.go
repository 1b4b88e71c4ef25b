// Package pipeline runs a layout document through the placement engine.
//
// This package implements the load → place → snapshot flow shared by the
// CLI and the HTTP API, so that both report identical placements and share
// one caching scheme.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Place(ctx, doc, pipeline.Options{Compact: true})
//	if err != nil {
//	    return err
//	}
//	fmt.Print(result.Placement.Dump)
//
// Every top-level placement is recorded as a [Frame] so that callers can
// replay how the grid evolved item by item.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanegrid/pkg/cache"
	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/errors"
	"github.com/matzehuels/lanegrid/pkg/grid"
	lgio "github.com/matzehuels/lanegrid/pkg/io"
)

// =============================================================================
// Default Values
// =============================================================================

// DefaultMaxDisplacements bounds the displacement steps of one placement.
const DefaultMaxDisplacements = grid.DefaultMaxDisplacements

// MaxItems bounds the number of items a single document may place.
const MaxItems = 10000

// =============================================================================
// Options
// =============================================================================

// Options configures a placement run. It supports JSON for API requests.
type Options struct {
	// Config is applied over the document's own configuration.
	Config *config.Partial `json:"config,omitempty"`

	// Compact shrinks the grid to its occupied extents after placement.
	Compact bool `json:"compact,omitempty"`

	// MaxDisplacements bounds the displacement steps of one placement.
	MaxDisplacements int `json:"max_displacements,omitempty"`

	// Refresh skips the cache lookup but still stores the result.
	Refresh bool `json:"refresh,omitempty"`

	// Logger receives debug output from the engine.
	Logger *log.Logger `json:"-"`
}

// ValidateAndSetDefaults checks the options and fills in defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.MaxDisplacements < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max_displacements must be non-negative, got %d", o.MaxDisplacements)
	}
	if o.MaxDisplacements == 0 {
		o.MaxDisplacements = DefaultMaxDisplacements
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return nil
}

// PlacementKeyOpts returns cache key options for this run.
func (o *Options) PlacementKeyOpts() cache.PlacementKeyOpts {
	return cache.PlacementKeyOpts{
		Compact:          o.Compact,
		MaxDisplacements: o.MaxDisplacements,
	}
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a placement run.
type Result struct {
	// DocumentHash is the content hash of the document and config override.
	DocumentHash string `json:"document_hash"`

	// Placement is the final grid state.
	Placement lgio.Placement `json:"placement"`

	// Frames records the grid after every top-level placement, in order.
	Frames []Frame `json:"frames"`

	Stats     Stats     `json:"stats"`
	CacheInfo CacheInfo `json:"-"`
}

// Frame is the grid state right after one item was placed.
type Frame struct {
	Step  int             `json:"step"`
	Item  lgio.PlacedItem `json:"item"`
	SizeX int             `json:"size_x"`
	SizeY int             `json:"size_y"`
	Dump  string          `json:"dump"`
}

// Stats contains run statistics.
type Stats struct {
	Items int `json:"items"`

	// Moved counts items whose final position differs from the document.
	Moved     int           `json:"moved"`
	PlaceTime time.Duration `json:"place_time"`
}

// CacheInfo tracks whether the result came from the cache.
type CacheInfo struct {
	PlaceHit bool
}
