package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/lanegrid/pkg/cache"
	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/errors"
	"github.com/matzehuels/lanegrid/pkg/grid"
	lgio "github.com/matzehuels/lanegrid/pkg/io"
)

// Place builds an engine from doc and adds its items in order, recording a
// frame after each. The document configuration is resolved over the
// defaults first and opts.Config is applied over the result.
//
// Place does not consult a cache; see [Runner.Place].
func Place(ctx context.Context, doc *lgio.Document, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "document is required")
	}
	if len(doc.Items) > MaxItems {
		return nil, errors.New(errors.ErrCodeInvalidInput, "too many items: %d (max %d)", len(doc.Items), MaxItems)
	}

	hash, err := DocumentHash(doc, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	eng, err := grid.New(nil, opts.Config,
		grid.WithDefaults(config.Resolve(doc.Config, config.Default())),
		grid.WithLogger(opts.Logger),
		grid.WithMaxDisplacements(opts.MaxDisplacements),
	)
	if err != nil {
		return nil, err
	}

	sub := eng.Subscribe(1)
	defer sub.Close()

	frames := make([]Frame, 0, len(doc.Items))
	for i, spec := range doc.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := eng.AddItem(spec); err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "item %d", i)
		}
		placed := <-sub.C
		frames = append(frames, Frame{
			Step:  i + 1,
			Item:  lgio.NewPlacedItem(placed, i),
			SizeX: eng.SizeX(),
			SizeY: eng.SizeY(),
			Dump:  eng.String(),
		})
	}
	if opts.Compact {
		eng.Compact()
	}

	res := &Result{
		DocumentHash: hash,
		Placement:    lgio.Snapshot(eng),
		Frames:       frames,
		Stats: Stats{
			Items:     len(doc.Items),
			PlaceTime: time.Since(start),
		},
	}
	for i, it := range res.Placement.Items {
		if it.X != doc.Items[i].X || it.Y != doc.Items[i].Y {
			res.Stats.Moved++
		}
	}
	return res, nil
}

// DocumentHash returns the content hash of doc together with the
// configuration override in opts.
func DocumentHash(doc *lgio.Document, opts Options) (string, error) {
	hash, err := cache.HashJSON(struct {
		Document *lgio.Document `json:"document"`
		Override *config.Partial `json:"override,omitempty"`
	}{doc, opts.Config})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "hash document")
	}
	return hash, nil
}
