package grid

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/matzehuels/lanegrid/pkg/errors"
)

// Item is a rectangle on the lane grid with an opaque payload.
//
// X, Y, W and H are owned by the engine once the item is admitted. Callers
// that change them directly must call [Engine.UpdateItem] afterwards, or the
// grid occupancy no longer matches the item.
type Item struct {
	X, Y int // Top-left lane (column, row)
	W, H int // Size in lanes

	id      string
	payload any
}

// NewItem creates an unregistered item. The identifier is assigned when the
// item is admitted by an engine.
func NewItem(x, y, w, h int, payload any) *Item {
	return &Item{X: x, Y: y, W: w, H: h, payload: payload}
}

// ID returns the identifier assigned on admission, or "" before that.
func (it *Item) ID() string { return it.id }

// Payload returns the caller-supplied value the item was created from.
func (it *Item) Payload() any { return it.payload }

// MaxX returns the first column to the right of the item.
func (it *Item) MaxX() int { return it.X + it.W }

// MaxY returns the first row below the item.
func (it *Item) MaxY() int { return it.Y + it.H }

// Overlaps reports whether the rectangles of it and o share a cell.
// Empty rectangles overlap nothing.
func (it *Item) Overlaps(o *Item) bool {
	if it.W <= 0 || it.H <= 0 || o.W <= 0 || o.H <= 0 {
		return false
	}
	return it.X < o.MaxX() && o.X < it.MaxX() && it.Y < o.MaxY() && o.Y < it.MaxY()
}

// validate checks caller-supplied geometry. Negative coordinates are only
// ever produced by clamping against a maximum smaller than the item; a
// caller asking for one would get an item whose cells are not tracked.
func (it *Item) validate() error {
	if it.W < 0 || it.H < 0 {
		return errors.New(errors.ErrCodeInvalidItem, "item size must be non-negative (w=%d, h=%d)", it.W, it.H)
	}
	if it.X < 0 || it.Y < 0 {
		return errors.New(errors.ErrCodeInvalidItem, "item position must be non-negative (x=%d, y=%d)", it.X, it.Y)
	}
	return nil
}

// ItemSpec is the typed form of a raw item. Missing fields are zero.
type ItemSpec struct {
	X       int `json:"x" yaml:"x" mapstructure:"x"`
	Y       int `json:"y" yaml:"y" mapstructure:"y"`
	W       int `json:"w" yaml:"w" mapstructure:"w"`
	H       int `json:"h" yaml:"h" mapstructure:"h"`
	Payload any `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
}

// Wrap converts a raw value into an Item.
//
// Accepted inputs:
//   - *Item: returned unchanged
//   - ItemSpec or *ItemSpec: copied, with Payload carried over
//   - map[string]any: "x", "y", "w", "h" decoded (weakly typed, missing
//     keys are 0); the map itself becomes the payload
//   - nil: an empty item at the origin
//   - any other struct or map: decoded like a map; the value becomes the payload
//
// Wrap returns an INVALID_ITEM error when the value cannot be decoded or the
// resulting position or size is negative.
func Wrap(raw any) (*Item, error) {
	var it *Item
	switch v := raw.(type) {
	case *Item:
		if v == nil {
			return nil, errors.New(errors.ErrCodeInvalidItem, "nil item")
		}
		it = v
	case ItemSpec:
		it = NewItem(v.X, v.Y, v.W, v.H, v.Payload)
	case *ItemSpec:
		if v == nil {
			return nil, errors.New(errors.ErrCodeInvalidItem, "nil item spec")
		}
		it = NewItem(v.X, v.Y, v.W, v.H, v.Payload)
	case nil:
		it = NewItem(0, 0, 0, 0, nil)
	default:
		var geom struct {
			X, Y, W, H int
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &geom,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "build item decoder")
		}
		if err := dec.Decode(raw); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidItem, err, "decode item")
		}
		it = NewItem(geom.X, geom.Y, geom.W, geom.H, raw)
	}
	if err := it.validate(); err != nil {
		return nil, err
	}
	return it, nil
}

// =============================================================================
// Identity
// =============================================================================

// IDGenerator produces item identifiers. Identifiers must be unique for the
// lifetime of an engine; the registry skips any that are already taken.
type IDGenerator interface {
	NextID() string
}

// CounterIDs issues "1", "2", "3", ... It is the default generator and keeps
// tests reproducible.
type CounterIDs struct {
	n atomic.Uint64
}

// NewCounterIDs returns a counter starting at 1.
func NewCounterIDs() *CounterIDs { return &CounterIDs{} }

// NextID returns the next counter value.
func (c *CounterIDs) NextID() string {
	return strconv.FormatUint(c.n.Add(1), 10)
}

// UUIDIDs issues random version 4 UUIDs.
type UUIDIDs struct{}

// NewUUIDIDs returns a UUID generator.
func NewUUIDIDs() UUIDIDs { return UUIDIDs{} }

// NextID returns a new random UUID string.
func (UUIDIDs) NextID() string { return uuid.NewString() }
