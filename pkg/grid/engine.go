package grid

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/errors"
	"github.com/matzehuels/lanegrid/pkg/observability"
)

// DefaultMaxDisplacements bounds the displacement steps a single placement
// may take before it is abandoned with UNBOUNDED_DISPLACEMENT.
const DefaultMaxDisplacements = 1024

// Engine places items on a lane grid and resolves overlaps by pushing
// conflicting items directly below the item that displaced them.
//
// Every public mutation is all-or-nothing: when it returns an error, item
// coordinates, occupancy and extents are those of the last successful
// mutation.
//
// The zero value is not usable; use [New]. Engine is not safe for concurrent
// use without external synchronization.
type Engine struct {
	cfg      config.Config
	defaults config.Config
	store    *Store
	registry *Registry
	notifier Notifier

	logger           *log.Logger
	hooks            observability.EngineHooks
	maxDisplacements int
	compactOnReload  bool

	// last committed state, restored when a mutation fails
	committed      map[*Item]rect
	committedSizeX int
	committedSizeY int
}

type rect struct{ x, y, w, h int }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug output. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator sets the generator used to identify admitted items.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.registry = NewRegistry(g) }
}

// WithMaxDisplacements bounds the displacement steps of one placement.
// Non-positive values keep the default.
func WithMaxDisplacements(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDisplacements = n
		}
	}
}

// WithCompactOnReload makes every successful Reload finish with Compact.
func WithCompactOnReload() Option {
	return func(e *Engine) { e.compactOnReload = true }
}

// WithDefaults replaces the defaults that partial configurations resolve
// against. The default is [config.Default].
func WithDefaults(c config.Config) Option {
	return func(e *Engine) { e.defaults = c.Clone() }
}

// WithHooks sets the hooks notified of engine events. By default the
// globally registered [observability.Engine] hooks are used.
func WithHooks(h observability.EngineHooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// New builds an engine with a grid sized to the configured minimum lanes and
// adds each of items in order. See [Wrap] for the accepted item values.
//
// New fails with INVALID_CONFIG if the resolved configuration does not
// validate, and with the error of the first item that cannot be added.
func New(items []any, partial *config.Partial, opts ...Option) (*Engine, error) {
	e := &Engine{
		defaults:         config.Default(),
		registry:         NewRegistry(nil),
		logger:           log.New(io.Discard),
		maxDisplacements: DefaultMaxDisplacements,
	}
	for _, opt := range opts {
		opt(e)
	}

	cfg := config.Resolve(partial, e.defaults)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e.cfg = cfg
	e.store = NewStore(cfg.XLanes.Min, cfg.YLanes.Min)
	e.commit()

	for i, raw := range items {
		if _, err := e.AddItem(raw); err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "item %d", i)
		}
	}
	return e, nil
}

// =============================================================================
// Public Operations
// =============================================================================

// AddItem wraps raw into an Item, registers it and places it. Exactly one
// change event carrying the returned item is published.
//
// When placement fails, an *Item passed in gets back the coordinates it was
// passed with, and an identifier assigned by this call is released, so the
// item can be added again as if the call never happened.
func (e *Engine) AddItem(raw any) (*Item, error) {
	it, err := Wrap(raw)
	if err != nil {
		return nil, err
	}
	before, hadID := rect{it.X, it.Y, it.W, it.H}, it.id != ""
	if err := e.registry.Admit(it); err != nil {
		return nil, err
	}

	if err := e.placeTop(it); err != nil {
		e.registry.Remove(it)
		e.rollback()
		it.X, it.Y, it.W, it.H = before.x, before.y, before.w, before.h
		if !hadID {
			it.id = ""
		}
		return nil, err
	}
	e.commit()
	return it, nil
}

// RemoveItem unregisters it and frees its cells. No other item moves and no
// event is published.
func (e *Engine) RemoveItem(it *Item) error {
	if !e.registry.Contains(it) {
		return notRegistered(it)
	}
	e.registry.Remove(it)
	e.store.Clear(it)
	e.commit()

	e.logger.Debug("removed item", "id", it.ID())
	e.engineHooks().OnRemove(it.ID())
	return nil
}

// UpdateItem re-places it at its current coordinates after the caller has
// changed them. Exactly one change event is published.
func (e *Engine) UpdateItem(it *Item) error {
	if !e.registry.Contains(it) {
		return notRegistered(it)
	}
	if err := it.validate(); err != nil {
		return err
	}

	e.store.Clear(it)
	if err := e.placeTop(it); err != nil {
		e.rollback()
		return err
	}
	e.commit()
	return nil
}

// UpdateConfig resolves partial against the engine defaults and reloads.
// An invalid configuration is rejected and the previous one stays in force.
func (e *Engine) UpdateConfig(partial *config.Partial) error {
	cfg := config.Resolve(partial, e.defaults)
	if err := cfg.Validate(); err != nil {
		return err
	}

	prev := e.cfg
	e.cfg = cfg
	if err := e.Reload(); err != nil {
		e.cfg = prev
		return err
	}
	return nil
}

// Reload empties the grid and replays every registered item through
// placement in registration order. A later item replayed onto an earlier one
// displaces it, exactly as when it was added. Item coordinates are replayed
// as they are; items clamped under an older bound stay where they were
// clamped to.
//
// Extents are kept (and grown to the configured minimums). Reload compacts
// only when the engine was built with [WithCompactOnReload].
func (e *Engine) Reload() error {
	start := time.Now()
	items := e.registry.Items()

	e.store.Reset()
	e.store.EnsureSize(e.cfg.XLanes.Min, e.cfg.YLanes.Min)
	for _, it := range items {
		if err := e.placeTop(it); err != nil {
			e.rollback()
			e.engineHooks().OnReload(len(items), time.Since(start), err)
			return err
		}
	}
	if e.compactOnReload {
		e.compact()
	}
	e.commit()

	e.logger.Debug("reloaded grid", "items", len(items), "size_x", e.store.SizeX(), "size_y", e.store.SizeY())
	e.engineHooks().OnReload(len(items), time.Since(start), nil)
	return nil
}

// Compact shrinks the extents to the smallest size that still holds every
// occupied cell, bounded below by the configured minimum lanes. It is the
// only operation that reduces SizeX or SizeY.
func (e *Engine) Compact() {
	e.compact()
	e.commit()
}

func (e *Engine) compact() {
	e.store.Compact(e.cfg.XLanes.Min, e.cfg.YLanes.Min)
	e.engineHooks().OnCompact(e.store.SizeX(), e.store.SizeY())
}

// Subscribe returns a subscription to the change stream. See [Notifier].
func (e *Engine) Subscribe(buffer int) *Subscription {
	return e.notifier.Subscribe(buffer)
}

// =============================================================================
// Accessors
// =============================================================================

// SizeX returns the current number of columns.
func (e *Engine) SizeX() int { return e.store.SizeX() }

// SizeY returns the current number of rows.
func (e *Engine) SizeY() int { return e.store.SizeY() }

// Items returns the registered items in registration order.
func (e *Engine) Items() []*Item { return e.registry.Items() }

// Item looks up a registered item by identifier.
func (e *Engine) Item(id string) (*Item, bool) { return e.registry.Get(id) }

// IndexOf returns the registration index of it, or -1 if it is not
// registered.
func (e *Engine) IndexOf(it *Item) int { return e.registry.IndexOf(it) }

// Config returns a copy of the resolved configuration.
func (e *Engine) Config() config.Config { return e.cfg.Clone() }

// At returns the occupant of cell (x, y), or nil.
func (e *Engine) At(x, y int) *Item { return e.store.At(x, y) }

// =============================================================================
// Placement
// =============================================================================

// placeTop places a top-level item, runs gravity and publishes it.
func (e *Engine) placeTop(it *Item) error {
	start := time.Now()
	steps, err := e.place(it)
	e.engineHooks().OnPlace(it.ID(), steps, time.Since(start), err)
	if err != nil {
		return err
	}
	e.applyGravity(e.cfg.Gravity)
	e.notifier.Publish(it)
	return nil
}

// move is a pending displacement: item must be re-placed directly below
// displacer.
type move struct {
	item      *Item
	displacer *Item
}

// place clamps it into bounds, claims its cells and re-places every item it
// overlapped. Displacement runs depth-first from an explicit stack, in the
// order conflicts were detected, and reads the displacer's position when the
// move is taken. It returns the number of displacement steps.
func (e *Engine) place(it *Item) (int, error) {
	steps := 0
	stack := []move{{item: it}}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if m.displacer != nil {
			if steps >= e.maxDisplacements {
				return steps, errors.Wrap(errors.ErrCodeUnboundedDisplacement,
					&errors.DisplacementError{ItemID: it.ID(), Steps: steps},
					"displacement chain exceeded %d steps", e.maxDisplacements)
			}
			steps++
			m.item.Y = m.displacer.MaxY()
			e.logger.Debug("displacing item", "id", m.item.ID(), "by", m.displacer.ID(), "y", m.item.Y)
		}

		e.clamp(m.item)
		conflicts := e.store.Conflicts(m.item)
		e.store.Mark(m.item)
		if len(conflicts) == 0 {
			continue
		}
		e.store.Clear(conflicts...)
		for i := len(conflicts) - 1; i >= 0; i-- {
			stack = append(stack, move{item: conflicts[i], displacer: m.item})
		}
	}
	return steps, nil
}

// clamp shifts it left and up by however far it extends past the maximum
// lanes. The result may be negative; it is not corrected.
func (e *Engine) clamp(it *Item) {
	if over := it.MaxX() - e.cfg.XLanes.Max; over > 0 {
		it.X -= over
	}
	if over := it.MaxY() - e.cfg.YLanes.Max; over > 0 {
		it.Y -= over
	}
}

// applyGravity decomposes a compound direction and applies each part.
// A single direction leaves the grid as it is.
func (e *Engine) applyGravity(direction string) {
	if len(direction) > 1 {
		for _, d := range direction {
			e.applyGravity(string(d))
		}
		return
	}
}

// =============================================================================
// Commit / Rollback
// =============================================================================

// commit records the current item geometry and extents as the state to
// return to if a later mutation fails.
func (e *Engine) commit() {
	items := e.registry.Items()
	e.committed = make(map[*Item]rect, len(items))
	for _, it := range items {
		e.committed[it] = rect{it.X, it.Y, it.W, it.H}
	}
	e.committedSizeX, e.committedSizeY = e.store.SizeX(), e.store.SizeY()
}

// rollback restores the committed geometry and rebuilds occupancy from it.
// Committed states are overlap-free, so marking in any order reproduces them.
func (e *Engine) rollback() {
	e.store = NewStore(e.committedSizeX, e.committedSizeY)
	for _, it := range e.registry.Items() {
		if r, ok := e.committed[it]; ok {
			it.X, it.Y, it.W, it.H = r.x, r.y, r.w, r.h
		}
		e.store.Mark(it)
	}
	e.logger.Debug("rolled back placement", "items", e.registry.Len())
}

func (e *Engine) engineHooks() observability.EngineHooks {
	if e.hooks != nil {
		return e.hooks
	}
	return observability.Engine()
}

func notRegistered(it *Item) error {
	if it == nil {
		return errors.New(errors.ErrCodeNotFound, "nil item")
	}
	return errors.New(errors.ErrCodeNotFound, "item %q is not registered", it.ID())
}
