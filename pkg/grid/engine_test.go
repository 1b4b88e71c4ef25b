package grid

import (
	stderrors "errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/errors"
	"github.com/matzehuels/lanegrid/pkg/observability"
)

func mustEngine(t *testing.T, items []any, partial *config.Partial, opts ...Option) *Engine {
	t.Helper()
	e, err := New(items, partial, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func mustAdd(t *testing.T, e *Engine, raw any) *Item {
	t.Helper()
	it, err := e.AddItem(raw)
	if err != nil {
		t.Fatalf("AddItem(%v) error: %v", raw, err)
	}
	return it
}

func pos(it *Item) [4]int { return [4]int{it.X, it.Y, it.W, it.H} }

// assertConsistent checks that occupancy matches item geometry exactly: every
// addressable cell of each item holds that item and no cell holds anything
// else.
func assertConsistent(t *testing.T, e *Engine) {
	t.Helper()
	owned := 0
	for _, it := range e.Items() {
		for x := max(it.X, 0); x < it.MaxX(); x++ {
			for y := max(it.Y, 0); y < it.MaxY(); y++ {
				if got := e.At(x, y); got != it {
					t.Errorf("cell (%d,%d) = %v, want item %s", x, y, got, it.ID())
				}
				owned++
			}
		}
	}
	if occ := e.store.Occupied(); occ != owned {
		t.Errorf("occupied cells = %d, want %d", occ, owned)
	}
	items := e.Items()
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if items[i].Overlaps(items[j]) {
				t.Errorf("items %s %v and %s %v overlap",
					items[i].ID(), pos(items[i]), items[j].ID(), pos(items[j]))
			}
		}
	}
	cfg := e.Config()
	if e.SizeX() < cfg.XLanes.Min || e.SizeY() < cfg.YLanes.Min {
		t.Errorf("size %dx%d below minimum %dx%d", e.SizeX(), e.SizeY(), cfg.XLanes.Min, cfg.YLanes.Min)
	}
}

// =============================================================================
// Scenarios
// =============================================================================

func TestNewEngineIsEmpty(t *testing.T) {
	e := mustEngine(t, nil, nil)
	if e.SizeX() != 3 || e.SizeY() != 3 {
		t.Errorf("size = %dx%d, want 3x3", e.SizeX(), e.SizeY())
	}
	if got, want := e.String(), "- - - \n- - - \n- - - \n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if len(e.Items()) != 0 {
		t.Errorf("Items() = %v, want none", e.Items())
	}
}

func TestAddItemOccupiesRectangle(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, map[string]any{"x": 0, "y": 0, "w": 2, "h": 2})

	if got, want := e.String(), "0 0 - \n0 0 - \n- - - \n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if a.ID() == "" {
		t.Error("added item should have an id")
	}
	if e.SizeX() != 3 || e.SizeY() != 3 {
		t.Errorf("size = %dx%d, want 3x3", e.SizeX(), e.SizeY())
	}
}

func TestAddItemDisplacesBelow(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 2, H: 2})
	b := mustAdd(t, e, ItemSpec{W: 1, H: 1})

	if got, want := pos(a), [4]int{0, 1, 2, 2}; got != want {
		t.Errorf("first item = %v, want %v", got, want)
	}
	if got, want := pos(b), [4]int{0, 0, 1, 1}; got != want {
		t.Errorf("second item = %v, want %v", got, want)
	}
	if got, want := e.String(), "1 - - \n0 0 - \n0 0 - \n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	assertConsistent(t, e)
}

func TestAddItemClampLeavesNegative(t *testing.T) {
	e := mustEngine(t, nil, nil)
	it := mustAdd(t, e, map[string]any{"x": 5, "y": 0, "w": 10, "h": 1})

	// 5+10 exceeds 9 by 6; the shift is not corrected past zero
	if it.X != -1 {
		t.Errorf("X = %d, want -1", it.X)
	}
	if e.SizeX() != 9 {
		t.Errorf("SizeX() = %d, want 9", e.SizeX())
	}
	for x := 0; x < 9; x++ {
		if e.At(x, 0) != it {
			t.Errorf("cell (%d,0) should be held by the clamped item", x)
		}
	}
}

func TestReloadKeepsClampedCoordinates(t *testing.T) {
	e := mustEngine(t, nil, nil)
	clamped := mustAdd(t, e, ItemSpec{X: 5, W: 10, H: 1})

	if err := e.UpdateConfig(&config.Partial{XLanes: &config.PartialLanes{Max: config.Int(20)}}); err != nil {
		t.Fatalf("UpdateConfig() error: %v", err)
	}
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if clamped.X != -1 {
		t.Errorf("clamped X = %d after reload, want -1", clamped.X)
	}

	fresh := mustAdd(t, e, ItemSpec{X: 5, Y: 3, W: 10, H: 1})
	if fresh.X != 5 {
		t.Errorf("new item X = %d, want 5 under the relaxed bound", fresh.X)
	}
	assertConsistent(t, e)
}

// =============================================================================
// Operations
// =============================================================================

func TestNewPlacesItemsInOrder(t *testing.T) {
	e := mustEngine(t, []any{
		ItemSpec{W: 2, H: 1},
		ItemSpec{W: 1, H: 1},
		map[string]any{"x": 2, "w": 1, "h": 3},
	}, nil)

	items := e.Items()
	if len(items) != 3 {
		t.Fatalf("Items() has %d items, want 3", len(items))
	}
	want := [][4]int{{0, 1, 2, 1}, {0, 0, 1, 1}, {2, 0, 1, 3}}
	for i, it := range items {
		if pos(it) != want[i] {
			t.Errorf("item %d = %v, want %v", i, pos(it), want[i])
		}
		if it.ID() != []string{"1", "2", "3"}[i] {
			t.Errorf("item %d id = %q", i, it.ID())
		}
	}
	assertConsistent(t, e)
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name    string
		items   []any
		partial *config.Partial
		code    errors.Code
	}{
		{
			name:    "min above max",
			partial: &config.Partial{XLanes: &config.PartialLanes{Min: config.Int(10), Max: config.Int(5)}},
			code:    errors.ErrCodeInvalidConfig,
		},
		{
			name:    "unknown gravity",
			partial: &config.Partial{Gravity: config.String("up")},
			code:    errors.ErrCodeInvalidConfig,
		},
		{
			name:  "negative size",
			items: []any{ItemSpec{W: 1, H: 1}, ItemSpec{W: -1, H: 1}},
			code:  errors.ErrCodeInvalidItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.items, tt.partial)
			if !errors.Is(err, tt.code) {
				t.Errorf("New() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestNewUsesMinimumExtents(t *testing.T) {
	e := mustEngine(t, nil, &config.Partial{
		XLanes: &config.PartialLanes{Min: config.Int(6)},
		YLanes: &config.PartialLanes{Min: config.Int(1), Max: config.Int(4)},
	})
	if e.SizeX() != 6 || e.SizeY() != 1 {
		t.Errorf("size = %dx%d, want 6x1", e.SizeX(), e.SizeY())
	}
}

func TestRemoveItem(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 2, H: 1})
	b := mustAdd(t, e, ItemSpec{X: 2, W: 1, H: 2})
	c := mustAdd(t, e, ItemSpec{Y: 1, W: 1, H: 1})
	before := [][4]int{pos(a), pos(c)}

	if err := e.RemoveItem(b); err != nil {
		t.Fatalf("RemoveItem() error: %v", err)
	}
	if got := [][4]int{pos(a), pos(c)}; !cmp.Equal(got, before) {
		t.Errorf("other items moved: %v", cmp.Diff(before, got))
	}
	if e.At(2, 0) != nil || e.At(2, 1) != nil {
		t.Error("removed item's cells should be free")
	}
	if _, ok := e.Item(b.ID()); ok {
		t.Error("removed item should not be found by id")
	}
	if got, want := e.String(), "0 0 - \n1 - - \n- - - \n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	assertConsistent(t, e)
}

func TestRemoveItemNotRegistered(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 1, H: 1})
	_ = e.RemoveItem(a)

	for _, it := range []*Item{a, NewItem(0, 0, 1, 1, nil), nil} {
		if err := e.RemoveItem(it); !errors.Is(err, errors.ErrCodeNotFound) {
			t.Errorf("RemoveItem(%v) error = %v, want NOT_FOUND", it, err)
		}
	}
}

func TestUpdateItem(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 1, H: 1})
	b := mustAdd(t, e, ItemSpec{X: 1, W: 2, H: 1})

	// move a onto b; b is pushed below a
	a.X, a.W = 1, 1
	if err := e.UpdateItem(a); err != nil {
		t.Fatalf("UpdateItem() error: %v", err)
	}
	if got, want := pos(b), [4]int{1, 1, 2, 1}; got != want {
		t.Errorf("b = %v, want %v", got, want)
	}
	if e.At(0, 0) != nil {
		t.Error("a's old cell should be free")
	}
	if got, want := e.String(), "- 0 - \n- 1 1 \n- - - \n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	assertConsistent(t, e)
}

func TestUpdateItemErrors(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 1, H: 1})

	if err := e.UpdateItem(NewItem(0, 0, 1, 1, nil)); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("UpdateItem(unregistered) error = %v, want NOT_FOUND", err)
	}

	a.W = -3
	if err := e.UpdateItem(a); !errors.Is(err, errors.ErrCodeInvalidItem) {
		t.Errorf("UpdateItem(negative) error = %v, want INVALID_ITEM", err)
	}
	if e.At(0, 0) != a {
		t.Error("rejected update should leave occupancy alone")
	}

	a.W, a.X = 1, -2
	if err := e.UpdateItem(a); !errors.Is(err, errors.ErrCodeInvalidItem) {
		t.Errorf("UpdateItem(negative x) error = %v, want INVALID_ITEM", err)
	}
	if e.At(0, 0) != a {
		t.Error("rejected move should leave occupancy alone")
	}
}

func TestAddItemRejectsNegativePosition(t *testing.T) {
	e := mustEngine(t, nil, nil)
	for _, raw := range []any{
		ItemSpec{X: -3, W: 2, H: 1},
		ItemSpec{X: -3, W: 2, H: 1},
		NewItem(0, -1, 1, 1, nil),
	} {
		if _, err := e.AddItem(raw); !errors.Is(err, errors.ErrCodeInvalidItem) {
			t.Errorf("AddItem(%v) error = %v, want INVALID_ITEM", raw, err)
		}
	}
	if n := len(e.Items()); n != 0 {
		t.Errorf("Items() has %d items, want 0", n)
	}
	assertConsistent(t, e)
}

func TestAddItemRejectsRegistered(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 1, H: 1})
	if _, err := e.AddItem(a); !errors.Is(err, errors.ErrCodeInvalidItem) {
		t.Errorf("AddItem(registered) error = %v, want INVALID_ITEM", err)
	}
	if len(e.Items()) != 1 {
		t.Errorf("Items() has %d items, want 1", len(e.Items()))
	}
}

func TestAddItemGrowsExtents(t *testing.T) {
	e := mustEngine(t, nil, nil)
	mustAdd(t, e, ItemSpec{X: 4, Y: 6, W: 2, H: 2})
	if e.SizeX() != 6 || e.SizeY() != 8 {
		t.Errorf("size = %dx%d, want 6x8", e.SizeX(), e.SizeY())
	}
}

func TestChainedDisplacement(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 1, H: 1})
	b := mustAdd(t, e, ItemSpec{Y: 1, W: 1, H: 1})
	c := mustAdd(t, e, ItemSpec{Y: 2, W: 1, H: 1})

	// d covers a and b. a is re-placed first and pushes c; then b lands
	// below d on top of a, pushing a and c down once more.
	d := mustAdd(t, e, ItemSpec{W: 1, H: 2})

	want := map[*Item]int{d: 0, b: 2, a: 3, c: 4}
	for it, y := range want {
		if it.Y != y {
			t.Errorf("item %s Y = %d, want %d", it.ID(), it.Y, y)
		}
	}
	if e.SizeY() != 5 {
		t.Errorf("SizeY() = %d, want 5", e.SizeY())
	}
	assertConsistent(t, e)
}

func TestDisplacementCycleRollsBack(t *testing.T) {
	hooks := &recordingHooks{}
	e := mustEngine(t, nil,
		&config.Partial{YLanes: &config.PartialLanes{Min: config.Int(2), Max: config.Int(2)}},
		WithMaxDisplacements(64), WithHooks(hooks))
	a := mustAdd(t, e, ItemSpec{W: 1, H: 2})
	snapshot := e.String()

	sub := e.Subscribe(8)
	defer sub.Close()

	// b and a keep pushing each other back into the single column
	_, err := e.AddItem(ItemSpec{W: 1, H: 1})
	if !errors.Is(err, errors.ErrCodeUnboundedDisplacement) {
		t.Fatalf("AddItem() error = %v, want UNBOUNDED_DISPLACEMENT", err)
	}
	var de *errors.DisplacementError
	if !stderrors.As(err, &de) || de.Steps != 64 {
		t.Errorf("error = %v, want DisplacementError after 64 steps", err)
	}

	if got, want := pos(a), [4]int{0, 0, 1, 2}; got != want {
		t.Errorf("a = %v after rollback, want %v", got, want)
	}
	if len(e.Items()) != 1 {
		t.Errorf("Items() has %d items after failed add, want 1", len(e.Items()))
	}
	if got := e.String(); got != snapshot {
		t.Errorf("String() = %q after rollback, want %q", got, snapshot)
	}
	if len(sub.C) != 0 {
		t.Error("failed placement should not publish")
	}
	if hooks.placeErrs != 1 {
		t.Errorf("OnPlace errors = %d, want 1", hooks.placeErrs)
	}
	assertConsistent(t, e)
}

func TestAddItemFailureRestoresCallerItem(t *testing.T) {
	e := mustEngine(t, nil,
		&config.Partial{YLanes: &config.PartialLanes{Min: config.Int(2), Max: config.Int(2)}},
		WithMaxDisplacements(16))
	mustAdd(t, e, ItemSpec{W: 1, H: 2})

	// clamped to y=1, then caught in the same cycle as the add above
	it := NewItem(0, 5, 1, 1, "card")
	if _, err := e.AddItem(it); !errors.Is(err, errors.ErrCodeUnboundedDisplacement) {
		t.Fatalf("AddItem() error = %v, want UNBOUNDED_DISPLACEMENT", err)
	}
	if got, want := pos(it), [4]int{0, 5, 1, 1}; got != want {
		t.Errorf("item = %v after failed add, want %v", got, want)
	}
	if it.ID() != "" {
		t.Errorf("ID() = %q after failed add, want released", it.ID())
	}
	if e.IndexOf(it) != -1 {
		t.Error("item should not be registered")
	}
	assertConsistent(t, e)
}

func TestUpdateItemRollsBack(t *testing.T) {
	e := mustEngine(t, nil,
		&config.Partial{YLanes: &config.PartialLanes{Min: config.Int(2), Max: config.Int(2)}},
		WithMaxDisplacements(16))
	a := mustAdd(t, e, ItemSpec{W: 1, H: 2})
	b := mustAdd(t, e, ItemSpec{X: 1, W: 1, H: 1})

	b.X = 0
	if err := e.UpdateItem(b); !errors.Is(err, errors.ErrCodeUnboundedDisplacement) {
		t.Fatalf("UpdateItem() error = %v, want UNBOUNDED_DISPLACEMENT", err)
	}
	if got, want := pos(b), [4]int{1, 0, 1, 1}; got != want {
		t.Errorf("b = %v after rollback, want %v", got, want)
	}
	if got, want := pos(a), [4]int{0, 0, 1, 2}; got != want {
		t.Errorf("a = %v after rollback, want %v", got, want)
	}
	assertConsistent(t, e)
}

func TestUpdateConfig(t *testing.T) {
	e := mustEngine(t, nil, nil)
	mustAdd(t, e, ItemSpec{W: 2, H: 2})

	err := e.UpdateConfig(&config.Partial{
		XLanes:    &config.PartialLanes{Min: config.Int(5)},
		Namespace: []string{"ops"},
	})
	if err != nil {
		t.Fatalf("UpdateConfig() error: %v", err)
	}
	want := config.Config{
		Gravity:   "nw",
		XLanes:    config.Lanes{Min: 5, Max: 9},
		YLanes:    config.Lanes{Min: 3, Max: 9},
		Namespace: []string{"ops"},
	}
	if diff := cmp.Diff(want, e.Config()); diff != "" {
		t.Errorf("Config() mismatch (-want +got):\n%s", diff)
	}
	if e.SizeX() != 5 {
		t.Errorf("SizeX() = %d, want 5", e.SizeX())
	}
	assertConsistent(t, e)
}

func TestUpdateConfigResolvesAgainstDefaults(t *testing.T) {
	e := mustEngine(t, nil, &config.Partial{Gravity: config.String("se")})
	if err := e.UpdateConfig(&config.Partial{}); err != nil {
		t.Fatalf("UpdateConfig() error: %v", err)
	}
	if got := e.Config().Gravity; got != config.DefaultGravity {
		t.Errorf("Gravity = %q, want %q", got, config.DefaultGravity)
	}

	custom := config.Default()
	custom.YLanes.Max = 4
	e = mustEngine(t, nil, nil, WithDefaults(custom))
	if got := e.Config().YLanes.Max; got != 4 {
		t.Errorf("YLanes.Max = %d, want 4", got)
	}
}

func TestUpdateConfigInvalidKeepsPrevious(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 1, H: 1})
	before := e.Config()

	err := e.UpdateConfig(&config.Partial{YLanes: &config.PartialLanes{Min: config.Int(-1)}})
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("UpdateConfig() error = %v, want INVALID_CONFIG", err)
	}
	if diff := cmp.Diff(before, e.Config()); diff != "" {
		t.Errorf("Config() changed (-before +after):\n%s", diff)
	}
	if e.At(0, 0) != a {
		t.Error("grid should be untouched")
	}
}

func TestUpdateConfigRollsBackOnFailedReload(t *testing.T) {
	e := mustEngine(t, nil, nil, WithMaxDisplacements(32))
	a := mustAdd(t, e, ItemSpec{W: 1, H: 2})
	b := mustAdd(t, e, ItemSpec{Y: 2, W: 1, H: 1})
	before := e.Config()

	// squeezing the column to two rows makes a and b fight for it forever
	err := e.UpdateConfig(&config.Partial{YLanes: &config.PartialLanes{Min: config.Int(2), Max: config.Int(2)}})
	if !errors.Is(err, errors.ErrCodeUnboundedDisplacement) {
		t.Fatalf("UpdateConfig() error = %v, want UNBOUNDED_DISPLACEMENT", err)
	}
	if diff := cmp.Diff(before, e.Config()); diff != "" {
		t.Errorf("Config() changed (-before +after):\n%s", diff)
	}
	if pos(a) != [4]int{0, 0, 1, 2} || pos(b) != [4]int{0, 2, 1, 1} {
		t.Errorf("items = %v %v after rollback", pos(a), pos(b))
	}
	assertConsistent(t, e)
}

func TestReloadReplaysInRegistrationOrder(t *testing.T) {
	e := mustEngine(t, nil, nil)
	a := mustAdd(t, e, ItemSpec{W: 1, H: 1})
	b := mustAdd(t, e, ItemSpec{X: 1, W: 1, H: 1})

	// put b on a behind the engine's back, then reload
	b.X = 0
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if pos(b) != [4]int{0, 0, 1, 1} {
		t.Errorf("b = %v, want it to claim the origin", pos(b))
	}
	if pos(a) != [4]int{0, 1, 1, 1} {
		t.Errorf("a = %v, want it pushed below b", pos(a))
	}
	assertConsistent(t, e)
}

func TestReloadIdempotent(t *testing.T) {
	specs := []ItemSpec{
		{W: 2, H: 1},
		{X: 2, W: 1, H: 3},
		{Y: 1, W: 2, H: 2},
		{X: 3, Y: 4, W: 2, H: 1},
	}
	build := func() *Engine {
		e := mustEngine(t, nil, nil)
		for _, s := range specs {
			mustAdd(t, e, s)
		}
		return e
	}

	e := build()
	before := e.String()
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if got := e.String(); got != before {
		t.Errorf("Reload() changed occupancy:\n%s\nwant:\n%s", got, before)
	}
	if got := build().String(); got != e.String() {
		t.Errorf("reloaded grid differs from a fresh one:\n%s\nwant:\n%s", e.String(), got)
	}
}

func TestCompact(t *testing.T) {
	e := mustEngine(t, nil, nil)
	far := mustAdd(t, e, ItemSpec{X: 6, Y: 7, W: 2, H: 2})
	mustAdd(t, e, ItemSpec{W: 1, H: 1})
	if e.SizeX() != 8 || e.SizeY() != 9 {
		t.Fatalf("size = %dx%d, want 8x9", e.SizeX(), e.SizeY())
	}

	if err := e.RemoveItem(far); err != nil {
		t.Fatalf("RemoveItem() error: %v", err)
	}
	if e.SizeX() != 8 || e.SizeY() != 9 {
		t.Errorf("RemoveItem shrank the grid to %dx%d", e.SizeX(), e.SizeY())
	}

	e.Compact()
	if e.SizeX() != 3 || e.SizeY() != 3 {
		t.Errorf("size after Compact = %dx%d, want 3x3", e.SizeX(), e.SizeY())
	}
	assertConsistent(t, e)
}

func TestReloadCompactsWhenConfigured(t *testing.T) {
	e := mustEngine(t, nil, nil, WithCompactOnReload())
	far := mustAdd(t, e, ItemSpec{X: 4, Y: 4, W: 2, H: 2})
	_ = e.RemoveItem(far)

	if err := e.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if e.SizeX() != 3 || e.SizeY() != 3 {
		t.Errorf("size = %dx%d, want 3x3", e.SizeX(), e.SizeY())
	}

	plain := mustEngine(t, nil, nil)
	far = mustAdd(t, plain, ItemSpec{X: 4, Y: 4, W: 2, H: 2})
	_ = plain.RemoveItem(far)
	_ = plain.Reload()
	if plain.SizeX() != 6 || plain.SizeY() != 6 {
		t.Errorf("Reload without compaction resized to %dx%d, want 6x6", plain.SizeX(), plain.SizeY())
	}
}

func TestOccupancy(t *testing.T) {
	e := mustEngine(t, nil, nil)
	mustAdd(t, e, ItemSpec{W: 2, H: 1})
	mustAdd(t, e, ItemSpec{X: 2, Y: 1, W: 1, H: 2})

	want := [][]int{
		{0, 0, -1},
		{-1, -1, 1},
		{-1, -1, 1},
	}
	if diff := cmp.Diff(want, e.Occupancy()); diff != "" {
		t.Errorf("Occupancy() mismatch (-want +got):\n%s", diff)
	}
}

func TestGravityIsInert(t *testing.T) {
	for g := range config.ValidGravities {
		t.Run(g, func(t *testing.T) {
			e := mustEngine(t, nil, &config.Partial{Gravity: config.String(g)})
			it := mustAdd(t, e, ItemSpec{X: 2, Y: 2, W: 1, H: 1})
			if pos(it) != [4]int{2, 2, 1, 1} {
				t.Errorf("gravity %q moved the item to %v", g, pos(it))
			}
		})
	}
}

// =============================================================================
// Events and Hooks
// =============================================================================

func TestChangeEvents(t *testing.T) {
	e := mustEngine(t, nil, nil)
	sub := e.Subscribe(16)
	defer sub.Close()

	a := mustAdd(t, e, ItemSpec{W: 2, H: 2})
	b := mustAdd(t, e, ItemSpec{W: 1, H: 1}) // displaces a; only b is published
	if err := e.RemoveItem(b); err != nil {
		t.Fatal(err)
	}
	if err := e.UpdateItem(a); err != nil {
		t.Fatal(err)
	}
	if err := e.Reload(); err != nil {
		t.Fatal(err)
	}

	want := []*Item{a, b, a, a}
	if len(sub.C) != len(want) {
		t.Fatalf("got %d events, want %d", len(sub.C), len(want))
	}
	for i, w := range want {
		if got := <-sub.C; got != w {
			t.Errorf("event %d = %s, want %s", i, got.ID(), w.ID())
		}
	}
}

type recordingHooks struct {
	observability.NoopEngineHooks
	places    int
	placeErrs int
	displaced int
	removes   int
	reloads   int
	compacts  int
}

func (h *recordingHooks) OnPlace(_ string, displaced int, _ time.Duration, err error) {
	h.places++
	h.displaced += displaced
	if err != nil {
		h.placeErrs++
	}
}
func (h *recordingHooks) OnRemove(string)                    { h.removes++ }
func (h *recordingHooks) OnReload(int, time.Duration, error) { h.reloads++ }
func (h *recordingHooks) OnCompact(int, int)                 { h.compacts++ }

func TestEngineHooks(t *testing.T) {
	hooks := &recordingHooks{}
	e := mustEngine(t, nil, nil, WithHooks(hooks))

	mustAdd(t, e, ItemSpec{W: 2, H: 2})
	b := mustAdd(t, e, ItemSpec{W: 1, H: 1})
	_ = e.RemoveItem(b)
	_ = e.Reload()
	e.Compact()

	if hooks.places != 3 {
		t.Errorf("OnPlace calls = %d, want 3", hooks.places)
	}
	if hooks.displaced != 1 {
		t.Errorf("displaced = %d, want 1", hooks.displaced)
	}
	if hooks.removes != 1 || hooks.reloads != 1 || hooks.compacts != 1 {
		t.Errorf("removes/reloads/compacts = %d/%d/%d, want 1/1/1", hooks.removes, hooks.reloads, hooks.compacts)
	}
}

func TestEngineUsesGlobalHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetEngineHooks(hooks)
	defer observability.Reset()

	e := mustEngine(t, nil, nil)
	mustAdd(t, e, ItemSpec{W: 1, H: 1})
	if hooks.places != 1 {
		t.Errorf("OnPlace calls = %d, want 1", hooks.places)
	}
}

// =============================================================================
// Properties
// =============================================================================

func TestRandomPlacementsStayConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := mustEngine(t, nil, nil, WithMaxDisplacements(256))

	for i := 0; i < 200; i++ {
		items := e.Items()
		switch op := rng.Intn(10); {
		case op < 6 || len(items) == 0:
			_, err := e.AddItem(ItemSpec{
				X: rng.Intn(9),
				Y: rng.Intn(9),
				W: 1 + rng.Intn(3),
				H: 1 + rng.Intn(3),
			})
			if err != nil && !errors.Is(err, errors.ErrCodeUnboundedDisplacement) {
				t.Fatalf("step %d: AddItem() error: %v", i, err)
			}
		case op < 8:
			it := items[rng.Intn(len(items))]
			it.X, it.Y = rng.Intn(9), rng.Intn(9)
			if err := e.UpdateItem(it); err != nil && !errors.Is(err, errors.ErrCodeUnboundedDisplacement) {
				t.Fatalf("step %d: UpdateItem() error: %v", i, err)
			}
		default:
			if err := e.RemoveItem(items[rng.Intn(len(items))]); err != nil {
				t.Fatalf("step %d: RemoveItem() error: %v", i, err)
			}
		}

		assertConsistent(t, e)
		for _, it := range e.Items() {
			if it.X < 0 || it.Y < 0 || it.MaxX() > 9 || it.MaxY() > 9 {
				t.Fatalf("step %d: item %s %v outside [0,9)x[0,9)", i, it.ID(), pos(it))
			}
		}
		if t.Failed() {
			t.Fatalf("step %d: grid inconsistent:\n%s", i, e)
		}
	}
}
