// Package grid places rectangular items on a two-dimensional lane grid.
//
// A lane grid is a table of integer columns (x lanes) and rows (y lanes).
// Items occupy a rectangle of cells and never share a cell: when an item is
// placed on cells that other items hold, those items are pushed directly
// below it, and whatever they land on is pushed in turn.
//
// # Overview
//
// The [Engine] is the entry point. It owns a [Store] (the occupancy table),
// a [Registry] (the ordered set of admitted items) and a [Notifier] (the
// change stream):
//
//	eng, err := grid.New(nil, nil)
//	if err != nil {
//	    return err
//	}
//	a, _ := eng.AddItem(grid.ItemSpec{W: 2, H: 2})
//	b, _ := eng.AddItem(grid.ItemSpec{W: 1, H: 1}) // pushes a to y=1
//	fmt.Print(eng)
//
// # Bounds
//
// The resolved [config.Config] sets minimum and maximum lanes per axis.
// Minimums size a new grid. Maximums bound placement: an item extending past
// the maximum is shifted back by the excess, which may leave it at a negative
// coordinate when it is larger than the bound. Extents only grow, except
// through [Engine.Compact].
//
// # Change Events
//
// Every top-level placement (AddItem, UpdateItem and each item replayed by
// Reload) publishes the placed item once to every subscriber. Items moved as
// a side effect are not published.
//
// # Failure
//
// A displacement chain that does not settle within the configured number of
// steps aborts with UNBOUNDED_DISPLACEMENT, and the engine returns to the
// state of its last successful mutation.
package grid
