package grid

// Store is the occupancy table of a lane grid: a column-major table of
// optional item references with extents (SizeX, SizeY).
//
// Cells hold non-owning references; the registry owns the items. Cells at
// negative coordinates are not addressable, so parts of an item that lie left
// of column 0 or above row 0 occupy nothing.
//
// The zero value is an empty 0×0 store. Store is not safe for concurrent use.
type Store struct {
	cells [][]*Item // cells[x][y]
	sizeX int
	sizeY int
}

// NewStore returns an empty store with the given extents.
func NewStore(x, y int) *Store {
	s := &Store{}
	s.EnsureSize(x, y)
	return s
}

// SizeX returns the number of addressable columns.
func (s *Store) SizeX() int { return s.sizeX }

// SizeY returns the number of addressable rows.
func (s *Store) SizeY() int { return s.sizeY }

// EnsureSize grows the table so that [0,x) × [0,y) is addressable.
// It never shrinks; new cells are empty.
func (s *Store) EnsureSize(x, y int) {
	if x > s.sizeX {
		for i := s.sizeX; i < x; i++ {
			s.cells = append(s.cells, make([]*Item, s.sizeY))
		}
		s.sizeX = x
	}
	if y > s.sizeY {
		for i := range s.cells {
			s.cells[i] = append(s.cells[i], make([]*Item, y-s.sizeY)...)
		}
		s.sizeY = y
	}
}

// At returns the occupant of (x, y), or nil for empty or unaddressable cells.
func (s *Store) At(x, y int) *Item {
	if x < 0 || y < 0 || x >= s.sizeX || y >= s.sizeY {
		return nil
	}
	return s.cells[x][y]
}

// Mark grows the table to the item's far corner and writes the item into
// every addressable cell of its rectangle, overwriting previous occupants.
func (s *Store) Mark(it *Item) {
	s.EnsureSize(it.MaxX(), it.MaxY())
	for x := max(it.X, 0); x < it.MaxX(); x++ {
		for y := max(it.Y, 0); y < it.MaxY(); y++ {
			s.cells[x][y] = it
		}
	}
}

// Clear empties every cell occupied by one of items. It scans the whole
// table rather than the items' rectangles, so it is correct even when an
// item's coordinates no longer match the cells it was marked on.
func (s *Store) Clear(items ...*Item) {
	if len(items) == 0 {
		return
	}
	set := make(map[*Item]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	for x := range s.cells {
		col := s.cells[x]
		for y, occ := range col {
			if occ == nil {
				continue
			}
			if _, ok := set[occ]; ok {
				col[y] = nil
			}
		}
	}
}

// Conflicts returns the distinct items, other than it, occupying any cell of
// its rectangle, in the order they are first seen scanning column by column
// and top to bottom within a column.
func (s *Store) Conflicts(it *Item) []*Item {
	var out []*Item
	seen := make(map[*Item]struct{})
	for x := max(it.X, 0); x < min(it.MaxX(), s.sizeX); x++ {
		for y := max(it.Y, 0); y < min(it.MaxY(), s.sizeY); y++ {
			occ := s.cells[x][y]
			if occ == nil || occ == it {
				continue
			}
			if _, dup := seen[occ]; dup {
				continue
			}
			seen[occ] = struct{}{}
			out = append(out, occ)
		}
	}
	return out
}

// Compact shrinks the table to the smallest extents that still contain every
// occupied cell, bounded below by minX and minY. If the bounds are larger
// than the current extents the table grows to them instead.
func (s *Store) Compact(minX, minY int) {
	usedX, usedY := 0, 0
	for x, col := range s.cells {
		for y := len(col) - 1; y >= 0; y-- {
			if col[y] != nil {
				usedX = x + 1
				usedY = max(usedY, y+1)
				break
			}
		}
	}

	width := max(usedX, minX)
	height := max(usedY, minY)
	if width < s.sizeX {
		s.cells = s.cells[:width:width]
		s.sizeX = width
	}
	if height < s.sizeY {
		for x := range s.cells {
			s.cells[x] = s.cells[x][:height:height]
		}
		s.sizeY = height
	}
	s.EnsureSize(width, height)
}

// Reset empties every cell and keeps the current extents.
func (s *Store) Reset() {
	for _, col := range s.cells {
		clear(col)
	}
}

// Occupied reports the number of non-empty cells.
func (s *Store) Occupied() int {
	n := 0
	for _, col := range s.cells {
		for _, occ := range col {
			if occ != nil {
				n++
			}
		}
	}
	return n
}
