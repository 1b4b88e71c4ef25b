package grid

import (
	"strconv"
	"strings"
)

// Occupancy returns the registration index of the occupant of every cell,
// row-major ([y][x]), with -1 for empty cells.
func (e *Engine) Occupancy() [][]int {
	rows := make([][]int, e.store.SizeY())
	for y := range rows {
		row := make([]int, e.store.SizeX())
		for x := range row {
			row[x] = e.indexAt(x, y)
		}
		rows[y] = row
	}
	return rows
}

// String renders the grid one row per line: every cell is the registration
// index of its occupant, or "-" when empty, followed by a single space.
//
//	0 0 -
//	0 0 -
//	- - -
func (e *Engine) String() string {
	var b strings.Builder
	for y := 0; y < e.store.SizeY(); y++ {
		for x := 0; x < e.store.SizeX(); x++ {
			if i := e.indexAt(x, y); i >= 0 {
				b.WriteString(strconv.Itoa(i))
			} else {
				b.WriteByte('-')
			}
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (e *Engine) indexAt(x, y int) int {
	occ := e.store.At(x, y)
	if occ == nil {
		return -1
	}
	return e.registry.IndexOf(occ)
}
