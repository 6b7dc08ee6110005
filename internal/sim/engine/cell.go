package engine

import "ecosim/internal/sim/catalog"

// Cell state flags. Cleared on ordinary survival, set for one generation
// by the rule that produced the cell.
const (
	FlagNewborn uint8 = 1 << 0
	FlagMoved   uint8 = 1 << 1
)

// Cell is one grid slot. The zero value is an empty slot.
type Cell struct {
	Type   catalog.TypeID
	Energy int16
	Age    uint16
	Flags  uint8
}

func (c Cell) Empty() bool { return c.Type == catalog.Empty }

// CellAt pairs a cell with its absolute grid position for exports and seeding.
type CellAt struct {
	X, Y int
	Cell Cell
}

// Region is a half-open cell rectangle [X0,X1)x[Y0,Y1).
type Region struct {
	X0, Y0, X1, Y1 int
}

func (r Region) clamp(w, h int) Region {
	if r.X0 < 0 {
		r.X0 = 0
	}
	if r.Y0 < 0 {
		r.Y0 = 0
	}
	if r.X1 > w {
		r.X1 = w
	}
	if r.Y1 > h {
		r.Y1 = h
	}
	if r.X1 < r.X0 {
		r.X1 = r.X0
	}
	if r.Y1 < r.Y0 {
		r.Y1 = r.Y0
	}
	return r
}
