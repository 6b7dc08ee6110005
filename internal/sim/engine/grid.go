package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

const DefaultChunkSize = 32

// chunk is a fixed square sub-grid and the unit of parallel dispatch.
// cur holds the committed generation, next the one being computed.
// Exactly one worker writes next during a tick; cur is read-only until commit.
type chunk struct {
	cur, next []Cell
	changed   bool
}

// ChunkCoord addresses a chunk within the grid's chunk matrix.
type ChunkCoord struct {
	CX, CY int
}

// Grid owns all cell storage as a matrix of double-buffered chunks.
// Dimensions are exact multiples of the chunk size.
type Grid struct {
	w, h   int
	cs     int
	cw, ch int
	wrap   bool
	chunks []chunk
}

func newGrid(w, h, cs int, wrap bool) (*Grid, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrBadDimensions
	}
	if cs <= 0 || w%cs != 0 || h%cs != 0 {
		return nil, ErrChunkIndivisible
	}
	g := &Grid{w: w, h: h, cs: cs, cw: w / cs, ch: h / cs, wrap: wrap}
	g.chunks = make([]chunk, g.cw*g.ch)
	for i := range g.chunks {
		g.chunks[i].cur = make([]Cell, cs*cs)
		g.chunks[i].next = make([]Cell, cs*cs)
	}
	return g, nil
}

func (g *Grid) Width() int       { return g.w }
func (g *Grid) Height() int      { return g.h }
func (g *Grid) ChunkSize() int   { return g.cs }
func (g *Grid) Wraparound() bool { return g.wrap }

func (g *Grid) chunkAt(cx, cy int) *chunk { return &g.chunks[cy*g.cw+cx] }

func (g *Grid) locate(x, y int) (*chunk, int) {
	ck := g.chunkAt(x/g.cs, y/g.cs)
	return ck, (y%g.cs)*g.cs + x%g.cs
}

// at reads a cell from the committed generation.
func (g *Grid) at(x, y int) Cell {
	ck, i := g.locate(x, y)
	return ck.cur[i]
}

// neighbor resolves (x+dx, y+dy) honoring the edge policy: with wraparound
// the coordinates wrap, otherwise out-of-bounds slots read as permanently
// empty. ok is false only for the out-of-bounds case.
func (g *Grid) neighbor(x, y, dx, dy int) (Cell, bool) {
	nx, ny := x+dx, y+dy
	if g.wrap {
		nx = mod(nx, g.w)
		ny = mod(ny, g.h)
	} else if nx < 0 || nx >= g.w || ny < 0 || ny >= g.h {
		return Cell{}, false
	}
	return g.at(nx, ny), true
}

// setNext writes into the in-progress generation and marks the chunk
// changed when the value differs from the committed one.
func (g *Grid) setNext(x, y int, c Cell) {
	ck, i := g.locate(x, y)
	ck.next[i] = c
	if ck.cur[i] != c {
		ck.changed = true
	}
}

// set writes directly into the committed generation. Seeding and restore
// only; never called while a tick is in flight.
func (g *Grid) set(x, y int, c Cell) {
	ck, i := g.locate(x, y)
	ck.cur[i] = c
}

// commit flips every chunk's buffers at once. Buffers are swapped, never
// reallocated.
func (g *Grid) commit() {
	for i := range g.chunks {
		ck := &g.chunks[i]
		ck.cur, ck.next = ck.next, ck.cur
	}
}

// changedChunks drains the per-chunk changed flags accumulated since the
// previous call. Consumed by external partial-redraw logic.
func (g *Grid) changedChunks() []ChunkCoord {
	var out []ChunkCoord
	for cy := 0; cy < g.ch; cy++ {
		for cx := 0; cx < g.cw; cx++ {
			ck := g.chunkAt(cx, cy)
			if ck.changed {
				out = append(out, ChunkCoord{CX: cx, CY: cy})
				ck.changed = false
			}
		}
	}
	return out
}

// snapshotRegion exports committed cells row-major within the clamped region.
func (g *Grid) snapshotRegion(r Region) []CellAt {
	r = r.clamp(g.w, g.h)
	out := make([]CellAt, 0, (r.X1-r.X0)*(r.Y1-r.Y0))
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			out = append(out, CellAt{X: x, Y: y, Cell: g.at(x, y)})
		}
	}
	return out
}

// digest hashes the committed generation. Two grids with identical committed
// cells produce identical digests regardless of chunk layout history.
func (g *Grid) digest(tick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], tick)
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(g.w))
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(g.h))
	h.Write(tmp[:])
	var cb [6]byte
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			c := g.at(x, y)
			cb[0] = byte(c.Type)
			binary.LittleEndian.PutUint16(cb[1:3], uint16(c.Energy))
			binary.LittleEndian.PutUint16(cb[3:5], c.Age)
			cb[5] = c.Flags
			h.Write(cb[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
