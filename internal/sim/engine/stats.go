package engine

import "ecosim/internal/sim/catalog"

// StatsSnapshot summarizes one committed generation. Counts is indexed by
// TypeID; index 0 is the empty count. Immutable once produced.
type StatsSnapshot struct {
	Tick        uint64
	Counts      []int
	TotalEnergy int64
}

func (s StatsSnapshot) EmptyCount() int {
	if len(s.Counts) == 0 {
		return 0
	}
	return s.Counts[catalog.Empty]
}

func (s StatsSnapshot) Live() int {
	live := 0
	for id, n := range s.Counts {
		if catalog.TypeID(id) != catalog.Empty {
			live += n
		}
	}
	return live
}

func (s StatsSnapshot) Count(id catalog.TypeID) int {
	if int(id) >= len(s.Counts) {
		return 0
	}
	return s.Counts[id]
}

// StatsAggregator scans committed grids into snapshots and keeps a bounded
// ring of history, oldest evicted on overflow. It never mutates the grid.
type StatsAggregator struct {
	nTypes int
	cap    int
	snaps  []StatsSnapshot
	start  int
}

func NewStatsAggregator(nTypes, capacity int) *StatsAggregator {
	if capacity <= 0 {
		capacity = 1000
	}
	return &StatsAggregator{nTypes: nTypes, cap: capacity}
}

func (a *StatsAggregator) scan(g *Grid, tick uint64) StatsSnapshot {
	snap := StatsSnapshot{Tick: tick, Counts: make([]int, a.nTypes)}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			c := g.at(x, y)
			snap.Counts[c.Type]++
			snap.TotalEnergy += int64(c.Energy)
		}
	}
	return snap
}

// Observe scans the committed grid and appends the snapshot to the ring.
func (a *StatsAggregator) Observe(g *Grid, tick uint64) StatsSnapshot {
	snap := a.scan(g, tick)
	if len(a.snaps) < a.cap {
		a.snaps = append(a.snaps, snap)
	} else {
		a.snaps[a.start] = snap
		a.start = (a.start + 1) % a.cap
	}
	return snap
}

// Latest returns the newest snapshot, if any generation has been observed.
func (a *StatsAggregator) Latest() (StatsSnapshot, bool) {
	if len(a.snaps) == 0 {
		return StatsSnapshot{}, false
	}
	i := (a.start + len(a.snaps) - 1) % len(a.snaps)
	return a.snaps[i], true
}

// History returns the retained snapshots oldest-first.
func (a *StatsAggregator) History() []StatsSnapshot {
	out := make([]StatsSnapshot, 0, len(a.snaps))
	for i := 0; i < len(a.snaps); i++ {
		out = append(out, a.snaps[(a.start+i)%len(a.snaps)])
	}
	return out
}
