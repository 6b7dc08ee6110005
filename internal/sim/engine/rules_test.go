package engine

import (
	"testing"

	"ecosim/internal/sim/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.FromDefs([]catalog.Def{
		{ID: "EMPTY"},
		{ID: "ALGA", BaseEnergy: 4, ReproThreshold: 6, Mobility: "STATIC"},
		{ID: "HERB", BaseEnergy: 5, Diet: []string{"ALGA"}, ReproThreshold: 12, MaxLifespan: 40, Mobility: "STATIC"},
		{ID: "WOLF", BaseEnergy: 10, Diet: []string{"HERB"}, ReproThreshold: 20, MaxLifespan: 60, Mobility: "STATIC"},
		{ID: "FERN", BaseEnergy: 3, ReproThreshold: 0, Mobility: "STATIC"},
		{ID: "CRAB", BaseEnergy: 6, ReproThreshold: 999, Mobility: "ROAMER"},
		{ID: "GREEN", BaseEnergy: 6, ReproThreshold: 9, MaxLifespan: 80, DecayPermille: 2, Mobility: "STATIC"},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

func mustID(t *testing.T, cat *catalog.Catalog, name string) catalog.TypeID {
	t.Helper()
	id, ok := cat.Lookup(name)
	if !ok {
		t.Fatalf("type %s not in catalog", name)
	}
	return id
}

func newTestEngine(t *testing.T, cat *catalog.Catalog, w, h, cs int, wrap bool) *Engine {
	t.Helper()
	e, err := New(Config{Width: w, Height: h, ChunkSize: cs, Seed: 7, Wraparound: wrap, Workers: 1}, cat)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestPredatorConsumesAdjacentPrey(t *testing.T) {
	cat := testCatalog(t)
	wolf := mustID(t, cat, "WOLF")
	herb := mustID(t, cat, "HERB")

	e := newTestEngine(t, cat, 4, 4, 4, false)
	e.grid.set(1, 1, Cell{Type: wolf, Energy: 10})
	e.grid.set(2, 1, Cell{Type: herb, Energy: 5})

	if _, err := e.Step(); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	p := e.grid.at(1, 1)
	if p.Type != wolf || p.Energy != 15 {
		t.Fatalf("after tick 1 predator = %+v, want type %d energy 15", p, wolf)
	}
	if p.Age != 1 {
		t.Fatalf("after tick 1 predator age = %d, want 1", p.Age)
	}
	if got := e.grid.at(2, 1); !got.Empty() {
		t.Fatalf("after tick 1 prey slot = %+v, want empty", got)
	}

	if _, err := e.Step(); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	p = e.grid.at(1, 1)
	if p.Energy != 15 {
		t.Fatalf("after tick 2 predator energy = %d, want 15 (nothing left to eat)", p.Energy)
	}
	if p.Age != 2 {
		t.Fatalf("after tick 2 predator age = %d, want 2", p.Age)
	}
}

func TestStarvationBeatsReproduction(t *testing.T) {
	cat := testCatalog(t)
	fern := mustID(t, cat, "FERN")

	// Energy 0 with threshold 0 qualifies for both starvation and
	// reproduction; starvation is earlier in the priority order.
	e := newTestEngine(t, cat, 4, 4, 4, false)
	e.grid.set(1, 1, Cell{Type: fern, Energy: 0})

	snap, err := e.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !e.grid.at(1, 1).Empty() {
		t.Fatalf("starved cell survived: %+v", e.grid.at(1, 1))
	}
	if live := snap.Live(); live != 0 {
		t.Fatalf("offspring appeared from a starved parent: %d live cells", live)
	}
}

func TestReproductionSplitsEnergyIntoFirstEmptyNeighbor(t *testing.T) {
	cat := testCatalog(t)
	alga := mustID(t, cat, "ALGA")

	e := newTestEngine(t, cat, 4, 4, 4, false)
	e.grid.set(0, 0, Cell{Type: alga, Energy: 8})

	if _, err := e.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	// Corner cell: out-of-bounds neighbors read empty, first in-bounds empty
	// slot in scan order is (1,0). Parent energy 8 + substrate 1 = 9,
	// split 5/4.
	parent := e.grid.at(0, 0)
	if parent.Type != alga || parent.Energy != 5 || parent.Age != 1 {
		t.Fatalf("parent = %+v, want alga energy 5 age 1", parent)
	}
	child := e.grid.at(1, 0)
	if child.Type != alga || child.Energy != 4 || child.Age != 0 {
		t.Fatalf("child = %+v, want alga energy 4 age 0", child)
	}
	if child.Flags&FlagNewborn == 0 {
		t.Fatalf("child flags = %b, want newborn set", child.Flags)
	}
}

func TestLosingReproductionClaimantKeepsItsEnergy(t *testing.T) {
	cat := testCatalog(t)
	alga := mustID(t, cat, "ALGA")
	wolf := mustID(t, cat, "WOLF")

	// Two algae walled in by wolves so both pick (1,1) as their first empty
	// neighbor. The slot awards itself to (0,1); the loser at (2,1) must not
	// pay the split for a child it never produced.
	e := newTestEngine(t, cat, 4, 4, 4, false)
	for x := 0; x < 4; x++ {
		e.grid.set(x, 0, Cell{Type: wolf, Energy: 10})
	}
	e.grid.set(0, 1, Cell{Type: alga, Energy: 8})
	e.grid.set(2, 1, Cell{Type: alga, Energy: 8})

	snap, err := e.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	child := e.grid.at(1, 1)
	if child.Type != alga || child.Energy != 4 || child.Flags&FlagNewborn == 0 {
		t.Fatalf("child = %+v, want newborn alga energy 4", child)
	}
	winner := e.grid.at(0, 1)
	if winner.Type != alga || winner.Energy != 5 || winner.Age != 1 {
		t.Fatalf("winner = %+v, want alga energy 5 age 1", winner)
	}
	loser := e.grid.at(2, 1)
	if loser.Type != alga || loser.Energy != 9 || loser.Age != 1 {
		t.Fatalf("loser = %+v, want alga energy 9 age 1 (split not charged)", loser)
	}
	if n := snap.Count(alga); n != 3 {
		t.Fatalf("alga count = %d, want 3", n)
	}
}

func TestWraparoundReproducesAcrossEdge(t *testing.T) {
	cat := testCatalog(t)
	alga := mustID(t, cat, "ALGA")

	e := newTestEngine(t, cat, 4, 4, 4, true)
	e.grid.set(0, 0, Cell{Type: alga, Energy: 8})

	if _, err := e.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	// With wraparound the first scan-order neighbor of (0,0) is (3,3).
	child := e.grid.at(3, 3)
	if child.Type != alga || child.Flags&FlagNewborn == 0 {
		t.Fatalf("cell at (3,3) = %+v, want newborn alga", child)
	}
}

func TestRoamerRelocatesWithoutDuplication(t *testing.T) {
	cat := testCatalog(t)
	crab := mustID(t, cat, "CRAB")

	e := newTestEngine(t, cat, 4, 4, 4, false)
	e.grid.set(1, 1, Cell{Type: crab, Energy: 6})

	snap, err := e.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if n := snap.Count(crab); n != 1 {
		t.Fatalf("crab count after move = %d, want 1", n)
	}
	if !e.grid.at(1, 1).Empty() {
		t.Fatalf("mover did not vacate: %+v", e.grid.at(1, 1))
	}
	moved := e.grid.at(0, 0)
	if moved.Type != crab || moved.Flags&FlagMoved == 0 {
		t.Fatalf("cell at (0,0) = %+v, want moved crab", moved)
	}
	if moved.Energy != 7 || moved.Age != 1 {
		t.Fatalf("moved crab = %+v, want energy 7 age 1", moved)
	}
}

func TestAgeDeath(t *testing.T) {
	cat := testCatalog(t)
	herb := mustID(t, cat, "HERB")

	e := newTestEngine(t, cat, 4, 4, 4, false)
	e.grid.set(2, 2, Cell{Type: herb, Energy: 5, Age: 40})

	if _, err := e.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !e.grid.at(2, 2).Empty() {
		t.Fatalf("cell past max lifespan survived: %+v", e.grid.at(2, 2))
	}
}

func TestEatenPredatorStillCompletesItsStrike(t *testing.T) {
	cat := testCatalog(t)
	wolf := mustID(t, cat, "WOLF")
	herb := mustID(t, cat, "HERB")
	alga := mustID(t, cat, "ALGA")

	// WOLF eats HERB, HERB eats ALGA, all in one row. The herb is consumed
	// this tick yet its own strike on the alga lands, both computed from the
	// committed generation.
	e := newTestEngine(t, cat, 8, 4, 4, false)
	e.grid.set(1, 1, Cell{Type: wolf, Energy: 10})
	e.grid.set(2, 1, Cell{Type: herb, Energy: 5})
	e.grid.set(3, 1, Cell{Type: alga, Energy: 4})

	snap, err := e.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := e.grid.at(1, 1); got.Type != wolf || got.Energy != 15 {
		t.Fatalf("wolf = %+v, want energy 15", got)
	}
	if !e.grid.at(2, 1).Empty() {
		t.Fatalf("herb survived being eaten: %+v", e.grid.at(2, 1))
	}
	if !e.grid.at(3, 1).Empty() {
		t.Fatalf("alga survived the herb's strike: %+v", e.grid.at(3, 1))
	}
	if live := snap.Live(); live != 1 {
		t.Fatalf("live cells = %d, want 1", live)
	}
}

func TestBoundaryNeighborsReadEmpty(t *testing.T) {
	cat := testCatalog(t)
	wolf := mustID(t, cat, "WOLF")

	e := newTestEngine(t, cat, 4, 4, 4, false)
	for _, pos := range [][2]int{{0, 0}, {3, 0}, {0, 3}, {3, 3}} {
		e.grid.set(pos[0], pos[1], Cell{Type: wolf, Energy: 10})
	}
	if _, err := e.Step(); err != nil {
		t.Fatalf("corner cells must evaluate cleanly: %v", err)
	}
	for _, pos := range [][2]int{{0, 0}, {3, 0}, {0, 3}, {3, 3}} {
		c := e.grid.at(pos[0], pos[1])
		if c.Type != wolf || c.Age != 1 {
			t.Fatalf("corner (%d,%d) = %+v, want surviving wolf", pos[0], pos[1], c)
		}
	}
}
