package engine

import (
	"testing"

	"ecosim/internal/sim/catalog"
)

func TestStatsHistoryBound(t *testing.T) {
	cat := testCatalog(t)
	e := newTestEngine(t, cat, 4, 4, 4, false)

	if _, err := e.StepN(1005); err != nil {
		t.Fatalf("step: %v", err)
	}
	hist := e.StatsHistory()
	if len(hist) != 1000 {
		t.Fatalf("history length = %d, want exactly 1000", len(hist))
	}
	if hist[0].Tick != 6 {
		t.Fatalf("oldest retained tick = %d, want 6 (oldest evicted)", hist[0].Tick)
	}
	if hist[len(hist)-1].Tick != 1005 {
		t.Fatalf("newest retained tick = %d, want 1005", hist[len(hist)-1].Tick)
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].Tick != hist[i-1].Tick+1 {
			t.Fatalf("history not oldest-first contiguous at %d: %d then %d", i, hist[i-1].Tick, hist[i].Tick)
		}
	}
}

func TestStatsSnapshotCounts(t *testing.T) {
	cat := testCatalog(t)
	wolf := mustID(t, cat, "WOLF")
	alga := mustID(t, cat, "ALGA")

	e := newTestEngine(t, cat, 4, 4, 4, false)
	e.grid.set(0, 0, Cell{Type: wolf, Energy: 10})
	e.grid.set(3, 3, Cell{Type: wolf, Energy: 10})
	e.grid.set(0, 3, Cell{Type: alga, Energy: 2})

	snap, err := e.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if snap.Tick != 1 {
		t.Fatalf("snapshot tick = %d, want 1", snap.Tick)
	}
	if got := snap.Count(wolf); got != 2 {
		t.Fatalf("wolf count = %d, want 2", got)
	}
	if got := snap.Count(alga); got != 1 {
		t.Fatalf("alga count = %d, want 1", got)
	}
	if got := snap.EmptyCount(); got != 13 {
		t.Fatalf("empty count = %d, want 13", got)
	}
	// 2 wolves at 10 each, alga at 2+1 substrate.
	if snap.TotalEnergy != 23 {
		t.Fatalf("total energy = %d, want 23", snap.TotalEnergy)
	}

	latest := e.Stats()
	if latest.Tick != snap.Tick || latest.TotalEnergy != snap.TotalEnergy {
		t.Fatalf("Stats() = %+v, want the committed snapshot %+v", latest, snap)
	}
}

func TestHealthReport(t *testing.T) {
	cat := testCatalog(t)
	snap := StatsSnapshot{
		Tick:        9,
		Counts:      make([]int, cat.Len()),
		TotalEnergy: 40,
	}
	wolf := mustID(t, cat, "WOLF")
	alga := mustID(t, cat, "ALGA")
	snap.Counts[catalog.Empty] = 10
	snap.Counts[wolf] = 3
	snap.Counts[alga] = 1

	rep := Health(snap, cat)
	if rep.Live != 4 || rep.Species != 2 || rep.Empty != 10 {
		t.Fatalf("report = %+v, want live 4 species 2 empty 10", rep)
	}
	if rep.Dominant != "WOLF" {
		t.Fatalf("dominant = %q, want WOLF", rep.Dominant)
	}
	if rep.MeanEnergy != 10 {
		t.Fatalf("mean energy = %v, want 10", rep.MeanEnergy)
	}
	if rep.Diversity <= 0 {
		t.Fatalf("diversity = %v, want > 0 for a mixed population", rep.Diversity)
	}
	// Wolves carry a diet, algae do not; neither type decays and the
	// test catalog's green population is zero.
	if rep.Predators != 3 {
		t.Fatalf("predators = %d, want 3", rep.Predators)
	}
	if rep.DiseasePressure != 0 || rep.GreenCoverage != 0 {
		t.Fatalf("report = %+v, want zero disease pressure and green coverage", rep)
	}
	if rep.Score <= 0 || rep.Score > 100 {
		t.Fatalf("score = %d, want within 1..100", rep.Score)
	}
	if rep.Status != "thriving" {
		t.Fatalf("status = %q, want thriving for a well-mixed world", rep.Status)
	}
}

func TestHealthReportGreenAndDisease(t *testing.T) {
	cat := testCatalog(t)
	green := mustID(t, cat, "GREEN")
	alga := mustID(t, cat, "ALGA")

	snap := StatsSnapshot{Tick: 3, Counts: make([]int, cat.Len()), TotalEnergy: 30}
	snap.Counts[catalog.Empty] = 8
	snap.Counts[green] = 6
	snap.Counts[alga] = 2

	rep := Health(snap, cat)
	if rep.GreenCoverage != 0.375 {
		t.Fatalf("green coverage = %v, want 6/16", rep.GreenCoverage)
	}
	// Six green cells at 2 permille decay over 8 live cells.
	if rep.DiseasePressure != 1.5 {
		t.Fatalf("disease pressure = %v, want 1.5", rep.DiseasePressure)
	}
	if rep.Predators != 0 {
		t.Fatalf("predators = %d, want 0", rep.Predators)
	}
}

func TestHealthReportDeadWorld(t *testing.T) {
	cat := testCatalog(t)
	snap := StatsSnapshot{Tick: 50, Counts: make([]int, cat.Len())}
	snap.Counts[catalog.Empty] = 16

	rep := Health(snap, cat)
	if rep.Score != 0 || rep.Status != "dead" {
		t.Fatalf("report = %+v, want score 0 status dead", rep)
	}
}
