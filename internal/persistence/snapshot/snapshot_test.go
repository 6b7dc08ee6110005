package snapshot_test

import (
	"path/filepath"
	"testing"

	"ecosim/internal/persistence/snapshot"
	"ecosim/internal/sim/catalog"
	"ecosim/internal/sim/engine"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.FromDefs([]catalog.Def{
		{ID: "EMPTY"},
		{ID: "ALGA", BaseEnergy: 4, ReproThreshold: 6, Mobility: "STATIC"},
		{ID: "HERB", BaseEnergy: 5, Diet: []string{"ALGA"}, ReproThreshold: 12, Mobility: "ROAMER"},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

func testEngine(t *testing.T, cat *catalog.Catalog) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Config{
		Width: 32, Height: 32, ChunkSize: 16, Seed: 99, Workers: 2,
		Densities: map[string]int{"ALGA": 250, "HERB": 80},
	}, cat)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestCaptureWriteReadRestore(t *testing.T) {
	cat := testCatalog(t)
	e := testEngine(t, cat)
	if _, err := e.StepN(8); err != nil {
		t.Fatalf("step: %v", err)
	}

	snap := snapshot.Capture(e, cat)
	if snap.Header.Tick != 8 || len(snap.Cells) == 0 {
		t.Fatalf("capture = tick %d, %d cells", snap.Header.Tick, len(snap.Cells))
	}

	path := filepath.Join(t.TempDir(), "snapshots", "tick_8.snap.zst")
	if err := snapshot.Write(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := snapshot.Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	restored, err := snapshot.Restore(loaded, cat, 2)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Digest() != e.Digest() {
		t.Fatalf("restored grid differs from the captured one")
	}

	// Both engines advance identically from the restored state.
	if _, err := e.StepN(4); err != nil {
		t.Fatalf("step original: %v", err)
	}
	if _, err := restored.StepN(4); err != nil {
		t.Fatalf("step restored: %v", err)
	}
	if restored.Digest() != e.Digest() {
		t.Fatalf("restored engine diverged after stepping")
	}
}

func TestRestoreRejectsForeignPalette(t *testing.T) {
	cat := testCatalog(t)
	e := testEngine(t, cat)
	snap := snapshot.Capture(e, cat)

	other, err := catalog.FromDefs([]catalog.Def{
		{ID: "EMPTY"},
		{ID: "MOSS", BaseEnergy: 2, ReproThreshold: 5, Mobility: "STATIC"},
	})
	if err != nil {
		t.Fatalf("build other catalog: %v", err)
	}
	if _, err := snapshot.Restore(snap, other, 1); err == nil {
		t.Fatalf("restore against a different palette succeeded")
	}
}
