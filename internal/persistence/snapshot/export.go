package snapshot

import (
	"fmt"

	"ecosim/internal/sim/catalog"
	"ecosim/internal/sim/engine"
)

const Version = 1

// Capture exports the committed generation of a running or idle engine.
func Capture(e *engine.Engine, cat *catalog.Catalog) SnapshotV1 {
	cfg := e.Config()
	snap := SnapshotV1{
		Header:        Header{Version: Version, Tick: e.Tick()},
		Width:         cfg.Width,
		Height:        cfg.Height,
		ChunkSize:     cfg.ChunkSize,
		Seed:          cfg.Seed,
		Wraparound:    cfg.Wraparound,
		PaletteDigest: cat.PaletteDigest,
	}
	cells := e.SnapshotCells(engine.Region{X1: cfg.Width, Y1: cfg.Height})
	for _, ca := range cells {
		if ca.Cell.Empty() {
			continue
		}
		snap.Cells = append(snap.Cells, CellV1{
			X: ca.X, Y: ca.Y,
			Type:   uint8(ca.Cell.Type),
			Energy: ca.Cell.Energy,
			Age:    ca.Cell.Age,
			Flags:  ca.Cell.Flags,
		})
	}
	return snap
}

// Restore builds a fresh engine from a snapshot. The catalog must carry the
// same palette the snapshot was taken against.
func Restore(snap SnapshotV1, cat *catalog.Catalog, workers int) (*engine.Engine, error) {
	if snap.Header.Version != Version {
		return nil, fmt.Errorf("snapshot version %d unsupported", snap.Header.Version)
	}
	if snap.PaletteDigest != cat.PaletteDigest {
		return nil, fmt.Errorf("snapshot palette digest %s does not match catalog %s",
			snap.PaletteDigest, cat.PaletteDigest)
	}
	e, err := engine.New(engine.Config{
		Width:      snap.Width,
		Height:     snap.Height,
		ChunkSize:  snap.ChunkSize,
		Seed:       snap.Seed,
		Wraparound: snap.Wraparound,
		Workers:    workers,
	}, cat)
	if err != nil {
		return nil, err
	}
	cells := make([]engine.CellAt, 0, len(snap.Cells))
	for _, cv := range snap.Cells {
		cells = append(cells, engine.CellAt{X: cv.X, Y: cv.Y, Cell: engine.Cell{
			Type:   catalog.TypeID(cv.Type),
			Energy: cv.Energy,
			Age:    cv.Age,
			Flags:  cv.Flags,
		}})
	}
	if err := e.Restore(snap.Header.Tick, cells); err != nil {
		return nil, err
	}
	return e, nil
}
