package engine

import (
	"fmt"
	"runtime"
)

// Config describes one simulation instance. Densities seed the grid with a
// permille share per type name; slots matching no entry stay empty.
type Config struct {
	Width, Height int
	ChunkSize     int
	Seed          int64
	Densities     map[string]int
	Wraparound    bool

	// Worker pool size for chunk evaluation. Results are bit-identical for a
	// fixed grid and seed regardless of the value; it is purely a
	// performance knob.
	Workers int

	// Tick cadence for Run. Step ignores it.
	TargetTPS int

	// Stats ring capacity.
	HistoryCap int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.TargetTPS <= 0 {
		c.TargetTPS = 20
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 1000
	}
}

func (c *Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return ErrBadDimensions
	}
	// Below 3 cells per axis a wraparound neighborhood folds onto itself
	// and a cell reads its own slot as a neighbor.
	if c.Wraparound && (c.Width < 3 || c.Height < 3) {
		return fmt.Errorf("%w: wraparound needs at least 3 cells per axis", ErrBadDimensions)
	}
	if c.Width%c.ChunkSize != 0 || c.Height%c.ChunkSize != 0 {
		return ErrChunkIndivisible
	}
	return nil
}
