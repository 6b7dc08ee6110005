package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ecosim/internal/sim/catalog"
)

// State is the scheduler lifecycle. Stopped and Errored are terminal; a fresh
// engine instance is required to run again.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Engine owns one grid plus its generation scheduler. Construct with New,
// advance with Step/StepN or Run, observe with Stats and SnapshotCells.
// Control methods are safe for concurrent use; Step itself is not reentrant.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	cat   *catalog.Catalog
	rules *RuleSet
	grid  *Grid

	state   State
	tick    atomic.Uint64
	stats   *StatsAggregator
	failure *WorkerFailure

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds and seeds an engine. Invalid dimensions, a chunk size not
// dividing the grid, or a density entry naming an unknown type fail the call
// and leave no partial state.
func New(cfg Config, cat *catalog.Catalog) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g, err := newGrid(cfg.Width, cfg.Height, cfg.ChunkSize, cfg.Wraparound)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:   cfg,
		cat:   cat,
		rules: NewRuleSet(cat, cfg.Seed),
		grid:  g,
		stats: NewStatsAggregator(cat.Len(), cfg.HistoryCap),
		stop:  make(chan struct{}),
	}
	if err := e.seed(cfg.Densities); err != nil {
		return nil, err
	}
	return e, nil
}

// seed fills the grid from permille densities. Entries are applied in sorted
// name order against a per-cell positional roll, so the same seed and
// densities always produce the identical initial grid.
func (e *Engine) seed(densities map[string]int) error {
	if len(densities) == 0 {
		return nil
	}
	names := make([]string, 0, len(densities))
	for name := range densities {
		names = append(names, name)
	}
	sort.Strings(names)

	type band struct {
		ct   catalog.CellType
		upTo uint64
	}
	bands := make([]band, 0, len(names))
	acc := uint64(0)
	for _, name := range names {
		id, ok := e.cat.Lookup(name)
		if !ok || id == catalog.Empty {
			return fmt.Errorf("density entry %q: %w", name, catalog.ErrUnknownType)
		}
		ct, err := e.cat.Describe(id)
		if err != nil {
			return err
		}
		acc += uint64(densities[name])
		bands = append(bands, band{ct: ct, upTo: acc})
	}
	if acc > 1000 {
		return fmt.Errorf("density entries sum to %d permille, above 1000", acc)
	}

	for y := 0; y < e.grid.h; y++ {
		for x := 0; x < e.grid.w; x++ {
			roll := hash2(e.cfg.Seed, x, y) % 1000
			for _, b := range bands {
				if roll < b.upTo {
					e.grid.set(x, y, Cell{Type: b.ct.ID, Energy: int16(b.ct.BaseEnergy)})
					break
				}
			}
		}
	}
	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Tick() uint64 { return e.tick.Load() }

// Config returns the effective configuration after defaults.
func (e *Engine) Config() Config { return e.cfg }

// Step advances exactly one generation and returns the stats snapshot of the
// committed grid. Callable from Idle (which starts the engine) or Running.
func (e *Engine) Step() (StatsSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepLocked()
}

// StepN advances up to n generations, stopping at the first failure.
func (e *Engine) StepN(n int) (StatsSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var snap StatsSnapshot
	var err error
	for i := 0; i < n; i++ {
		snap, err = e.stepLocked()
		if err != nil {
			return snap, err
		}
	}
	return snap, err
}

func (e *Engine) stepLocked() (StatsSnapshot, error) {
	switch e.state {
	case StateIdle:
		e.state = StateRunning
	case StateRunning:
	case StatePaused:
		return StatsSnapshot{}, ErrPaused
	case StateStopped:
		return StatsSnapshot{}, ErrStopped
	case StateErrored:
		return StatsSnapshot{}, e.failure
	}

	tick := e.tick.Load()
	if fail := e.evaluate(tick); fail != nil {
		// Abort before commit: a partial generation would break the
		// cell-count invariant.
		e.state = StateErrored
		e.failure = fail
		return StatsSnapshot{}, fail
	}
	e.grid.commit()
	next := e.tick.Add(1)
	snap := e.stats.Observe(e.grid, next)
	return snap, nil
}

// evaluate runs one evaluation task per chunk on a fixed-size worker pool,
// writing each chunk's next buffer. Neighbor reads target only the committed
// generation, so tasks share nothing mutable. Returns the first failure, or
// nil once every chunk has been written.
func (e *Engine) evaluate(tick uint64) *WorkerFailure {
	g := e.grid
	jobs := make(chan ChunkCoord, g.cw*g.ch)
	for cy := 0; cy < g.ch; cy++ {
		for cx := 0; cx < g.cw; cx++ {
			jobs <- ChunkCoord{CX: cx, CY: cy}
		}
	}
	close(jobs)

	var wg sync.WaitGroup
	var failMu sync.Mutex
	var fail *WorkerFailure

	workers := e.cfg.Workers
	if n := g.cw * g.ch; workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				e.evaluateChunk(c, tick, &failMu, &fail)
			}
		}()
	}
	wg.Wait()
	return fail
}

func (e *Engine) evaluateChunk(c ChunkCoord, tick uint64, failMu *sync.Mutex, fail **WorkerFailure) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			failMu.Lock()
			if *fail == nil {
				*fail = &WorkerFailure{CX: c.CX, CY: c.CY, Err: err}
			}
			failMu.Unlock()
		}
	}()
	g := e.grid
	x0, y0 := c.CX*g.cs, c.CY*g.cs
	for y := y0; y < y0+g.cs; y++ {
		for x := x0; x < x0+g.cs; x++ {
			g.setNext(x, y, e.rules.Next(g, x, y, tick))
		}
	}
}

// Pause holds the engine at the current tick boundary.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("pause from %s state", e.state)
	}
	e.state = StatePaused
	return nil
}

func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return fmt.Errorf("resume from %s state", e.state)
	}
	e.state = StateRunning
	return nil
}

// Stop is terminal and idempotent. An in-flight Step finishes its commit
// first; no generation is ever partially committed.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	e.mu.Lock()
	if e.state != StateErrored {
		e.state = StateStopped
	}
	e.mu.Unlock()
}

// Run drives ticks at the configured cadence until the context is cancelled,
// Stop is called, or a tick fails. Pause and Resume take effect at tick
// boundaries.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.cfg.TargetTPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		case <-e.stop:
			return nil
		case <-ticker.C:
			e.mu.Lock()
			if e.state == StatePaused {
				e.mu.Unlock()
				continue
			}
			_, err := e.stepLocked()
			e.mu.Unlock()
			if errors.Is(err, ErrStopped) {
				// Stop landed between the ticker firing and the step.
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// SnapshotCells exports the committed cells of the clamped region in
// row-major order. Read-only; never observes an in-progress generation.
func (e *Engine) SnapshotCells(r Region) []CellAt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.snapshotRegion(r)
}

// Stats returns the snapshot of the latest committed generation. Before the
// first Step it reflects the seeded grid at tick 0.
func (e *Engine) Stats() StatsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if snap, ok := e.stats.Latest(); ok {
		return snap
	}
	return e.stats.scan(e.grid, 0)
}

func (e *Engine) StatsHistory() []StatsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.History()
}

// ChangedChunks drains the chunk coordinates whose committed cells changed
// since the previous call. For external partial redraw.
func (e *Engine) ChangedChunks() []ChunkCoord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.changedChunks()
}

// Digest hashes tick plus every committed cell, for determinism checks and
// snapshot verification.
func (e *Engine) Digest() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.digest(e.tick.Load())
}

// Restore overwrites the grid with the given cells at the given tick. Only
// callable before the first Step. Cells referencing unknown types fail the
// call.
func (e *Engine) Restore(tick uint64, cells []CellAt) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return fmt.Errorf("restore in %s state", e.state)
	}
	for _, ca := range cells {
		if ca.X < 0 || ca.X >= e.grid.w || ca.Y < 0 || ca.Y >= e.grid.h {
			return fmt.Errorf("cell (%d,%d) outside %dx%d grid", ca.X, ca.Y, e.grid.w, e.grid.h)
		}
		if !ca.Cell.Empty() {
			if _, err := e.cat.Describe(ca.Cell.Type); err != nil {
				return fmt.Errorf("cell (%d,%d): %w", ca.X, ca.Y, err)
			}
		}
	}
	for _, ca := range cells {
		e.grid.set(ca.X, ca.Y, ca.Cell)
	}
	e.tick.Store(tick)
	return nil
}

// Failure reports the recorded worker failure, if the engine is errored.
func (e *Engine) Failure() *WorkerFailure {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}
