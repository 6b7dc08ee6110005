package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "ecosim/internal/persistence/log"
	"ecosim/internal/persistence/snapshot"
	"ecosim/internal/persistence/statsdb"
	"ecosim/internal/sim/catalog"
	"ecosim/internal/sim/engine"
	"ecosim/internal/sim/preset"
)

func main() {
	var (
		width      = flag.Int("width", 512, "grid width in cells")
		height     = flag.Int("height", 512, "grid height in cells")
		chunkSize  = flag.Int("chunk", engine.DefaultChunkSize, "chunk edge length")
		seed       = flag.Int64("seed", 1337, "world seed")
		presetName = flag.String("preset", "balanced", "seeding preset name")
		wrap       = flag.Bool("wrap", false, "wraparound grid edges")
		workers    = flag.Int("workers", 0, "worker pool size (0 = GOMAXPROCS)")
		tps        = flag.Int("tps", 20, "target ticks per second")
		ticks      = flag.Int("ticks", 0, "run this many ticks then exit (0 = run until signal)")

		configDir   = flag.String("configs", "./configs", "config directory")
		presetsPath = flag.String("presets", "", "preset file path (default: <configs>/presets.yaml, built-ins if absent)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite stats archive")
		tickLog     = flag.Bool("tick_log", false, "write a per-tick JSONL digest log")

		snapPath    = flag.String("snapshot", "", "path to snapshot to resume from (optional)")
		snapEvery   = flag.Int("snapshot_every", 3000, "write a snapshot every N ticks (0 = never)")
		statsEvery  = flag.Int("stats_every", 100, "log a health report every N ticks")
		listPresets = flag.Bool("list_presets", false, "print known presets and exit")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[ecosim] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalog.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	logger.Printf("catalog: %d types, palette %s", cat.Len()-1, short(cat.PaletteDigest))

	lib := loadPresets(*presetsPath, *configDir, logger)
	if *listPresets {
		for _, name := range lib.Names() {
			p, _ := lib.Lookup(name)
			fmt.Printf("%-18s %s\n", name, p.Description)
		}
		return
	}

	var eng *engine.Engine
	if sp := strings.TrimSpace(*snapPath); sp != "" {
		snap, err := snapshot.Read(sp)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		eng, err = snapshot.Restore(snap, cat, *workers)
		if err != nil {
			logger.Fatalf("restore snapshot: %v", err)
		}
		logger.Printf("resumed from %s at tick %d (%d cells)", sp, snap.Header.Tick, len(snap.Cells))
	} else {
		p, err := lib.Lookup(*presetName)
		if err != nil {
			logger.Fatalf("resolve preset: %v", err)
		}
		eng, err = engine.New(engine.Config{
			Width:      *width,
			Height:     *height,
			ChunkSize:  *chunkSize,
			Seed:       *seed,
			Densities:  p.Densities,
			Wraparound: *wrap,
			Workers:    *workers,
			TargetTPS:  *tps,
		}, cat)
		if err != nil {
			logger.Fatalf("build engine: %v", err)
		}
		logger.Printf("seeded %dx%d grid from preset %q, seed %d", *width, *height, *presetName, *seed)
	}

	var archive *statsdb.Archive
	if !*disableDB {
		archive, err = statsdb.Open(filepath.Join(*dataDir, "stats.db"))
		if err != nil {
			logger.Fatalf("open stats archive: %v", err)
		}
		defer archive.Close()
		if err := archive.UpsertCatalog(*configDir, cat); err != nil {
			logger.Printf("record catalog: %v", err)
		}
	}

	var digestLog *persistlog.TickLogger
	if *tickLog {
		digestLog = persistlog.NewTickLogger(*dataDir)
		defer digestLog.Close()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Printf("shutting down")
		eng.Stop()
	}()

	start := time.Now()
	if *tps <= 0 {
		*tps = 20
	}
	interval := time.Second / time.Duration(*tps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if eng.State() == engine.StateStopped {
			break
		}
		snap, err := eng.Step()
		if err != nil {
			if err == engine.ErrStopped {
				break
			}
			logger.Fatalf("tick %d: %v", eng.Tick(), err)
		}
		archive.RecordStats(snap)

		tick := snap.Tick
		if digestLog != nil {
			_ = digestLog.WriteTick(persistlog.TickLogEntry{
				Tick:        tick,
				Digest:      eng.Digest(),
				Live:        snap.Live(),
				Empty:       snap.EmptyCount(),
				TotalEnergy: snap.TotalEnergy,
			})
		}
		if *statsEvery > 0 && tick%uint64(*statsEvery) == 0 {
			rep := engine.Health(snap, cat)
			logger.Printf("tick %d: live=%d species=%d diversity=%.2f mean_energy=%.1f dominant=%s score=%d status=%s green=%.2f predators=%d disease=%.1f",
				tick, rep.Live, rep.Species, rep.Diversity, rep.MeanEnergy, rep.Dominant,
				rep.Score, rep.Status, rep.GreenCoverage, rep.Predators, rep.DiseasePressure)
		}
		if *snapEvery > 0 && tick > 0 && tick%uint64(*snapEvery) == 0 {
			writeSnapshot(eng, cat, *dataDir, archive, logger)
		}
		if *ticks > 0 && tick >= uint64(*ticks) {
			break
		}
	}

	final := eng.Stats()
	logger.Printf("done: %d ticks in %s, %d live cells", final.Tick, time.Since(start).Round(time.Millisecond), final.Live())
}

func loadPresets(path, configDir string, logger *log.Logger) *preset.Library {
	if path == "" {
		path = filepath.Join(configDir, "presets.yaml")
		if _, err := os.Stat(path); err != nil {
			return preset.Builtin()
		}
	}
	lib, err := preset.Load(path)
	if err != nil {
		logger.Fatalf("load presets: %v", err)
	}
	return lib
}

func writeSnapshot(eng *engine.Engine, cat *catalog.Catalog, dataDir string, archive *statsdb.Archive, logger *log.Logger) {
	snap := snapshot.Capture(eng, cat)
	path := filepath.Join(dataDir, "snapshots", fmt.Sprintf("tick_%09d.snap.zst", snap.Header.Tick))
	if err := snapshot.Write(path, snap); err != nil {
		logger.Printf("write snapshot: %v", err)
		return
	}
	archive.RecordSnapshot(path, snap)
	logger.Printf("snapshot %s (%d cells)", path, len(snap.Cells))
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
