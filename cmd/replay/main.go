package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	persistlog "ecosim/internal/persistence/log"
	"ecosim/internal/persistence/snapshot"
	"ecosim/internal/sim/catalog"
	"ecosim/internal/sim/engine"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		ticksDir  = flag.String("ticks", "", "dir containing ticks-*.jsonl.zst digest logs (optional)")
		configDir = flag.String("configs", "./configs", "config directory")
		steps     = flag.Uint64("steps", 100, "ticks to replay when no -ticks dir is given")
		workersA  = flag.Int("workers", 1, "worker count for the primary run")
		workersB  = flag.Int("workers_alt", 0, "second worker count to cross-check (0 = skip)")
		toTick    = flag.Uint64("to_tick", 0, "stop verifying at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	cat, err := catalog.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalog:", err)
		os.Exit(1)
	}

	snap, err := snapshot.Read(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d tick=%d seed=%d grid=%dx%d chunk=%d wrap=%v cells=%d\n",
		snap.Header.Version, snap.Header.Tick, snap.Seed, snap.Width, snap.Height,
		snap.ChunkSize, snap.Wraparound, len(snap.Cells))

	eng, err := snapshot.Restore(snap, cat, *workersA)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}

	if *ticksDir != "" {
		checked, err := verifyTickLogs(eng, *ticksDir, *toTick)
		if err != nil {
			fmt.Fprintln(os.Stderr, "verify:", err)
			os.Exit(1)
		}
		fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
		return
	}

	if _, err := eng.StepN(int(*steps)); err != nil {
		fmt.Fprintln(os.Stderr, "step:", err)
		os.Exit(1)
	}
	fmt.Printf("workers=%d tick=%d digest=%s\n", *workersA, eng.Tick(), eng.Digest())

	if *workersB > 0 {
		alt, err := snapshot.Restore(snap, cat, *workersB)
		if err != nil {
			fmt.Fprintln(os.Stderr, "restore alt:", err)
			os.Exit(1)
		}
		if _, err := alt.StepN(int(*steps)); err != nil {
			fmt.Fprintln(os.Stderr, "step alt:", err)
			os.Exit(1)
		}
		fmt.Printf("workers=%d tick=%d digest=%s\n", *workersB, alt.Tick(), alt.Digest())
		if alt.Digest() != eng.Digest() {
			fmt.Fprintln(os.Stderr, "digest mismatch between worker counts")
			os.Exit(1)
		}
		fmt.Println("determinism ok: digests agree across worker counts")
	}
}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// verifyTickLogs steps the restored engine alongside the recorded digest log
// and fails on the first divergence.
func verifyTickLogs(eng *engine.Engine, dir string, toTick uint64) (uint64, error) {
	files, err := listTickFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no tick logs found in %s", dir)
	}

	var checked uint64
	for _, path := range files {
		done, err := replayFile(eng, path, toTick, &checked)
		if err != nil {
			return checked, err
		}
		if done {
			break
		}
	}
	return checked, nil
}

func replayFile(eng *engine.Engine, path string, toTick uint64, checked *uint64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return false, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		var entry persistlog.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return false, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick <= eng.Tick() {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			return true, nil
		}
		if entry.Tick != eng.Tick()+1 {
			return false, fmt.Errorf("tick gap: engine at %d, log entry %d (file=%s)", eng.Tick(), entry.Tick, filepath.Base(path))
		}
		if _, err := eng.Step(); err != nil {
			return false, fmt.Errorf("step to tick %d: %w", entry.Tick, err)
		}
		*checked++
		if got := eng.Digest(); got != entry.Digest {
			return false, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", entry.Tick, got, entry.Digest)
		}
	}
	if err := sc.Err(); err != nil {
		return false, err
	}
	return false, nil
}
