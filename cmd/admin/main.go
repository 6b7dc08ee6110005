package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ecosim/internal/persistence/snapshot"
	"ecosim/internal/sim/encoding"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "dump":
			dumpCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "snapshots"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// dumpCmd prints a snapshot as one RLE-encoded type row per line, which is
// compact enough to diff two snapshots by eye.
func dumpCmd(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = latestSnapshot(*dataDir)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run the engine until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.Read(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d tick=%d seed=%d grid=%dx%d cells=%d\n",
		snap.Header.Version, snap.Header.Tick, snap.Seed, snap.Width, snap.Height, len(snap.Cells))

	types := make([]uint8, snap.Width*snap.Height)
	for _, c := range snap.Cells {
		if c.X < 0 || c.X >= snap.Width || c.Y < 0 || c.Y >= snap.Height {
			fmt.Fprintf(os.Stderr, "cell out of bounds: (%d,%d)\n", c.X, c.Y)
			os.Exit(1)
		}
		types[c.Y*snap.Width+c.X] = c.Type
	}
	for y := 0; y < snap.Height; y++ {
		row := types[y*snap.Width : (y+1)*snap.Width]
		fmt.Printf("%d %s\n", y, encoding.EncodeRLE(row))
	}
}

func latestSnapshot(dataDir string) string {
	dir := filepath.Join(dataDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "tick_") || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(strings.TrimPrefix(name, "tick_"), ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
