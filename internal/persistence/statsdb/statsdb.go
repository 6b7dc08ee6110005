// Package statsdb archives per-generation statistics and snapshot records to
// a local sqlite database. Writes go through a single-writer goroutine with a
// buffered queue so the simulation loop never blocks on the database; entries
// are dropped if the archiver falls behind.
package statsdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"ecosim/internal/persistence/snapshot"
	"ecosim/internal/sim/catalog"
	"ecosim/internal/sim/engine"
)

type Archive struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqStats reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind     reqKind
	stats    engine.StatsSnapshot
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick   uint64
	Path   string
	Seed   int64
	Width  int
	Height int
	Cells  int
}

func Open(path string) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &Archive{
		db: db,
		ch: make(chan req, 8192),
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop()
	}()
	return a, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stats (
			tick INTEGER PRIMARY KEY,
			live INTEGER NOT NULL,
			empty INTEGER NOT NULL,
			total_energy INTEGER NOT NULL,
			counts_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			cells INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) Close() error {
	var err error
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.ch)
		a.wg.Wait()
		err = a.db.Close()
	})
	return err
}

// RecordStats queues one generation's snapshot for archiving.
func (a *Archive) RecordStats(snap engine.StatsSnapshot) {
	if a == nil || a.closed.Load() {
		return
	}
	select {
	case a.ch <- req{kind: reqStats, stats: snap}:
	default:
		// Drop if the archiver falls behind; the in-memory ring remains
		// the authoritative recent history.
	}
}

// RecordSnapshot queues a row describing a snapshot file on disk.
func (a *Archive) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if a == nil || a.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:   snap.Header.Tick,
		Path:   path,
		Seed:   snap.Seed,
		Width:  snap.Width,
		Height: snap.Height,
		Cells:  len(snap.Cells),
	}
	select {
	case a.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// UpsertCatalog records the active type catalog alongside archived stats so
// counts can be mapped back to names after the fact.
func (a *Archive) UpsertCatalog(configDir string, cat *catalog.Catalog) error {
	if a == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cat.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "cell_palette", digest: cat.PaletteDigest, json: b})
	}
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "cell_types.json")); err == nil {
			rows = append(rows, kv{name: "cell_defs", digest: cat.DefsDigest, json: b})
		}
	}

	tx, err := a.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// StatsRange reads archived rows with from <= tick < to, oldest first.
// Read path for tooling; safe alongside the writer thanks to WAL.
func (a *Archive) StatsRange(from, to uint64) ([]engine.StatsSnapshot, error) {
	rows, err := a.db.Query(
		`SELECT tick, total_energy, counts_json FROM stats WHERE tick >= ? AND tick < ? ORDER BY tick`,
		int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.StatsSnapshot
	for rows.Next() {
		var tick int64
		var energy int64
		var countsJSON string
		if err := rows.Scan(&tick, &energy, &countsJSON); err != nil {
			return nil, err
		}
		snap := engine.StatsSnapshot{Tick: uint64(tick), TotalEnergy: energy}
		if err := json.Unmarshal([]byte(countsJSON), &snap.Counts); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (a *Archive) loop() {
	insertStats, _ := a.db.Prepare(`INSERT OR REPLACE INTO stats(tick,live,empty,total_energy,counts_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := a.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,width,height,cells) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertStats != nil {
			_ = insertStats.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	ctx := context.Background()
	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range a.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqStats:
			s := r.stats
			counts, _ := json.Marshal(s.Counts)
			if insertStats != nil {
				if _, err := tx.Stmt(insertStats).Exec(
					int64(s.Tick), s.Live(), s.EmptyCount(), s.TotalEnergy, string(counts),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick), sn.Path, sn.Seed, sn.Width, sn.Height, sn.Cells,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
	commit()
}
