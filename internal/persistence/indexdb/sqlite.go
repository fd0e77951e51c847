package indexdb

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

	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
	"github.com/steve-haar/door-simulator/internal/sim/tuning"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

// SQLiteIndex is a queryable secondary copy of the tick and audit logs. Writes are
// queued and applied by one goroutine; the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type Stats struct {
	DropTickTotal  uint64 `json:"drop_tick_total"`
	DropAuditTotal uint64 `json:"drop_audit_total"`
	DropSnapTotal  uint64 `json:"drop_snapshot_total"`
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick  world.TickLogEntry
	audit world.AuditEntry

	snapPath string
	snap     snapshot.SnapshotV1
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
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

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			delta REAL NOT NULL,
			elapsed REAL NOT NULL,
			agents INTEGER NOT NULL,
			created INTEGER NOT NULL,
			removed INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS spawns (
			tick INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			entry_portal TEXT NOT NULL,
			exit_portal TEXT NOT NULL,
			x REAL NOT NULL,
			z REAL NOT NULL,
			PRIMARY KEY (tick, agent_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_spawns_entry ON spawns(entry_portal, tick);`,
		`CREATE TABLE IF NOT EXISTS removals (
			tick INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			PRIMARY KEY (tick, agent_id)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			elapsed REAL NOT NULL,
			agents INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			removed INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS param_changes (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			before_json TEXT NOT NULL,
			after_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

// RecordSnapshot indexes a snapshot file written to path.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapPath: path, snap: snap}:
	default:
		s.dropSnapshot.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropTickTotal:  s.dropTick.Load(),
		DropAuditTotal: s.dropAudit.Load(),
		DropSnapTotal:  s.dropSnapshot.Load(),
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
	}
}

// RecordRun stores the effective tuning of this run in meta. It writes
// synchronously and is meant to be called once at startup.
func (s *SQLiteIndex) RecordRun(worldID string, tune tuning.Tuning) error {
	raw, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows := [][2]string{
		{"world_id", worldID},
		{"seed", fmt.Sprintf("%d", tune.Seed)},
		{"tick_rate_hz", fmt.Sprintf("%d", tune.TickRateHz)},
		{"tuning_json", string(raw)},
		{"started_at", time.Now().UTC().Format(time.RFC3339)},
	}
	for _, r := range rows {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, r[0], r[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,delta,elapsed,agents,created,removed,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertSpawn, _ := s.db.Prepare(`INSERT OR REPLACE INTO spawns(tick,agent_id,entry_portal,exit_portal,x,z) VALUES(?,?,?,?,?,?)`)
	insertRemoval, _ := s.db.Prepare(`INSERT OR REPLACE INTO removals(tick,agent_id) VALUES(?,?)`)
	insertChange, _ := s.db.Prepare(`INSERT OR REPLACE INTO param_changes(tick,seq,source,before_json,after_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,elapsed,agents,spawned,removed) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertSpawn, insertRemoval, insertChange, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
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
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			b, _ := json.Marshal(e)
			if !exec(insertTick, int64(e.Tick), e.Digest, e.Delta, e.Elapsed, e.Agents, len(e.Created), len(e.Removed), string(b)) {
				continue
			}
			for _, c := range e.Created {
				if !exec(insertSpawn, int64(e.Tick), c.ID, c.EntryPortal, c.ExitPortal, c.Pos.X, c.Pos.Z) {
					break
				}
			}
			for _, id := range e.Removed {
				if !exec(insertRemoval, int64(e.Tick), id) {
					break
				}
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			before, _ := json.Marshal(a.Before)
			after, _ := json.Marshal(a.After)
			exec(insertChange, int64(a.Tick), seq, a.Source, string(before), string(after))

		case reqSnapshot:
			sn := r.snap
			exec(insertSnapshot, int64(sn.Header.Tick), r.snapPath, sn.Elapsed, len(sn.Agents), int64(sn.Spawned), int64(sn.RemovedTotal))
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
