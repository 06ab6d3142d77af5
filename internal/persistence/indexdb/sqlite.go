package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"idlecity.ai/internal/persistence/savefile"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/tuning"
	"idlecity.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of ticks, saves and heartbeats. Writes are
// queued to a single writer goroutine and dropped when the queue is full; the save files
// and tick logs stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick      atomic.Uint64
	dropSave      atomic.Uint64
	dropHeartbeat atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSave
	reqHeartbeat
)

type req struct {
	kind reqKind

	tick      world.TickLogEntry
	save      saveRow
	heartbeat savefile.Lite
}

type saveRow struct {
	Path   string
	Header savefile.Header
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int

	DropTickTotal      uint64
	DropSaveTotal      uint64
	DropHeartbeatTotal uint64
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
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			commands INTEGER NOT NULL,
			happiness INTEGER NOT NULL,
			science REAL NOT NULL,
			busy INTEGER NOT NULL,
			idle INTEGER NOT NULL,
			offline INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			cmd_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_type_tick ON commands(type, tick);`,
		`CREATE TABLE IF NOT EXISTS saves (
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			game_id TEXT NOT NULL,
			city TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			PRIMARY KEY (tick, path)
		);`,
		`CREATE TABLE IF NOT EXISTS heartbeats (
			tick INTEGER NOT NULL,
			game_id TEXT NOT NULL,
			city TEXT NOT NULL,
			buildings INTEGER NOT NULL,
			techs INTEGER NOT NULL,
			is_offline INTEGER NOT NULL,
			sent_at INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (game_id, tick)
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropTickTotal:      s.dropTick.Load(),
		DropSaveTotal:      s.dropSave.Load(),
		DropHeartbeatTotal: s.dropHeartbeat.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// WriteTick implements world.TickLogger.
func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

// RecordSave matches savefile.Store.OnSaved.
func (s *SQLiteIndex) RecordSave(path string, h savefile.Header) {
	if s == nil || s.closed.Load() {
		return
	}
	s.enqueue(req{kind: reqSave, save: saveRow{Path: path, Header: h}}, &s.dropSave)
}

// Heartbeat implements world.Heartbeat by recording the payload locally.
func (s *SQLiteIndex) Heartbeat(_ context.Context, lite savefile.Lite) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqHeartbeat, heartbeat: lite}, &s.dropHeartbeat)
	return nil
}

// UpsertCatalogs stores the raw config files and applied tuning with their digests, so a
// tick range can be matched to the rules that produced it.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	for _, f := range []struct{ name, digest string }{
		{"resources", cats.Resources.Digest},
		{"buildings", cats.Buildings.Digest},
		{"techs", cats.Techs.Digest},
		{"great_people", cats.GreatPeople.Digest},
		{"cities", cats.Cities.Digest},
	} {
		b, err := os.ReadFile(filepath.Join(configDir, f.name+".json"))
		if err != nil {
			continue
		}
		rows = append(rows, kv{name: f.name, digest: f.digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, fmt.Sprint(savefile.SchemaVersion)); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,commands,happiness,science,busy,idle,offline,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertCommand, _ := s.db.Prepare(`INSERT OR REPLACE INTO commands(tick,seq,type,cmd_json) VALUES(?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(tick,path,game_id,city,schema_version,saved_at) VALUES(?,?,?,?,?,?)`)
	insertHeartbeat, _ := s.db.Prepare(`INSERT OR REPLACE INTO heartbeats(tick,game_id,city,buildings,techs,is_offline,sent_at,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertCommand, insertSave, insertHeartbeat} {
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
			raw, _ := json.Marshal(e)
			if !exec(insertTick, int64(e.Tick), e.Digest, len(e.Commands), e.Happiness, e.Science, e.Busy, e.Idle, boolInt(e.Offline), string(raw)) {
				continue
			}
			for i, c := range e.Commands {
				cmdJSON, _ := json.Marshal(c)
				if !exec(insertCommand, int64(e.Tick), i, string(c.Type), string(cmdJSON)) {
					break
				}
			}

		case reqSave:
			h := r.save.Header
			exec(insertSave, int64(h.Tick), r.save.Path, h.GameID, h.City, h.SchemaVersion, h.SavedAt)

		case reqHeartbeat:
			l := r.heartbeat
			raw, _ := json.Marshal(l)
			buildings := 0
			for _, n := range l.Buildings {
				buildings += n
			}
			exec(insertHeartbeat, int64(l.Header.Tick), l.Header.GameID, l.Header.City, buildings, len(l.UnlockedTech), boolInt(l.IsOffline), l.Header.SavedAt, string(raw))
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
