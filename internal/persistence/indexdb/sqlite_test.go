package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"idlecity.ai/internal/persistence/savefile"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/tuning"
	"idlecity.ai/internal/sim/world"
)

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

func TestSQLiteIndex_WritesTicksSavesAndHeartbeats(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_ = idx.WriteTick(world.TickLogEntry{Tick: 1, Digest: "aa", Happiness: 2, Idle: 7})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 2, Digest: "bb", Commands: []world.Command{
		{Type: world.CmdPlaceBuilding, Building: "Hut"},
		{Type: world.CmdUnlockTech, Tech: "Writing"},
	}})
	idx.RecordSave("/saves/rome.sav", savefile.Header{SchemaVersion: savefile.SchemaVersion, GameID: "g1", City: "Rome", Tick: 2})
	if err := idx.Heartbeat(context.Background(), savefile.Lite{
		Header:       savefile.Header{GameID: "g1", City: "Rome", Tick: 1},
		UnlockedTech: []string{"Fire", "StoneTools"},
		Buildings:    map[string]int{"Headquarter": 1, "Hut": 2},
	}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Writes after close are ignored.
	_ = idx.WriteTick(world.TickLogEntry{Tick: 3})

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	defer db.Close()

	if n := count(t, db, `SELECT COUNT(*) FROM ticks`); n != 2 {
		t.Fatalf("ticks=%d", n)
	}
	if n := count(t, db, `SELECT commands FROM ticks WHERE tick = 2`); n != 2 {
		t.Fatalf("tick 2 commands=%d", n)
	}
	if n := count(t, db, `SELECT COUNT(*) FROM commands WHERE type = ?`, "unlock_tech"); n != 1 {
		t.Fatalf("unlock_tech rows=%d", n)
	}
	if n := count(t, db, `SELECT COUNT(*) FROM saves WHERE city = 'Rome' AND tick = 2`); n != 1 {
		t.Fatalf("saves=%d", n)
	}
	if n := count(t, db, `SELECT buildings FROM heartbeats WHERE game_id = 'g1'`); n != 3 {
		t.Fatalf("heartbeat buildings=%d", n)
	}
	if n := count(t, db, `SELECT techs FROM heartbeats WHERE game_id = 'g1'`); n != 2 {
		t.Fatalf("heartbeat techs=%d", n)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	s.RecordSave("/tmp/x.sav", savefile.Header{Tick: 2})
	_ = s.Heartbeat(context.Background(), savefile.Lite{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropSaveTotal != 1 || st.DropHeartbeatTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_ = idx.Close()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if n := count(t, db, `SELECT COUNT(*) FROM catalogs`); n != 6 {
		t.Fatalf("catalog rows=%d", n)
	}
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name = 'buildings'`).Scan(&digest); err != nil {
		t.Fatal(err)
	}
	if digest != cats.Buildings.Digest {
		t.Fatalf("digest=%s want %s", digest, cats.Buildings.Digest)
	}
}
