package savefile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/terrain"
	"idlecity.ai/internal/sim/tuning"
)

func newGame(t *testing.T) (*state.GameState, *state.GameOptions) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	st := state.New("Rome", 11)
	if err := terrain.Initialize(st, cats, tuning.Defaults()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	hq := st.Tiles.BuildingAt(state.XY(12, 8))
	hq.Resources.Add("Wood", 40)
	st.Tiles.BuildingAt(state.XY(12, 8)).Resources.Add("Stone", 3)
	st.GreatPeople["Homer"] = 2
	st.Transportation.Add(&state.Job{ID: 1, From: state.XY(12, 8), To: state.XY(0, 0), Resource: "Wood", Amount: 2, Fuel: "Wood", FuelAmount: 1, TicksRequired: 4, TicksElapsed: 1})
	st.NextTransportID = 1

	opts := state.NewGameOptions()
	opts.GreatPeople["Confucius"] = state.PermanentGreatPerson{Level: 1, Amount: 0.5}
	opts.ChatReceiveChannels["en"] = true
	return st, opts
}

func TestWriteRead_RoundTrip(t *testing.T) {
	st, opts := newGame(t)
	now := time.UnixMilli(1_700_000_000_000)
	saved := Export(st, opts, now)

	path := filepath.Join(t.TempDir(), "game.sav")
	if err := Write(path, saved); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil || h != saved.Header {
		t.Fatalf("header=%+v err=%v", h, err)
	}
	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	st2, opts2, err := Import(loaded)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	again := Export(st2, opts2, now)
	if !reflect.DeepEqual(saved, again) {
		t.Fatalf("round trip changed the save")
	}
	if _, ok := st2.Tiles.BuildingAt(state.XY(12, 8)).Variant.(state.Headquarter); !ok {
		t.Fatalf("variant not restored")
	}
}

func TestExport_DoesNotAlias(t *testing.T) {
	st, opts := newGame(t)
	s := Export(st, opts, time.Now())
	st.Tiles.BuildingAt(state.XY(12, 8)).Resources.Add("Wood", 1000)
	st.GreatPeople["Homer"] = 9
	opts.GreatPeople["Confucius"] = state.PermanentGreatPerson{Level: 5}
	for _, tv := range s.State.Tiles {
		if tv.XY == uint32(state.XY(12, 8)) && tv.Building.Resources["Wood"] != 40 {
			t.Fatalf("save aliases building ledger")
		}
	}
	if s.State.GreatPeople["Homer"] != 2 || s.Options.GreatPeople["Confucius"].Level != 1 {
		t.Fatalf("save aliases great people ledgers")
	}
}

type bumpMigrator struct{ called bool }

func (m *bumpMigrator) Migrate(s *Save) error {
	m.called = true
	s.Header.SchemaVersion = SchemaVersion
	return nil
}

func TestLoad_VersionMismatch(t *testing.T) {
	st, opts := newGame(t)
	s := Export(st, opts, time.Now())
	s.Header.SchemaVersion = 0
	path := filepath.Join(t.TempDir(), "old.sav")
	if err := Write(path, s); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); !errors.Is(err, ErrVersion) {
		t.Fatalf("err=%v", err)
	}
	m := &bumpMigrator{}
	if _, err := Load(path, m); err != nil || !m.called {
		t.Fatalf("migrate err=%v called=%v", err, m.called)
	}
}

func TestStore_RotatesBackups(t *testing.T) {
	st, opts := newGame(t)
	dir := t.TempDir()
	store := NewStore(dir, "rome", time.Hour, nil)
	var saved []uint64
	store.OnSaved = func(_ string, h Header) { saved = append(saved, h.Tick) }

	for i := 0; i < 3; i++ {
		st.Tick = uint64(i + 1)
		if err := store.Save(context.Background(), Export(st, opts, time.Now())); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if len(saved) != 3 {
		t.Fatalf("OnSaved calls=%v", saved)
	}
	if _, err := os.Stat(store.BackupPath(2)); err != nil {
		t.Fatalf("first backup missing: %v", err)
	}
	if _, err := os.Stat(store.BackupPath(3)); !os.IsNotExist(err) {
		t.Fatalf("backup written inside interval: %v", err)
	}
	s, err := store.Load(nil)
	if err != nil || s.Header.Tick != 3 {
		t.Fatalf("load tick=%d err=%v", s.Header.Tick, err)
	}
	b, err := Read(store.BackupPath(2))
	if err != nil || b.Header.Tick != 1 {
		t.Fatalf("backup tick=%d err=%v", b.Header.Tick, err)
	}
}

func TestExportLite(t *testing.T) {
	st, opts := newGame(t)
	l := ExportLite(st, opts, time.Now())
	if l.Header.GameID != opts.ID || l.Buildings["Headquarter"] != 1 || len(l.UnlockedTech) != 2 {
		t.Fatalf("lite=%+v", l)
	}
}
