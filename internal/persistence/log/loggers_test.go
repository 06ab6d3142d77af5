package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"idlecity.ai/internal/sim/events"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/world"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	var out []string
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "ticks")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"tick": 1}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(map[string]int{"tick": 2}); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"tick": 3}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	sort.Strings(files)
	if len(files) != 2 {
		t.Fatalf("files=%v", files)
	}
	if filepath.Base(files[0]) != "ticks-2026-03-01-10.jsonl.zst" {
		t.Fatalf("first file=%s", files[0])
	}
	if got := readLines(t, files[0]); len(got) != 2 || got[1] != `{"tick":2}` {
		t.Fatalf("first hour lines=%v", got)
	}
	if got := readLines(t, files[1]); len(got) != 1 || got[0] != `{"tick":3}` {
		t.Fatalf("second hour lines=%v", got)
	}
}

func TestTickLogger_WritesEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	entry := world.TickLogEntry{Tick: 7, Happiness: 3, Busy: 2, Idle: 8, Commands: []world.Command{{Type: world.CmdUnlockTech, Tech: "Writing"}}}
	if err := l.WriteTick(entry); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "ticks", "ticks-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	lines := readLines(t, files[0])
	var got world.TickLogEntry
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatal(err)
	}
	if got.Tick != 7 || got.Idle != 8 || len(got.Commands) != 1 || got.Commands[0].Tech != "Writing" {
		t.Fatalf("entry=%+v", got)
	}
}

func TestJournal_RecordsBusEvents(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus()
	tick := uint64(41)
	j := NewJournal(dir, bus, func() uint64 { return tick }, func(err error) { t.Errorf("journal: %v", err) })

	bus.BuildingComplete.Emit(events.BuildingComplete{XY: state.XY(3, 4), Type: "Hut", Level: 1})
	tick++
	bus.TileReset.Emit(events.TileReset{XY: state.XY(5, 6)})
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	bus.TileReset.Emit(events.TileReset{XY: state.XY(7, 7)})

	files, _ := filepath.Glob(filepath.Join(dir, "journal", "*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	lines := readLines(t, files[0])
	if len(lines) != 2 {
		t.Fatalf("lines=%v", lines)
	}
	var first, second JournalEntry
	_ = json.Unmarshal([]byte(lines[0]), &first)
	_ = json.Unmarshal([]byte(lines[1]), &second)
	if first.Tick != 41 || first.Kind != "building_complete" || first.XY != "3,4" || first.Building != "Hut" {
		t.Fatalf("first=%+v", first)
	}
	if second.Tick != 42 || second.Kind != "tile_reset" || second.XY != "5,6" {
		t.Fatalf("second=%+v", second)
	}
}
