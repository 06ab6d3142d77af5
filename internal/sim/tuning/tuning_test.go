package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_ShippedFileMatchesDefaults(t *testing.T) {
	got, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("tuning.yaml=%+v, want defaults %+v", got, Defaults())
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "speed_up: 4\ntransport:\n  max_stall_ticks: 30\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SpeedUp != 4 || got.Transport.MaxStallTicks != 30 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.SaveEveryTicks != 5 || got.Transport.FuelResource != "Wood" || got.Grid.TileSize != 64 {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"speed_up: 0\n":                   "speed_up",
		"save_every_ticks: 0\n":           "save_every_ticks",
		"transport:\n  tiles_per_tick: 0": "tiles_per_tick",
		"grid:\n  tile_size: -1\n":        "tile_size",
		"speed_up: [1\n":                  "tuning.yaml",
	}
	dir := t.TempDir()
	i := 0
	for raw, want := range cases {
		i++
		p := filepath.Join(dir, "t"+string(rune('a'+i))+".yaml")
		if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(p)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%q: expected error containing %q, got %v", raw, want, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if got != Defaults() {
		t.Fatalf("missing file should still return defaults")
	}
}
