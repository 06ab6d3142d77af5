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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"idlecity.ai/internal/persistence/savefile"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/tuning"
	"idlecity.ai/internal/sim/world"
)

func main() {
	var (
		savePath   = flag.String("save", "", "path to a .sav file")
		ticksDir   = flag.String("ticks", "", "dir containing ticks-*.jsonl.zst (optional)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		forward    = flag.Int("forward", 0, "fast-forward this many offline ticks after loading (ignored with -ticks)")
		bench      = flag.Bool("bench", false, "print throughput for -forward")
	)
	flag.Parse()

	if *savePath == "" {
		fmt.Fprintln(os.Stderr, "missing -save")
		os.Exit(2)
	}

	sv, err := savefile.Load(*savePath, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	buildings := 0
	for _, t := range sv.State.Tiles {
		if t.Building != nil {
			buildings++
		}
	}
	fmt.Printf("save v%d game=%s city=%s tick=%d saved=%s tiles=%d buildings=%d jobs=%d techs=%d\n",
		sv.Header.SchemaVersion, sv.Header.GameID, sv.Header.City, sv.Header.Tick,
		humanize.Time(time.UnixMilli(sv.Header.SavedAt)),
		len(sv.State.Tiles), buildings, len(sv.State.Jobs), len(sv.State.UnlockedTech))

	if *ticksDir == "" && *forward <= 0 {
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	st, opts, err := savefile.Import(sv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import save:", err)
		os.Exit(1)
	}
	w, err := world.New(world.Config{ID: sv.Header.GameID, Tuning: tune}, cats, st, opts, world.Hooks{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	if *ticksDir == "" {
		start := time.Now()
		if err := w.FastForward(*forward); err != nil {
			fmt.Fprintln(os.Stderr, "fast-forward:", err)
			os.Exit(1)
		}
		elapsed := time.Since(start)
		fmt.Printf("forward ok: tick=%d digest=%s\n", w.State().Tick, w.StateDigest())
		if *bench && elapsed > 0 {
			perSec := float64(*forward) / elapsed.Seconds()
			fmt.Printf("bench: %s ticks in %s (%s ticks/s, %s of game time)\n",
				humanize.Comma(int64(*forward)), elapsed.Round(time.Millisecond),
				humanize.Commaf(float64(int64(perSec))), time.Duration(*forward)*time.Second)
		}
		return
	}

	files, err := listTickFiles(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	var checked, skipped uint64
	for _, path := range files {
		if err := replayFile(w, path, *toTick, &checked, &skipped); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if *toTick != 0 && w.State().Tick >= *toTick {
			break
		}
	}
	fmt.Printf("replay ok: replayed=%s verified=%s (from save tick=%d, now tick=%d)\n",
		humanize.Comma(int64(checked)), humanize.Comma(int64(checked-skipped)), sv.Header.Tick, w.State().Tick)
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

// replayFile feeds every entry after the world's current tick through ReplayTick.
// Entries without a digest are replayed but counted in skipped.
func replayFile(w *world.World, path string, toTick uint64, checked, skipped *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry world.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick <= w.State().Tick {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			return nil
		}
		if _, err := w.ReplayTick(entry); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		*checked++
		if entry.Digest == "" {
			*skipped++
		}
	}
	return sc.Err()
}
