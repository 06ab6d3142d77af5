package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"idlecity.ai/internal/persistence/savefile"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the save and its backup slots with their header tick.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	name := fs.String("save", "game", "save name")
	_ = fs.Parse(args)

	store := savefile.NewStore(filepath.Join(*dataDir, *name), *name, 0, nil)
	paths := []string{store.Path()}
	for n := 1; n <= savefile.BackupSlots; n++ {
		paths = append(paths, store.BackupPath(n))
	}
	found := 0
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		h, err := savefile.ReadHeader(p)
		if err != nil {
			fmt.Printf("%-24s  unreadable: %v\n", filepath.Base(p), err)
			continue
		}
		found++
		fmt.Printf("%-24s  tick=%-10d city=%-10s v%d  %8s  saved %s\n",
			filepath.Base(p), h.Tick, h.City, h.SchemaVersion,
			humanize.Bytes(uint64(fi.Size())), humanize.Time(time.UnixMilli(h.SavedAt)))
	}
	if found == 0 {
		fmt.Fprintln(os.Stderr, "no saves in", filepath.Dir(store.Path()))
		os.Exit(1)
	}
}

// restoreCmd copies backup slot n over the main save. The server must be stopped.
func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	name := fs.String("save", "game", "save name")
	slot := fs.String("slot", "1", "backup slot to restore (list shows the tick in each)")
	_ = fs.Parse(args)

	n, err := strconv.Atoi(strings.TrimSpace(*slot))
	if err != nil || n < 1 || n > savefile.BackupSlots {
		fmt.Fprintf(os.Stderr, "bad -slot %q: want 1..%d\n", *slot, savefile.BackupSlots)
		os.Exit(2)
	}

	store := savefile.NewStore(filepath.Join(*dataDir, *name), *name, 0, nil)
	sv, err := savefile.Load(store.BackupPath(n), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read backup:", err)
		os.Exit(1)
	}
	if err := savefile.Write(store.Path(), sv); err != nil {
		fmt.Fprintln(os.Stderr, "write save:", err)
		os.Exit(1)
	}
	fmt.Printf("restore ok: slot=%d tick=%d city=%s -> %s\n", n, sv.Header.Tick, sv.Header.City, store.Path())
}
