package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"idlecity.ai/internal/sim/events"
	"idlecity.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named prefix-YYYY-MM-DD-HH.jsonl.zst.
// Each hour opens a new zstd frame, so files stay readable after a crash mid-hour.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour || w.w == nil {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines into the current zstd frame.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var firstErr error
	if w.w != nil {
		firstErr = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.f = nil
	}
	w.w = nil
	return firstErr
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one compressed JSONL entry per tick under <cityDir>/ticks.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(cityDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(cityDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Flush() error                         { return l.w.Flush() }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// JournalEntry is one notable city event: a finished construction or a tile reset.
type JournalEntry struct {
	Tick     uint64 `json:"tick"`
	Kind     string `json:"kind"`
	XY       string `json:"xy"`
	Building string `json:"building,omitempty"`
	Level    int    `json:"level,omitempty"`
}

// Journal records building events from the bus under <cityDir>/journal.
type Journal struct {
	w    *JSONLZstdWriter
	tick func() uint64
	offs []func()
	errs func(error)
}

// NewJournal subscribes to bus. tick reports the tick the events belong to; onErr, if
// set, receives write failures, which cannot be returned from a listener.
func NewJournal(cityDir string, bus *events.Bus, tick func() uint64, onErr func(error)) *Journal {
	j := &Journal{
		w:    NewJSONLZstdWriter(filepath.Join(cityDir, "journal"), "journal"),
		tick: tick,
		errs: onErr,
	}
	j.offs = append(j.offs,
		bus.BuildingComplete.On(func(e events.BuildingComplete) {
			j.write(JournalEntry{Kind: "building_complete", XY: e.XY.String(), Building: e.Type, Level: e.Level})
		}),
		bus.TileReset.On(func(e events.TileReset) {
			j.write(JournalEntry{Kind: "tile_reset", XY: e.XY.String()})
		}),
	)
	return j
}

func (j *Journal) write(e JournalEntry) {
	e.Tick = j.tick()
	if err := j.w.Write(e); err != nil && j.errs != nil {
		j.errs(err)
	}
}

// Close unsubscribes and closes the current file.
func (j *Journal) Close() error {
	for _, off := range j.offs {
		off()
	}
	j.offs = nil
	return j.w.Close()
}
