package savefile

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const BackupSlots = 10

// Store keeps the main save of one game plus a ring of timestamped backups.
type Store struct {
	dir  string
	name string

	mu      sync.Mutex
	backups rate.Sometimes
	counter int

	logger *log.Logger
	// OnSaved runs after every successful write of the main save.
	OnSaved func(path string, h Header)
}

// NewStore keeps saves under dir. A backup copy is written at most once per
// backupEvery; the first save always produces one.
func NewStore(dir, name string, backupEvery time.Duration, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if name == "" {
		name = "game"
	}
	return &Store{
		dir:     dir,
		name:    name,
		backups: rate.Sometimes{Interval: backupEvery},
		logger:  logger,
	}
}

func (s *Store) Path() string { return filepath.Join(s.dir, s.name+".sav") }

// BackupPath returns the path of backup slot n, 1 through 10.
func (s *Store) BackupPath(n int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%d.sav", s.name, n))
}

// Save writes the main file and, when due, the next backup slot. Saves are serialized.
func (s *Store) Save(ctx context.Context, sv Save) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path()
	if err := Write(path, sv); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	var backupErr error
	s.backups.Do(func() {
		s.counter++
		slot := s.counter%BackupSlots + 1
		bp := s.BackupPath(slot)
		if backupErr = Write(bp, sv); backupErr == nil {
			s.logger.Printf("backup tick=%d slot=%d", sv.Header.Tick, slot)
		}
	})
	if s.OnSaved != nil {
		s.OnSaved(path, sv.Header)
	}
	if backupErr != nil {
		return fmt.Errorf("write backup: %w", backupErr)
	}
	return nil
}

func (s *Store) Load(m Migrator) (Save, error) { return Load(s.Path(), m) }
