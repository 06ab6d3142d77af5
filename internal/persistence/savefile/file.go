package savefile

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Write stores s as zstd(header JSON line + gob body). The header line lets tools list
// saves without decoding the body. The file is replaced atomically.
func Write(path string, s Save) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, s); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(w io.Writer, s Save) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(s.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&s); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes a save without checking its schema version. See Load.
func Read(path string) (Save, error) {
	var s Save
	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return s, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return s, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&s); err != nil {
		return s, fmt.Errorf("gob decode: %w", err)
	}
	return s, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// Migrator upgrades an older save in place. No migrations ship today; a nil Migrator
// rejects any version other than SchemaVersion.
type Migrator interface {
	Migrate(s *Save) error
}

func Load(path string, m Migrator) (Save, error) {
	s, err := Read(path)
	if err != nil {
		return s, err
	}
	if s.Header.SchemaVersion == SchemaVersion {
		return s, nil
	}
	if m == nil {
		return s, fmt.Errorf("%s: %w: %d", filepath.Base(path), ErrVersion, s.Header.SchemaVersion)
	}
	if err := m.Migrate(&s); err != nil {
		return s, fmt.Errorf("%s: migrate from %d: %w", filepath.Base(path), s.Header.SchemaVersion, err)
	}
	if s.Header.SchemaVersion != SchemaVersion {
		return s, fmt.Errorf("%s: %w: migrator left version %d", filepath.Base(path), ErrVersion, s.Header.SchemaVersion)
	}
	return s, nil
}
