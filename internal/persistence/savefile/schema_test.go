package savefile

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestHeader_MatchesSchema(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "save_header.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	st, opts := newGame(t)
	path := filepath.Join(t.TempDir(), "game.sav")
	if err := Write(path, Export(st, opts, time.UnixMilli(1_700_000_000_000))); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	b, _ := json.Marshal(h)
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
