package catalogs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

func TestSchemas_ValidateConfigs(t *testing.T) {
	for _, name := range []string{"resources", "buildings", "techs", "great_people", "cities"} {
		s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", name+".schema.json"))
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		raw, err := os.ReadFile(filepath.Join(configDir, name+".json"))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("unmarshal %s: %v", name, err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", name, err)
		}
	}
}

func TestSchemas_ValidateTuning(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "tuning.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(configDir, "tuning.yaml"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	// YAML ints become float64 like any JSON document would.
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSchemas_RejectBadBuilding(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "buildings.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var v any
	_ = json.Unmarshal([]byte(`[{"id":"Market","kind":"market","build_ticks":5}]`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected market without slots to fail")
	}
	_ = json.Unmarshal([]byte(`[{"id":"Hut","kind":"housing","build_ticks":3,"cost":{"Wood":0}}]`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected zero cost to fail")
	}
}
