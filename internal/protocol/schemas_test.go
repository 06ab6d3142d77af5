package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"idlecity.ai/internal/protocol"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v through encoding/json so the validator sees generic values.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateMessages(t *testing.T) {
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(asJSON(t, v)); err != nil {
			t.Fatalf("validate %T: %v", v, err)
		}
	}

	validate(compileSchema(t, "hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "bot1",
	})

	digest := strings.Repeat("ab", 32)
	validate(compileSchema(t, "welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		GameID:          "game",
		City:            "Rome",
		Tick:            42,
		Catalogs: protocol.CatalogDigest{
			Resources:   digest,
			Buildings:   digest,
			Techs:       digest,
			GreatPeople: digest,
			Cities:      digest,
		},
	})

	cmdSchema := compileSchema(t, "command.schema.json")
	for _, c := range []protocol.CommandMsg{
		{Command: "place_building", X: 3, Y: 4, Building: "Hut"},
		{Command: "upgrade_building", X: 3, Y: 4},
		{Command: "downgrade_building", X: 3, Y: 4},
		{Command: "schedule_transport", X: 1, Y: 1, ToX: 5, ToY: 2, Resource: "Wood", Amount: 6},
		{Command: "cancel_transport", Job: 7},
		{Command: "refuel", Job: 7},
		{Command: "unlock_tech", Tech: "Writing"},
	} {
		c.Type = protocol.TypeCommand
		c.ProtocolVersion = protocol.Version
		c.ID = "C_" + c.Command
		validate(cmdSchema, c)
	}

	resSchema := compileSchema(t, "result.schema.json")
	validate(resSchema, protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ID: "C1", OK: true, Job: 3})
	validate(resSchema, protocol.ResultMsg{
		Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ID: "C2",
		Code: protocol.ErrNoResource, Message: "not enough Wood",
	})
}

func TestSchemas_RejectIncompleteMessages(t *testing.T) {
	cmdSchema := compileSchema(t, "command.schema.json")
	missingBuilding := protocol.CommandMsg{
		Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, ID: "C1",
		Command: "place_building", X: 1, Y: 1,
	}
	if err := cmdSchema.Validate(asJSON(t, missingBuilding)); err == nil {
		t.Fatalf("expected place_building without building to fail")
	}
	unknown := protocol.CommandMsg{
		Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, ID: "C2",
		Command: "demolish",
	}
	if err := cmdSchema.Validate(asJSON(t, unknown)); err == nil {
		t.Fatalf("expected unknown command to fail")
	}

	resSchema := compileSchema(t, "result.schema.json")
	noCode := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ID: "C3"}
	if err := resSchema.Validate(asJSON(t, noCode)); err == nil {
		t.Fatalf("expected failed result without code to fail")
	}

	helloSchema := compileSchema(t, "hello.schema.json")
	var extra any
	_ = json.Unmarshal([]byte(`{"type":"HELLO","protocol_version":"1.0","agent_name":"x"}`), &extra)
	if err := helloSchema.Validate(extra); err == nil {
		t.Fatalf("expected unknown HELLO field to fail")
	}
}
