package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"idlecity.ai/internal/observerproto"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/terrain"
	"idlecity.ai/internal/sim/tuning"
	"idlecity.ai/internal/sim/world"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	st := state.New("Rome", 3)
	if err := terrain.Initialize(st, cats, tuning.Defaults()); err != nil {
		t.Fatalf("terrain: %v", err)
	}
	w, err := world.New(world.Config{}, cats, st, nil, world.Hooks{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func subscribe(t *testing.T, s *Server, url string, every int) *websocket.Conn {
	t.Helper()
	before := s.Clients()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, EveryTicks: every}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.Clients() == before {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readTick(t *testing.T, conn *websocket.Conn) uint64 {
	t.Helper()
	var m struct {
		Type string          `json:"type"`
		Tick uint64          `json:"tick"`
		Data json.RawMessage `json:"data"`
	}
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Type != observerproto.TypeTick || !strings.Contains(string(m.Data), `"workers"`) {
		t.Fatalf("message=%+v", m)
	}
	return m.Tick
}

func TestServer_StreamsPublishedTicks(t *testing.T) {
	w := newWorld(t)
	s := NewServer(w, nil)
	defer s.Close()
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	all := subscribe(t, s, srv.URL, 1)
	even := subscribe(t, s, srv.URL, 2)

	for i := 0; i < 4; i++ {
		if err := w.AdvanceTick(false); err != nil {
			t.Fatal(err)
		}
	}
	for want := uint64(1); want <= 4; want++ {
		if got := readTick(t, all); got != want {
			t.Fatalf("all: tick %d, want %d", got, want)
		}
	}
	if a, b := readTick(t, even), readTick(t, even); a != 2 || b != 4 {
		t.Fatalf("even: ticks %d,%d", a, b)
	}
	if sent, _ := s.Stats(); sent != 6 {
		t.Fatalf("sent=%d", sent)
	}

	// Offline ticks are not published.
	if err := w.FastForward(3); err != nil {
		t.Fatal(err)
	}
	if err := w.AdvanceTick(false); err != nil {
		t.Fatal(err)
	}
	if got := readTick(t, all); got != 8 {
		t.Fatalf("after fast forward: tick %d", got)
	}

	// A late subscriber gets the current tick first.
	late := subscribe(t, s, srv.URL, 1)
	if got := readTick(t, late); got != 8 {
		t.Fatalf("late subscriber first tick %d", got)
	}
}

func TestServer_RejectsBadSubscribe(t *testing.T) {
	w := newWorld(t)
	s := NewServer(w, nil)
	defer s.Close()
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(map[string]string{"type": "HELLO"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if ce, ok := err.(*websocket.CloseError); !ok || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("want policy close, got %v", err)
	}
}

func TestBootstrapHandler(t *testing.T) {
	w := newWorld(t)
	s := NewServer(w, nil)
	defer s.Close()
	if err := w.FastForward(5); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp observerproto.BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.City != "Rome" || resp.Tick != 5 || resp.Params.Width == 0 || len(resp.Buildings) == 0 {
		t.Fatalf("bootstrap=%+v", resp)
	}

	req.RemoteAddr = "10.1.2.3:5555"
	rec = httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}
}
