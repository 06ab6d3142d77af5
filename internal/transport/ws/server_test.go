package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"idlecity.ai/internal/protocol"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/logistics"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/terrain"
	"idlecity.ai/internal/sim/tuning"
	"idlecity.ai/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, state.TileXY) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	st := state.New("Rome", 11)
	if err := terrain.Initialize(st, cats, tuning.Defaults()); err != nil {
		t.Fatalf("terrain: %v", err)
	}
	tun := tuning.Defaults()
	tun.SpeedUp = 50
	w, err := world.New(world.Config{Tuning: tun}, cats, st, nil, world.Hooks{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	var free state.TileXY
	found := false
	st.Tiles.Each(func(tile *state.Tile) {
		if !found && tile.Explored && tile.Building == nil && len(tile.Deposit) == 0 {
			free, found = tile.XY, true
		}
	})
	if !found {
		t.Fatalf("no free tile")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w, free
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestServer_CommandRoundTrip(t *testing.T) {
	w, free := startWorld(t)
	s := NewServer(w, nil)
	var mu sync.Mutex
	var codes []string
	s.OnResult = func(command, code string) {
		mu.Lock()
		codes = append(codes, command+":"+code)
		mu.Unlock()
	}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	conn := dial(t, srv.URL)

	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"}); err != nil {
		t.Fatal(err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.City != "Rome" || welcome.SessionID == "" || welcome.Catalogs.Buildings == "" {
		t.Fatalf("welcome=%+v", welcome)
	}

	send := func(m protocol.CommandMsg) protocol.ResultMsg {
		t.Helper()
		m.Type, m.ProtocolVersion = protocol.TypeCommand, protocol.Version
		if err := conn.WriteJSON(m); err != nil {
			t.Fatal(err)
		}
		var res protocol.ResultMsg
		if err := conn.ReadJSON(&res); err != nil {
			t.Fatalf("result: %v", err)
		}
		if res.ID != m.ID {
			t.Fatalf("result id %q for command %q", res.ID, m.ID)
		}
		return res
	}

	hut := protocol.CommandMsg{ID: "c1", Command: string(world.CmdPlaceBuilding), X: free.X(), Y: free.Y(), Building: "Hut"}
	if res := send(hut); !res.OK {
		t.Fatalf("place hut: %+v", res)
	}
	hut.ID = "c2"
	if res := send(hut); res.OK || res.Code != protocol.ErrConflict {
		t.Fatalf("second hut: %+v", res)
	}
	if res := send(protocol.CommandMsg{ID: "c3", Command: string(world.CmdUnlockTech), Tech: "Writing"}); res.Code != protocol.ErrNoResource {
		t.Fatalf("unlock: %+v", res)
	}
	if res := send(protocol.CommandMsg{ID: "c4", Command: "demolish"}); res.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown: %+v", res)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"NOPE"}`)); err != nil {
		t.Fatal(err)
	}
	var res protocol.ResultMsg
	if err := conn.ReadJSON(&res); err != nil || res.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("bad message: %+v err=%v", res, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(codes) != 5 || codes[0] != "place_building:" || codes[1] != "place_building:E_CONFLICT" || codes[4] != "invalid:E_PROTO_BAD_REQUEST" {
		t.Fatalf("results=%v", codes)
	}
}

func TestServer_RejectsWrongVersion(t *testing.T) {
	w, _ := startWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).Handler())
	defer srv.Close()
	conn := dial(t, srv.URL)

	_ = conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1"})
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("want policy close, got %v", err)
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&world.FatalError{Err: world.ErrNoHeadquarter}, protocol.ErrWorldHalted},
		{world.ErrStopped, protocol.ErrWorldBusy},
		{&catalogs.UnknownIDError{Kind: "building", ID: "X"}, protocol.ErrBadRequest},
		{fmt.Errorf("wrap: %w", logistics.ErrInsufficientResource), protocol.ErrNoResource},
		{logistics.ErrJobNotFound, protocol.ErrInvalidTarget},
		{state.ErrBadTransition, protocol.ErrConflict},
		{world.ErrTechLocked, protocol.ErrLocked},
		{errors.New("boom"), protocol.ErrInternal},
	}
	for _, tc := range cases {
		if got := CodeFor(tc.err); got != tc.want || !protocol.IsKnownCode(got) {
			t.Fatalf("CodeFor(%v)=%q want %q", tc.err, got, tc.want)
		}
	}
}

func TestToCommand(t *testing.T) {
	c := ToCommand(protocol.CommandMsg{Command: "schedule_transport", X: 1, Y: 2, ToX: 3, ToY: 4, Resource: "Wood", Amount: 2})
	if c.Type != world.CmdScheduleTransport || c.XY != state.XY(1, 2) || c.To != state.XY(3, 4) || c.Amount != 2 {
		t.Fatalf("command=%+v", c)
	}
}
