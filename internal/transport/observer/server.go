package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"idlecity.ai/internal/observerproto"
	"idlecity.ai/internal/sim/tickdata"
	"idlecity.ai/internal/sim/world"
)

// Server streams published ticks to read-only observers. It listens on the world's
// TickChanged channel; the listener marshals each tick once and never blocks the
// simulation: a client whose queue is full misses that tick.
type Server struct {
	current   func() *tickdata.Frozen
	bootstrap observerproto.BootstrapResponse
	log       *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	clients map[string]*client
	off     func()

	sent    atomic.Uint64
	dropped atomic.Uint64
}

type client struct {
	out   chan []byte
	every atomic.Uint64
}

// NewServer subscribes to w's bus. Call it before the world starts running.
func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	st, tun, cats := w.State(), w.Tuning(), w.Catalogs()
	bs := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		GameID:          w.Options().ID,
		City:            st.City,
		Params: observerproto.CityParams{
			SpeedUp:        tun.SpeedUp,
			TileSize:       tun.Grid.TileSize,
			SaveEveryTicks: tun.SaveEveryTicks,
		},
		Buildings: append([]string(nil), cats.Buildings.IDs...),
		Resources: append([]string(nil), cats.Resources.IDs...),
	}
	if city, err := cats.City(st.City); err == nil {
		bs.Params.Width, bs.Params.Height = city.Width, city.Height
	}
	s := &Server{
		current:   w.Current,
		bootstrap: bs,
		log:       logger,
		clients:   map[string]*client{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	s.off = w.Bus().TickChanged.On(s.publish)
	return s
}

// Close stops listening for ticks. Connected clients stay open until they disconnect.
func (s *Server) Close() { s.off() }

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Stats() (sent, dropped uint64) { return s.sent.Load(), s.dropped.Load() }

func (s *Server) publish(f *tickdata.Frozen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return
	}
	b, err := encodeTick(f)
	if err != nil {
		s.log.Printf("encode tick %d: %v", f.Tick(), err)
		return
	}
	for _, c := range s.clients {
		if every := c.every.Load(); every > 1 && f.Tick()%every != 0 {
			continue
		}
		select {
		case c.out <- b:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
}

func encodeTick(f *tickdata.Frozen) ([]byte, error) {
	return json.Marshal(observerproto.TickMsg{
		Type:            observerproto.TypeTick,
		ProtocolVersion: observerproto.Version,
		Tick:            f.Tick(),
		Data:            f,
	})
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := s.bootstrap
		resp.Tick = s.current().Tick()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		c := &client{out: make(chan []byte, 16)}
		c.every.Store(uint64(sub.EveryTicks))
		if f := s.current(); !f.IsEmpty() {
			if b, err := encodeTick(f); err == nil {
				c.out <- b
			}
		}
		s.mu.Lock()
		s.clients[sid] = c
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.clients, sid)
			s.mu.Unlock()
		}()
		s.log.Printf("observer %s subscribed every=%d", sid, sub.EveryTicks)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				c.every.Store(uint64(sub.EveryTicks))
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	if sub.EveryTicks < 1 {
		sub.EveryTicks = 1
	}
	if sub.EveryTicks > 3600 {
		sub.EveryTicks = 3600
	}
	return sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
