package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"idlecity.ai/internal/protocol"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/logistics"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/world"
)

// Server accepts command sockets. Every COMMAND is queued on the running world and
// answered with one RESULT.
type Server struct {
	world   *world.World
	log     *log.Logger
	welcome protocol.WelcomeMsg

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// OnResult, if set, sees every answered command with its result code ("" on success).
	OnResult func(command, code string)
}

// NewServer captures the static welcome fields; call it before the world starts running.
func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cats := w.Catalogs()
	return &Server{
		world: w,
		log:   logger,
		welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			GameID:          w.Options().ID,
			City:            w.State().City,
			Catalogs: protocol.CatalogDigest{
				Resources:   cats.Resources.Digest,
				Buildings:   cats.Buildings.Digest,
				Techs:       cats.Techs.Digest,
				GreatPeople: cats.GreatPeople.Digest,
				Cities:      cats.Cities.Digest,
			},
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !s.handshake(conn) {
			return
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			command, res := s.handle(r.Context(), msg)
			if s.OnResult != nil {
				s.OnResult(command, res.Code)
			}
			if err := writeJSON(conn, res); err != nil {
				return
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return false
	}
	welcome := s.welcome
	welcome.SessionID = fmt.Sprintf("S%d", s.nextID.Add(1))
	welcome.Tick = s.world.Current().Tick()
	s.log.Printf("session %s: %s connected", welcome.SessionID, hello.ClientName)
	return writeJSON(conn, welcome) == nil
}

func (s *Server) handle(ctx context.Context, msg []byte) (string, protocol.ResultMsg) {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version}
	var in protocol.CommandMsg
	if err := json.Unmarshal(msg, &in); err != nil || in.Type != protocol.TypeCommand {
		res.Code, res.Message = protocol.ErrProtoBadRequest, "expected COMMAND"
		return "invalid", res
	}
	res.ID = in.ID
	if in.ProtocolVersion != protocol.Version {
		res.Code, res.Message = protocol.ErrProtoBadRequest, "bad protocol_version"
		return in.Command, res
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	job, err := s.world.SubmitJob(ctx, ToCommand(in))
	if err != nil {
		res.Code, res.Message = CodeFor(err), err.Error()
		return in.Command, res
	}
	res.OK = true
	res.Job = uint64(job)
	return in.Command, res
}

// ToCommand maps a wire command onto the world's command type.
func ToCommand(m protocol.CommandMsg) world.Command {
	return world.Command{
		Type:     world.CommandType(m.Command),
		XY:       state.XY(m.X, m.Y),
		To:       state.XY(m.ToX, m.ToY),
		Building: m.Building,
		Resource: m.Resource,
		Amount:   m.Amount,
		Job:      state.JobID(m.Job),
		Tech:     m.Tech,
	}
}

// CodeFor maps command errors onto stable wire codes.
func CodeFor(err error) string {
	var fe *world.FatalError
	var ue *catalogs.UnknownIDError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return protocol.ErrWorldHalted
	case errors.Is(err, world.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrWorldBusy
	case errors.As(err, &ue), errors.Is(err, world.ErrUnknownCommand),
		errors.Is(err, logistics.ErrBadAmount), errors.Is(err, logistics.ErrSameTile):
		return protocol.ErrBadRequest
	case errors.Is(err, logistics.ErrInsufficientResource), errors.Is(err, world.ErrNotEnoughScience),
		errors.Is(err, world.ErrMissingDeposit):
		return protocol.ErrNoResource
	case errors.Is(err, world.ErrNoTile), errors.Is(err, world.ErrNoBuilding), errors.Is(err, world.ErrNotExplored),
		errors.Is(err, world.ErrNotPlaceable), errors.Is(err, logistics.ErrNoBuilding), errors.Is(err, logistics.ErrJobNotFound):
		return protocol.ErrInvalidTarget
	case errors.Is(err, world.ErrTileOccupied), errors.Is(err, world.ErrAlreadyUnlocked), errors.Is(err, state.ErrBadTransition):
		return protocol.ErrConflict
	case errors.Is(err, world.ErrBuildingLocked), errors.Is(err, world.ErrTechLocked):
		return protocol.ErrLocked
	}
	return protocol.ErrInternal
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
