package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"idlecity.ai/internal/protocol"
)

// bot keeps a supply route busy: every interval it schedules a transport from one tile
// to another and logs the RESULT. An optional tech is unlocked first.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "command socket url")
		name     = flag.String("name", "bot", "client name")
		from     = flag.String("from", "", "source tile x,y (required)")
		to       = flag.String("to", "", "destination tile x,y (required)")
		resource = flag.String("resource", "Wood", "resource to move")
		amount   = flag.Float64("amount", 5, "amount per transport")
		every    = flag.Duration("every", 30*time.Second, "interval between transports")
		tech     = flag.String("unlock", "", "tech to unlock on connect (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	fx, fy, err := parseXY(*from)
	if err != nil {
		logger.Fatalf("bad -from: %v", err)
	}
	tx, ty, err := parseXY(*to)
	if err != nil {
		logger.Fatalf("bad -to: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	results := make(chan protocol.ResultMsg, 8)
	go func() {
		defer close(results)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeWelcome:
				var w protocol.WelcomeMsg
				if err := json.Unmarshal(msg, &w); err != nil {
					continue
				}
				logger.Printf("WELCOME session=%s city=%s tick=%d", w.SessionID, w.City, w.Tick)
			case protocol.TypeResult:
				var r protocol.ResultMsg
				if err := json.Unmarshal(msg, &r); err != nil {
					continue
				}
				results <- r
			}
		}
	}()

	seq := 0
	send := func(cmd protocol.CommandMsg) {
		seq++
		cmd.Type = protocol.TypeCommand
		cmd.ProtocolVersion = protocol.Version
		cmd.ID = fmt.Sprintf("%s_%d", *name, seq)
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Printf("send %s: %v", cmd.Command, err)
		}
	}

	if t := strings.TrimSpace(*tech); t != "" {
		send(protocol.CommandMsg{Command: "unlock_tech", Tech: t})
	}
	schedule := func() {
		send(protocol.CommandMsg{
			Command:  "schedule_transport",
			X:        fx,
			Y:        fy,
			ToX:      tx,
			ToY:      ty,
			Resource: *resource,
			Amount:   *amount,
		})
	}
	schedule()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	tick := time.NewTicker(*every)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			schedule()
		case r, ok := <-results:
			if !ok {
				logger.Printf("connection closed")
				return
			}
			if r.OK {
				logger.Printf("%s ok job=%d", r.ID, r.Job)
			} else {
				logger.Printf("%s %s: %s", r.ID, r.Code, r.Message)
			}
		}
	}
}

func parseXY(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected x,y")
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
