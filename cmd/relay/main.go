// relay is a development harness: a websocket hub that forwards each peer's
// input and sync-check messages to every other peer in the session. It does
// no simulation of its own; it exists so two clients on one machine can
// exercise the rollback loop without real network plumbing.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type helloMsg struct {
	Type   string `json:"type"`
	Player int    `json:"player"`
}

type hub struct {
	log *log.Logger

	mu    sync.Mutex
	peers map[int]chan []byte
}

func newHub(logger *log.Logger) *hub {
	return &hub{log: logger, peers: make(map[int]chan []byte)}
}

func (h *hub) join(player int) (chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, taken := h.peers[player]; taken {
		return nil, false
	}
	out := make(chan []byte, 256)
	h.peers[player] = out
	return out, true
}

func (h *hub) leave(player int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out, ok := h.peers[player]; ok {
		close(out)
		delete(h.peers, player)
	}
}

// broadcast forwards raw message bytes to every peer except the sender.
// Slow peers get dropped messages rather than stalling the sender; the
// rollback core treats late input as a normal misprediction.
func (h *hub) broadcast(from int, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for player, out := range h.peers {
		if player == from {
			continue
		}
		select {
		case out <- msg:
		default:
		}
	}
}

func main() {
	var (
		addr = flag.String("addr", ":9777", "listen address")
		path = flag.String("path", "/v1/session", "websocket path")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[relay] ", log.LstdFlags|log.Lmicroseconds)
	h := newHub(logger)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  16 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
	}

	http.HandleFunc(*path, func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(h, conn, logger)
	})

	logger.Printf("listening on %s%s", *addr, *path)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Fatalf("listen: %v", err)
	}
}

func serve(h *hub, conn *websocket.Conn, logger *log.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var hello helloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != "HELLO" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return
	}
	if hello.Player < 0 || hello.Player > 7 {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad player"),
			time.Now().Add(time.Second))
		return
	}

	out, ok := h.join(hello.Player)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "player slot taken"),
			time.Now().Add(time.Second))
		return
	}
	logger.Printf("player %d joined", hello.Player)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for b := range out {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.broadcast(hello.Player, msg)
	}

	// leave closes out, which ends the writer goroutine.
	h.leave(hello.Player)
	<-done
	logger.Printf("player %d left", hello.Player)
}
