package broadcast

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

const (
	sendBufferSize = 16
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers are read-only consumers of public chain-head data;
	// same-origin enforcement buys no real protection here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Config configures the broadcaster's HTTP/websocket listener.
type Config struct {
	Host string
	Port int
}

// NewRouter builds the mux.Router wrapping one Broadcaster: "/" upgrades
// to the topic's websocket stream, "/healthz" reports subscriber count.
func NewRouter(b *Broadcaster) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", b.handleUpgrade)
	r.HandleFunc("/healthz", b.handleHealthz)
	return r
}

// Handler wraps router with the teacher's permissive CORS policy (a public
// read-only broadcast endpoint has no cookie/session state to protect).
func Handler(r *mux.Router) http.Handler {
	return cors.AllowAll().Handler(r)
}

func (b *Broadcaster) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"subscribers": b.subscriberCount(),
	})
}

func (b *Broadcaster) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("broadcast: upgrade failed", "err", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBufferSize)}
	b.add(sub)
	log.Info("broadcast: subscriber connected", "topic", topic, "subscribers", b.subscriberCount())

	go b.readPump(sub)
	go b.writePump(sub)
}

// readPump discards inbound subscriber traffic (this is a publish-only
// stream) but is required to drive the websocket's control-frame and
// disconnect handling.
func (b *Broadcaster) readPump(sub *subscriber) {
	defer func() {
		b.remove(sub)
		sub.conn.Close()
	}()
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ListenAndServe starts the HTTP server serving b's router, blocking until
// the server errors or is shut down.
func ListenAndServe(cfg Config, b *Broadcaster) error {
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	handler := Handler(NewRouter(b))
	log.Info("broadcast: listening", "addr", addr)
	return http.ListenAndServe(addr, handler)
}
