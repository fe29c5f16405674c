package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"paperbroker/broker"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 20 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer for the REST surface; the
	// stream carries only public quote data.
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans quotes out to connected websocket subscribers. Slow subscribers
// drop ticks rather than stalling the feed.
type hub struct {
	mu   sync.Mutex
	subs map[chan broker.Quote]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan broker.Quote]struct{})}
}

func (h *hub) subscribe() chan broker.Quote {
	ch := make(chan broker.Quote, sendBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan broker.Quote) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) broadcast(q broker.Quote) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- q:
		default:
		}
	}
}

// QuoteStream upgrades the connection and streams live quotes until the
// client goes away.
func (s *Server) QuoteStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade", "error", err)
		return
	}

	ch := s.hub.subscribe()
	defer func() {
		s.hub.unsubscribe(ch)
		conn.Close()
	}()

	// Drain the read side so close/ping-pong frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case q, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(q); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
