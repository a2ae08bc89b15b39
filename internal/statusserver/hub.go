package statusserver

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/retroenv/retrogolib/log"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBacklog = 64
)

type eventMessage struct {
	Event string    `json:"event"`
	Time  time.Time `json:"time"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan eventMessage
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.send)
	})
}

// hub fans events out to the websocket subscribers. Every subscriber has
// its own writer goroutine and a bounded queue.
type hub struct {
	logger *log.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

func newHub(logger *log.Logger) *hub {
	return &hub{
		logger:      logger,
		subscribers: map[*subscriber]struct{}{},
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// serve registers the connection and blocks until it is closed.
func (h *hub) serve(conn *websocket.Conn) {
	sub := &subscriber{
		conn: conn,
		send: make(chan eventMessage, sendBacklog),
	}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(sub)
	h.readLoop(sub)

	h.remove(sub)
	_ = conn.Close()
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
	sub.close()
}

func (h *hub) broadcast(msg eventMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			h.logger.Debug("Dropping event for slow subscriber",
				log.String("event", msg.Event),
				log.String("remote", sub.conn.RemoteAddr().String()))
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}

// readLoop consumes control frames, subscribers never send data.
func (h *hub) readLoop(sub *subscriber) {
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = sub.conn.Close()
				return
			}
			if err := sub.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("Sending event failed", log.Err(err))
				_ = sub.conn.Close()
				return
			}

		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = sub.conn.Close()
				return
			}
		}
	}
}
