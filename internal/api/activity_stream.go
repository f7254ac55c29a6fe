package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamBuffer = 32
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

// ActivityStream pushes committed actions to websocket subscribers. A client
// may narrow the stream to one asset with ?asset=. Clients that fall behind by
// more than streamBuffer actions are disconnected.
type ActivityStream struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*streamClient]struct{}
}

type streamClient struct {
	conn  *websocket.Conn
	asset string
	send  chan entity.Action
}

func NewActivityStream() *ActivityStream {
	return &ActivityStream{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*streamClient]struct{}{},
	}
}

func (s *ActivityStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().With(zap.Error(err)).Debug("ActivityStream: Upgrade failed")
		return
	}

	client := &streamClient{conn: conn, asset: r.URL.Query().Get("asset"), send: make(chan entity.Action, streamBuffer)}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	zap.L().With(zap.String("remote", r.RemoteAddr), zap.String("asset", client.asset)).Info("ActivityStream: Client connected")

	go client.writePump()
	s.readPump(client)
}

// OnActionCommitted is the event listener feeding the stream.
func (s *ActivityStream) OnActionCommitted(msg interface{}) {
	action, ok := msg.(entity.Action)
	if !ok {
		zap.L().Error("ActivityStream: Unexpected message")
		return
	}
	s.Broadcast(action)
}

func (s *ActivityStream) Broadcast(action entity.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if client.asset != "" && client.asset != action.Asset {
			continue
		}
		select {
		case client.send <- action:
		default:
			zap.L().With(zap.String("remote", client.conn.RemoteAddr().String())).Warn("ActivityStream: Client too slow, dropping")
			s.remove(client)
		}
	}
}

func (s *ActivityStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// Close disconnects every client. Hijacked connections are not closed by
// http.Server.Shutdown.
func (s *ActivityStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		s.remove(client)
	}
}

// remove must be called with mu held.
func (s *ActivityStream) remove(client *streamClient) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.send)
}

// readPump discards client frames and keeps the pong deadline moving until the
// connection fails.
func (s *ActivityStream) readPump(client *streamClient) {
	defer func() {
		s.mu.Lock()
		s.remove(client)
		s.mu.Unlock()
		_ = client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case action, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(action); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
