package webserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zsprackett/agent-console/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	sendQueueSize = 32
	maxFrameSize  = 64 << 10
	writeTimeout  = 10 * time.Second
)

type role string

const (
	roleOperator role = "operator"
	roleAgent    role = "agent"
)

// client is one websocket connection. Frames are queued on send and written
// by a single writer goroutine.
type client struct {
	id   string
	role role
	user string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, r role, user string) *client {
	return &client{
		id:   uuid.New().String(),
		role: r,
		user: user,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// emit queues a frame. It reports false if the frame was dropped because the
// queue is full or the connection is closing.
func (c *client) emit(event string, payload any) bool {
	frame, err := events.Encode(event, payload)
	if err != nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) writePump() {
	defer c.close()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

// readLoop decodes frames and passes them to dispatch until the connection
// fails. Undecodable frames are logged and skipped.
func (s *Server) readLoop(c *client, dispatch func(*client, events.Envelope)) {
	c.conn.SetReadLimit(maxFrameSize)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("webserver: read failed", "client", c.id, "err", err)
			}
			return
		}
		env, err := events.Decode(raw)
		if err != nil {
			s.logger.Warn("webserver: bad frame", "client", c.id, "role", c.role, "err", err)
			continue
		}
		dispatch(c, env)
	}
}

func (s *Server) handleOperatorSocket(w http.ResponseWriter, r *http.Request) {
	user := usernameFrom(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newClient(conn, roleOperator, user)
	s.logger.Info("webserver: operator connected", "user", user, "client", c.id)
	go c.writePump()

	s.readLoop(c, s.dispatchOperator)

	s.rooms.leave(user, c)
	c.close()
	s.logger.Info("webserver: operator disconnected", "user", user, "client", c.id)
}

func (s *Server) handleAgentSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newClient(conn, roleAgent, "")
	s.logger.Info("webserver: agent connected", "client", c.id, "remote", r.RemoteAddr)
	go c.writePump()

	s.readLoop(c, s.dispatchAgent)

	c.close()
	if c.user != "" && s.unregisterAgent(c.user, c) {
		s.rooms.broadcast(c.user, events.AgentStatus, events.StatusPayload{
			Status:  events.StatusDisconnected,
			Message: "Agent disconnected.",
		})
	}
	s.logger.Info("webserver: agent disconnected", "user", c.user, "client", c.id)
}
