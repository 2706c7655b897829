package realtime

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Identity the authenticated user bound to a connection at handshake.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// Conn the slice of the websocket connection the realtime layer touches.
// Lets tests substitute an in-memory pipe for the real transport.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client one authenticated connection. Purely runtime state: created on
// handshake acceptance, destroyed on transport close, never persisted.
type Client struct {
	ID       string
	Identity Identity

	conn Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu          sync.Mutex
	rooms       map[string]struct{}
	activeBoard int64 // 0 when not on a whiteboard
	activeChat  int64 // 0 when not in a chat
}

// NewClient wraps an accepted connection. sendBuf bounds the outbound queue;
// frames are dropped, not blocked on, when a peer cannot keep up.
func NewClient(conn Conn, identity Identity, sendBuf int) *Client {
	if sendBuf <= 0 {
		sendBuf = 256
	}
	return &Client{
		ID:       uuid.New().String(),
		Identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBuf),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// Ref the client's identity as broadcast payloads carry it.
func (c *Client) Ref() UserRef {
	return UserRef{UserID: c.Identity.UserID, Nickname: c.Identity.Nickname}
}

// Send queues a frame for delivery. Never blocks; drops when the buffer is
// full since broadcast is best-effort.
func (c *Client) Send(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Printf("[Client %s] send buffer full, dropping frame", c.ID)
	}
}

// SendEvent serializes and queues an outbound event.
func (c *Client) SendEvent(evt Event) {
	data, err := evt.Marshal()
	if err != nil {
		log.Printf("[Client %s] marshal %s failed: %v", c.ID, evt.Type, err)
		return
	}
	c.Send(data)
}

// SendError reports a request failure to this connection only.
func (c *Client) SendError(message string) {
	c.SendEvent(Event{Type: EventError, Payload: ErrorPayload{Message: message}})
}

// writePump drains the send queue onto the wire, preserving queue order.
func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[Client %s] write failed: %v", c.ID, err)
				c.close()
				return
			}
		}
	}
}

// close tears the connection down once.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = struct{}{}
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// InRoom reports current membership in a room.
func (c *Client) InRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

// Rooms snapshots the joined room names.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// ActiveBoard the whiteboard this connection is currently on, 0 for none.
// A connection holds at most one active whiteboard; joining another replaces
// it.
func (c *Client) ActiveBoard() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeBoard
}

func (c *Client) setActiveBoard(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeBoard = id
}

// ActiveChat the chat this connection is currently in, 0 for none.
func (c *Client) ActiveChat() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeChat
}

func (c *Client) setActiveChat(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeChat = id
}
