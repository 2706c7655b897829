package realtime

import (
	"fmt"
	"log"
	"sync"
)

// Room name helpers. Rooms are plain string keys scoped by resource kind.
func ProjectRoom(id int64) string    { return fmt.Sprintf("project:%d", id) }
func WhiteboardRoom(id int64) string { return fmt.Sprintf("whiteboard:%d", id) }
func ChatRoom(id int64) string       { return fmt.Sprintf("chat:%d", id) }

// Registry tracks live connections and their room memberships and fans
// events out to rooms. Injected into the Router so tests can run against
// independent instances.
type Registry interface {
	// Join adds the connection to a room. Joining twice is a no-op.
	Join(c *Client, room string)
	// Leave removes the connection from a room. Leaving a room never joined
	// is a no-op.
	Leave(c *Client, room string)
	// Broadcast delivers the event to every member except exclude.
	// Best-effort, at-most-once per currently-connected member.
	Broadcast(room string, evt Event, exclude *Client)
	// BroadcastAll delivers the event to every member including the sender.
	BroadcastAll(room string, evt Event)
	// Members snapshots the room's current connections.
	Members(room string) []*Client
	// Count reports the room's member count.
	Count(room string) int
}

// InMemoryRegistry single-process Registry. Rooms are created lazily on
// first join and dropped when the last member leaves.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

func (r *InMemoryRegistry) Join(c *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[room] = members
	}
	if _, joined := members[c]; joined {
		return
	}
	members[c] = struct{}{}
	c.addRoom(room)
	log.Printf("[Registry] %s joined %s (%d members)", c.ID, room, len(members))
}

func (r *InMemoryRegistry) Leave(c *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return
	}
	if _, joined := members[c]; !joined {
		return
	}
	delete(members, c)
	c.removeRoom(room)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	log.Printf("[Registry] %s left %s (%d members)", c.ID, room, len(members))
}

func (r *InMemoryRegistry) Broadcast(room string, evt Event, exclude *Client) {
	data, err := evt.Marshal()
	if err != nil {
		log.Printf("[Registry] marshal %s failed: %v", evt.Type, err)
		return
	}
	for _, c := range r.Members(room) {
		if c == exclude {
			continue
		}
		c.Send(data)
	}
}

func (r *InMemoryRegistry) BroadcastAll(room string, evt Event) {
	r.Broadcast(room, evt, nil)
}

func (r *InMemoryRegistry) Members(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Client, 0, len(r.rooms[room]))
	for c := range r.rooms[room] {
		members = append(members, c)
	}
	return members
}

func (r *InMemoryRegistry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
