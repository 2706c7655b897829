package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"projecthub-backend/internal/presence"
	"projecthub-backend/internal/store"
)

const storeTimeout = 5 * time.Second

// MembershipChecker answers whether a user may enter a project's rooms.
type MembershipChecker interface {
	IsProjectMemberOrOwner(projectID, userID int64) bool
}

// Router receives inbound events from connections, applies document
// mutations, and re-broadcasts derived events to the relevant rooms.
// Room membership and the ephemeral presence maps are mutated only here and
// in the disconnect reconciler.
type Router struct {
	registry Registry
	chat     store.ChatStore
	boards   store.WhiteboardStore
	presence *presence.Manager // nil when presence tracking is disabled
	members  MembershipChecker // nil skips room authorization

	maxChatLen int

	mu      sync.Mutex
	cursors map[int64]map[int64]Cursor // whiteboardID -> userID -> cursor
	typing  map[int64]map[int64]bool   // chatID -> userID -> typing flag
}

// NewRouter wires the router against its collaborators. maxChatLen <= 0
// disables the message length cap.
func NewRouter(reg Registry, chat store.ChatStore, boards store.WhiteboardStore, pres *presence.Manager, members MembershipChecker, maxChatLen int) *Router {
	return &Router{
		registry:   reg,
		chat:       chat,
		boards:     boards,
		presence:   pres,
		members:    members,
		maxChatLen: maxChatLen,
		cursors:    make(map[int64]map[int64]Cursor),
		typing:     make(map[int64]map[int64]bool),
	}
}

// Serve runs the connection's read loop until the transport closes, then
// reconciles. Events from one connection are processed in receipt order;
// interleaving across connections is unordered.
func (r *Router) Serve(c *Client) {
	go c.writePump()

	defer func() {
		r.Disconnect(c)
		c.close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		r.Dispatch(c, raw)
	}
}

// Dispatch decodes one inbound frame and routes it by kind. The switch is
// exhaustive over the closed EventKind set.
func (r *Router) Dispatch(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.SendError("malformed event")
		return
	}

	kind, err := ParseEventKind(env.Type)
	if err != nil {
		c.SendError(err.Error())
		return
	}

	switch kind {
	case KindJoinProject:
		r.handleJoinProject(c, env.Payload)
	case KindLeaveProject:
		r.handleLeaveProject(c, env.Payload)
	case KindJoinBoard:
		r.handleJoinBoard(c, env.Payload)
	case KindElementAdd:
		r.handleElementAdd(c, env.Payload)
	case KindElementUpdate:
		r.handleElementUpdate(c, env.Payload)
	case KindElementRemove:
		r.handleElementRemove(c, env.Payload)
	case KindCursorUpdate:
		r.handleCursorUpdate(c, env.Payload)
	case KindJoinChat:
		r.handleJoinChat(c, env.Payload)
	case KindChatMessage:
		r.handleChatMessage(c, env.Payload)
	case KindChatEdit:
		r.handleChatEdit(c, env.Payload)
	case KindChatDelete:
		r.handleChatDelete(c, env.Payload)
	case KindChatReact:
		r.handleChatReact(c, env.Payload)
	case KindChatPin:
		r.handleChatPin(c, env.Payload)
	case KindTypingStart:
		r.handleTyping(c, env.Payload, true)
	case KindTypingStop:
		r.handleTyping(c, env.Payload, false)
	case KindMessageRead:
		r.handleMessageRead(c, env.Payload)
	case KindPresence:
		r.handlePresenceUpdate(c, env.Payload)
	}
}

func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// --- Project rooms (additive, independent of whiteboard/chat) ---

func (r *Router) handleJoinProject(c *Client, raw json.RawMessage) {
	var p JoinProjectPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ProjectID == 0 {
		c.SendError("projectId is required")
		return
	}

	if r.members != nil && !r.members.IsProjectMemberOrOwner(p.ProjectID, c.Identity.UserID) {
		c.SendError("not a member of this project")
		return
	}

	room := ProjectRoom(p.ProjectID)
	if c.InRoom(room) {
		return
	}
	r.registry.Join(c, room)
	r.registry.Broadcast(room, Event{
		Type:    EventUserJoinedProject,
		Payload: UserRoomPayload{UserRef: c.Ref(), ProjectID: p.ProjectID},
	}, c)
}

func (r *Router) handleLeaveProject(c *Client, raw json.RawMessage) {
	var p JoinProjectPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ProjectID == 0 {
		c.SendError("projectId is required")
		return
	}

	room := ProjectRoom(p.ProjectID)
	if !c.InRoom(room) {
		// leaving a room never joined is a no-op
		return
	}
	r.registry.Leave(c, room)
	r.registry.BroadcastAll(room, Event{
		Type:    EventUserLeftProject,
		Payload: UserRoomPayload{UserRef: c.Ref(), ProjectID: p.ProjectID},
	})
}

// --- Presence ---

func (r *Router) handlePresenceUpdate(c *Client, raw json.RawMessage) {
	var p PresenceUpdatePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Status == "" || p.ProjectID == 0 {
		c.SendError("status and projectId are required")
		return
	}

	if r.presence != nil {
		ctx, cancel := storeContext()
		defer cancel()
		if err := r.presence.SetPresence(ctx, c.Identity.UserID, presence.Status(p.Status)); err != nil {
			log.Printf("[Router] presence update for user %d failed: %v", c.Identity.UserID, err)
		}
	}

	r.registry.Broadcast(ProjectRoom(p.ProjectID), Event{
		Type: EventPresenceChanged,
		Payload: PresenceChangedPayload{
			UserID:    c.Identity.UserID,
			Nickname:  c.Identity.Nickname,
			Status:    p.Status,
			ProjectID: p.ProjectID,
		},
	}, c)
}
