package realtime

import (
	"encoding/json"
	"errors"
	"log"

	"projecthub-backend/internal/model"
	"projecthub-backend/internal/store"
)

// Whiteboard mutators. Each handler validates, applies the mutation to the
// durable document, then broadcasts to the board's room. Last write wins on
// concurrent edits to the same element; edits to different elements never
// conflict.

func (r *Router) handleJoinBoard(c *Client, raw json.RawMessage) {
	var p JoinBoardPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.WhiteboardID == 0 {
		c.SendError("whiteboardId is required")
		return
	}

	// A connection holds one active whiteboard; switching replaces it.
	if prev := c.ActiveBoard(); prev != 0 && prev != p.WhiteboardID {
		r.leaveBoard(c, prev)
	}

	ctx, cancel := storeContext()
	defer cancel()
	elements, err := r.boards.Elements(ctx, p.WhiteboardID)
	if err != nil {
		log.Printf("[Router] load whiteboard %d failed: %v", p.WhiteboardID, err)
		c.SendError("failed to load whiteboard")
		return
	}

	room := WhiteboardRoom(p.WhiteboardID)
	r.registry.Join(c, room)
	c.setActiveBoard(p.WhiteboardID)
	r.setCursor(p.WhiteboardID, c.Identity.UserID, Cursor{})

	// Full document + presence to the joiner; join notice to everyone else.
	c.SendEvent(Event{
		Type: EventBoardState,
		Payload: BoardStatePayload{
			WhiteboardID: p.WhiteboardID,
			Elements:     elements,
			Presence:     r.boardPresence(p.WhiteboardID),
		},
	})
	r.registry.Broadcast(room, Event{
		Type:    EventUserJoinedBoard,
		Payload: UserRoomPayload{UserRef: c.Ref(), WhiteboardID: p.WhiteboardID},
	}, c)
}

func (r *Router) handleElementAdd(c *Client, raw json.RawMessage) {
	var p ElementAddPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.WhiteboardID == 0 {
		c.SendError("whiteboardId is required")
		return
	}
	if !c.InRoom(WhiteboardRoom(p.WhiteboardID)) {
		c.SendError("not joined to this whiteboard")
		return
	}
	if p.Element.Type == "" {
		c.SendError("element type is required")
		return
	}

	el := &model.WhiteboardElement{
		ID:           p.Element.ID,
		WhiteboardID: p.WhiteboardID,
		Type:         p.Element.Type,
		X:            p.Element.X,
		Y:            p.Element.Y,
		Width:        p.Element.Width,
		Height:       p.Element.Height,
		ZIndex:       p.Element.ZIndex,
		Style:        model.ElementStyle(p.Element.Style),
		CreatedBy:    c.Identity.UserID,
	}

	ctx, cancel := storeContext()
	defer cancel()
	if err := r.boards.AddElement(ctx, el); err != nil {
		log.Printf("[Router] add element to whiteboard %d failed: %v", p.WhiteboardID, err)
		c.SendError("failed to add element")
		return
	}

	r.registry.Broadcast(WhiteboardRoom(p.WhiteboardID), Event{
		Type: EventElementAdded,
		Payload: ElementEventPayload{
			WhiteboardID: p.WhiteboardID,
			Element:      el,
			By:           c.Ref(),
		},
	}, c)
}

func (r *Router) handleElementUpdate(c *Client, raw json.RawMessage) {
	var p ElementUpdatePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.WhiteboardID == 0 || p.ElementID == "" {
		c.SendError("whiteboardId and elementId are required")
		return
	}
	if !c.InRoom(WhiteboardRoom(p.WhiteboardID)) {
		c.SendError("not joined to this whiteboard")
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	el, err := r.boards.UpdateElement(ctx, p.WhiteboardID, p.ElementID, p.Updates, c.Identity.UserID)
	if err != nil {
		// Unknown id goes to the sender only; nothing is broadcast.
		if errors.Is(err, store.ErrNotFound) {
			c.SendError("element not found")
			return
		}
		log.Printf("[Router] update element %s failed: %v", p.ElementID, err)
		c.SendError("failed to update element")
		return
	}

	r.registry.Broadcast(WhiteboardRoom(p.WhiteboardID), Event{
		Type: EventElementUpdated,
		Payload: ElementEventPayload{
			WhiteboardID: p.WhiteboardID,
			Element:      el,
			By:           c.Ref(),
		},
	}, c)
}

func (r *Router) handleElementRemove(c *Client, raw json.RawMessage) {
	var p ElementRemovePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.WhiteboardID == 0 || p.ElementID == "" {
		c.SendError("whiteboardId and elementId are required")
		return
	}
	if !c.InRoom(WhiteboardRoom(p.WhiteboardID)) {
		c.SendError("not joined to this whiteboard")
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	if err := r.boards.RemoveElement(ctx, p.WhiteboardID, p.ElementID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.SendError("element not found")
			return
		}
		log.Printf("[Router] remove element %s failed: %v", p.ElementID, err)
		c.SendError("failed to remove element")
		return
	}

	r.registry.Broadcast(WhiteboardRoom(p.WhiteboardID), Event{
		Type: EventElementRemoved,
		Payload: ElementEventPayload{
			WhiteboardID: p.WhiteboardID,
			ElementID:    p.ElementID,
			By:           c.Ref(),
		},
	}, c)
}

func (r *Router) handleCursorUpdate(c *Client, raw json.RawMessage) {
	var p CursorUpdatePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.WhiteboardID == 0 {
		c.SendError("whiteboardId is required")
		return
	}
	if !c.InRoom(WhiteboardRoom(p.WhiteboardID)) {
		c.SendError("not joined to this whiteboard")
		return
	}

	r.setCursor(p.WhiteboardID, c.Identity.UserID, p.Cursor)

	r.registry.Broadcast(WhiteboardRoom(p.WhiteboardID), Event{
		Type: EventCursorUpdated,
		Payload: CursorEventPayload{
			WhiteboardID: p.WhiteboardID,
			UserRef:      c.Ref(),
			Cursor:       p.Cursor,
		},
	}, c)
}

// leaveBoard removes the connection's whiteboard presence and notifies the
// remaining members. Shared by board switching and the disconnect reconciler.
func (r *Router) leaveBoard(c *Client, whiteboardID int64) {
	room := WhiteboardRoom(whiteboardID)
	r.removeCursor(whiteboardID, c.Identity.UserID)
	r.registry.Leave(c, room)
	c.setActiveBoard(0)
	r.registry.BroadcastAll(room, Event{
		Type:    EventUserLeftBoard,
		Payload: UserRoomPayload{UserRef: c.Ref(), WhiteboardID: whiteboardID},
	})
}

// --- cursor presence (ephemeral, wiped on disconnect) ---

func (r *Router) setCursor(whiteboardID, userID int64, cur Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	board, ok := r.cursors[whiteboardID]
	if !ok {
		board = make(map[int64]Cursor)
		r.cursors[whiteboardID] = board
	}
	board[userID] = cur
}

func (r *Router) removeCursor(whiteboardID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if board, ok := r.cursors[whiteboardID]; ok {
		delete(board, userID)
		if len(board) == 0 {
			delete(r.cursors, whiteboardID)
		}
	}
}

// boardPresence joins the room membership with the cursor map.
func (r *Router) boardPresence(whiteboardID int64) []PresenceEntry {
	r.mu.Lock()
	board := make(map[int64]Cursor, len(r.cursors[whiteboardID]))
	for id, cur := range r.cursors[whiteboardID] {
		board[id] = cur
	}
	r.mu.Unlock()

	entries := make([]PresenceEntry, 0, len(board))
	for _, member := range r.registry.Members(WhiteboardRoom(whiteboardID)) {
		cur, ok := board[member.Identity.UserID]
		if !ok {
			continue
		}
		entries = append(entries, PresenceEntry{UserRef: member.Ref(), Cursor: cur})
	}
	return entries
}
