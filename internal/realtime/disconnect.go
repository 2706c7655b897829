package realtime

import (
	"context"
	"log"
	"strconv"
	"strings"
)

func parseProjectRoom(room string) (int64, bool) {
	idStr, ok := strings.CutPrefix(room, "project:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Disconnect reconciles a closed connection: whiteboard presence, chat
// typing state and project rooms are cleaned up independently, best-effort.
// There is no client left to notify, so failures are logged and swallowed.
func (r *Router) Disconnect(c *Client) {
	if board := c.ActiveBoard(); board != 0 {
		r.leaveBoard(c, board)
	}

	if chat := c.ActiveChat(); chat != 0 {
		r.leaveChat(c, chat)
	}

	for _, room := range c.Rooms() {
		projectID, ok := parseProjectRoom(room)
		if !ok {
			continue
		}
		r.registry.Leave(c, room)
		r.registry.BroadcastAll(room, Event{
			Type:    EventUserLeftProject,
			Payload: UserRoomPayload{UserRef: c.Ref(), ProjectID: projectID},
		})
	}

	if r.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := r.presence.RemovePresence(ctx, c.Identity.UserID); err != nil {
			log.Printf("[Router] presence cleanup for user %d failed: %v", c.Identity.UserID, err)
		}
	}

	log.Printf("[Router] connection %s (user %d) disconnected", c.ID, c.Identity.UserID)
}
