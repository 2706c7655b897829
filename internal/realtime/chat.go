package realtime

import (
	"encoding/json"
	"errors"
	"log"

	"projecthub-backend/internal/model"
	"projecthub-backend/internal/store"
)

// Chat mutators: message lifecycle (send/edit/delete/react/pin), typing
// flags and read receipts. Messages are durable; typing state is ephemeral.

func (r *Router) handleJoinChat(c *Client, raw json.RawMessage) {
	var p JoinChatPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ChatID == 0 {
		c.SendError("chatId is required")
		return
	}

	// A connection holds one active chat; switching replaces it.
	if prev := c.ActiveChat(); prev != 0 && prev != p.ChatID {
		r.leaveChat(c, prev)
	}

	ctx, cancel := storeContext()
	defer cancel()
	history, err := r.chat.History(ctx, p.ChatID, 0)
	if err != nil {
		log.Printf("[Router] load chat %d history failed: %v", p.ChatID, err)
		c.SendError("failed to load chat history")
		return
	}

	room := ChatRoom(p.ChatID)
	r.registry.Join(c, room)
	c.setActiveChat(p.ChatID)

	c.SendEvent(Event{
		Type:    EventChatHistory,
		Payload: ChatHistoryPayload{ChatID: p.ChatID, Messages: history},
	})
	r.registry.Broadcast(room, Event{
		Type:    EventUserJoinedChat,
		Payload: UserRoomPayload{UserRef: c.Ref(), ChatID: p.ChatID},
	}, c)
}

func (r *Router) handleChatMessage(c *Client, raw json.RawMessage) {
	var p ChatMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ChatID == 0 {
		c.SendError("chatId is required")
		return
	}
	if !c.InRoom(ChatRoom(p.ChatID)) {
		c.SendError("not joined to this chat")
		return
	}
	if p.Content == "" && len(p.Attachments) == 0 {
		c.SendError("message content is required")
		return
	}
	if r.maxChatLen > 0 && len(p.Content) > r.maxChatLen {
		c.SendError("message too long")
		return
	}

	msg := &model.ChatMessage{
		ChatRoomID:  p.ChatID,
		SenderID:    c.Identity.UserID,
		Content:     p.Content,
		Type:        model.MessageType(p.Type),
		Attachments: p.Attachments,
		Mentions:    p.Mentions,
	}

	ctx, cancel := storeContext()
	defer cancel()
	if err := r.chat.Append(ctx, msg); err != nil {
		log.Printf("[Router] append message to chat %d failed: %v", p.ChatID, err)
		c.SendError("failed to send message")
		return
	}

	// The sender gets this too: it carries the server-assigned id and
	// timestamp the optimistic local copy lacks.
	r.registry.BroadcastAll(ChatRoom(p.ChatID), Event{
		Type:    EventChatReceived,
		Payload: ChatEventPayload{ChatID: p.ChatID, Message: msg},
	})
}

func (r *Router) handleChatEdit(c *Client, raw json.RawMessage) {
	var p ChatEditPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ChatID == 0 || p.MessageID == 0 {
		c.SendError("chatId and messageId are required")
		return
	}
	if !c.InRoom(ChatRoom(p.ChatID)) {
		c.SendError("not joined to this chat")
		return
	}
	if p.Content == "" {
		c.SendError("message content is required")
		return
	}
	if r.maxChatLen > 0 && len(p.Content) > r.maxChatLen {
		c.SendError("message too long")
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	msg, err := r.chat.Edit(ctx, p.ChatID, p.MessageID, c.Identity.UserID, p.Content)
	if err != nil {
		r.sendChatStoreError(c, p.MessageID, err, "edit")
		return
	}

	r.registry.Broadcast(ChatRoom(p.ChatID), Event{
		Type:    EventChatEdited,
		Payload: ChatEventPayload{ChatID: p.ChatID, Message: msg},
	}, c)
}

func (r *Router) handleChatDelete(c *Client, raw json.RawMessage) {
	var p ChatDeletePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ChatID == 0 || p.MessageID == 0 {
		c.SendError("chatId and messageId are required")
		return
	}
	if !c.InRoom(ChatRoom(p.ChatID)) {
		c.SendError("not joined to this chat")
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	msg, err := r.chat.Delete(ctx, p.ChatID, p.MessageID, c.Identity.UserID)
	if err != nil {
		r.sendChatStoreError(c, p.MessageID, err, "delete")
		return
	}

	r.registry.Broadcast(ChatRoom(p.ChatID), Event{
		Type:    EventChatDeleted,
		Payload: ChatEventPayload{ChatID: p.ChatID, Message: msg},
	}, c)
}

func (r *Router) handleChatReact(c *Client, raw json.RawMessage) {
	var p ChatReactPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ChatID == 0 || p.MessageID == 0 || p.Emoji == "" {
		c.SendError("chatId, messageId and emoji are required")
		return
	}
	if !c.InRoom(ChatRoom(p.ChatID)) {
		c.SendError("not joined to this chat")
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	msg, err := r.chat.ToggleReaction(ctx, p.ChatID, p.MessageID, c.Identity.UserID, p.Emoji)
	if err != nil {
		r.sendChatStoreError(c, p.MessageID, err, "react to")
		return
	}

	r.registry.Broadcast(ChatRoom(p.ChatID), Event{
		Type:    EventChatReacted,
		Payload: ChatEventPayload{ChatID: p.ChatID, Message: msg},
	}, c)
}

func (r *Router) handleChatPin(c *Client, raw json.RawMessage) {
	var p ChatPinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ChatID == 0 || p.MessageID == 0 {
		c.SendError("chatId and messageId are required")
		return
	}
	if !c.InRoom(ChatRoom(p.ChatID)) {
		c.SendError("not joined to this chat")
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	msg, err := r.chat.SetPinned(ctx, p.ChatID, p.MessageID, c.Identity.UserID, p.Pinned)
	if err != nil {
		r.sendChatStoreError(c, p.MessageID, err, "pin")
		return
	}

	r.registry.Broadcast(ChatRoom(p.ChatID), Event{
		Type:    EventChatPinned,
		Payload: ChatEventPayload{ChatID: p.ChatID, Message: msg},
	}, c)
}

func (r *Router) handleTyping(c *Client, raw json.RawMessage, isTyping bool) {
	var p TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ChatID == 0 {
		c.SendError("chatId is required")
		return
	}
	if !c.InRoom(ChatRoom(p.ChatID)) {
		c.SendError("not joined to this chat")
		return
	}

	r.setTyping(p.ChatID, c.Identity.UserID, isTyping)

	r.registry.Broadcast(ChatRoom(p.ChatID), Event{
		Type: EventUserTyping,
		Payload: UserTypingPayload{
			ChatID:   p.ChatID,
			UserRef:  c.Ref(),
			IsTyping: isTyping,
		},
	}, c)
}

func (r *Router) handleMessageRead(c *Client, raw json.RawMessage) {
	var p ReadPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ChatID == 0 {
		c.SendError("chatId is required")
		return
	}
	if !c.InRoom(ChatRoom(p.ChatID)) {
		c.SendError("not joined to this chat")
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	msg, err := r.chat.MarkRead(ctx, p.ChatID, p.MessageID, c.Identity.UserID)
	if err != nil {
		r.sendChatStoreError(c, p.MessageID, err, "mark read")
		return
	}

	r.registry.Broadcast(ChatRoom(p.ChatID), Event{
		Type: EventMessageRead,
		Payload: MessageReadPayload{
			ChatID:    p.ChatID,
			MessageID: msg.ID,
			UserID:    c.Identity.UserID,
		},
	}, c)
}

// leaveChat clears the connection's typing flag and chat membership, then
// tells the remaining members typing stopped. Shared by chat switching and
// the disconnect reconciler.
func (r *Router) leaveChat(c *Client, chatID int64) {
	room := ChatRoom(chatID)
	r.clearTyping(chatID, c.Identity.UserID)
	r.registry.Leave(c, room)
	c.setActiveChat(0)
	r.registry.BroadcastAll(room, Event{
		Type: EventUserTyping,
		Payload: UserTypingPayload{
			ChatID:   chatID,
			UserRef:  c.Ref(),
			IsTyping: false,
		},
	})
}

func (r *Router) sendChatStoreError(c *Client, messageID int64, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.SendError("message not found")
	case errors.Is(err, store.ErrMessageDeleted):
		c.SendError("message is deleted")
	case errors.Is(err, store.ErrForbidden):
		c.SendError("not allowed to " + action + " this message")
	default:
		log.Printf("[Router] %s message %d failed: %v", action, messageID, err)
		c.SendError("failed to " + action + " message")
	}
}

// --- typing flags (ephemeral, wiped on disconnect) ---

func (r *Router) setTyping(chatID, userID int64, isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.typing[chatID]
	if !ok {
		if !isTyping {
			return
		}
		room = make(map[int64]bool)
		r.typing[chatID] = room
	}
	if isTyping {
		room[userID] = true
	} else {
		delete(room, userID)
		if len(room) == 0 {
			delete(r.typing, chatID)
		}
	}
}

func (r *Router) clearTyping(chatID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.typing[chatID]
	if !ok {
		return
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(r.typing, chatID)
	}
}
