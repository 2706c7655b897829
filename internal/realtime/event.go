package realtime

import (
	"encoding/json"
	"fmt"

	"projecthub-backend/internal/model"
)

// EventKind inbound event discriminator. The set is closed: Dispatch switches
// exhaustively over these and ParseEventKind rejects anything else, so adding
// a kind is a compile-visible change, not a stringly-typed lookup.
type EventKind string

const (
	KindJoinProject   EventKind = "join-project"
	KindLeaveProject  EventKind = "leave-project"
	KindJoinBoard     EventKind = "join-whiteboard"
	KindElementAdd    EventKind = "whiteboard-element-add"
	KindElementUpdate EventKind = "whiteboard-element-update"
	KindElementRemove EventKind = "whiteboard-element-remove"
	KindCursorUpdate  EventKind = "whiteboard-cursor-update"
	KindJoinChat      EventKind = "join-chat"
	KindChatMessage   EventKind = "chat-message"
	KindChatEdit      EventKind = "chat-message-edit"
	KindChatDelete    EventKind = "chat-message-delete"
	KindChatReact     EventKind = "chat-message-react"
	KindChatPin       EventKind = "chat-message-pin"
	KindTypingStart   EventKind = "chat-typing-start"
	KindTypingStop    EventKind = "chat-typing-stop"
	KindMessageRead   EventKind = "chat-message-read"
	KindPresence      EventKind = "user-presence-update"
)

// ParseEventKind maps a wire string onto the closed kind set.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case KindJoinProject, KindLeaveProject,
		KindJoinBoard, KindElementAdd, KindElementUpdate, KindElementRemove, KindCursorUpdate,
		KindJoinChat, KindChatMessage, KindChatEdit, KindChatDelete, KindChatReact, KindChatPin,
		KindTypingStart, KindTypingStop, KindMessageRead,
		KindPresence:
		return k, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// Outbound event names
const (
	EventUserJoinedProject = "user-joined-project"
	EventUserLeftProject   = "user-left-project"
	EventBoardState        = "whiteboard-state"
	EventUserJoinedBoard   = "user-joined-whiteboard"
	EventUserLeftBoard     = "user-left-whiteboard"
	EventElementAdded      = "whiteboard-element-added"
	EventElementUpdated    = "whiteboard-element-updated"
	EventElementRemoved    = "whiteboard-element-removed"
	EventCursorUpdated     = "whiteboard-cursor-updated"
	EventChatHistory       = "chat-history"
	EventUserJoinedChat    = "user-joined-chat"
	EventChatReceived      = "chat-message-received"
	EventChatEdited        = "chat-message-edited"
	EventChatDeleted       = "chat-message-deleted"
	EventChatReacted       = "chat-message-reacted"
	EventChatPinned        = "chat-message-pinned"
	EventUserTyping        = "user-typing"
	EventMessageRead       = "message-read"
	EventPresenceChanged   = "user-presence-changed"
	EventError             = "error"
)

// Envelope wire format in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event an outbound event before serialization.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Marshal serializes an outbound event to its wire form.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// --- Inbound payloads ---

type JoinProjectPayload struct {
	ProjectID int64 `json:"projectId"`
}

type JoinBoardPayload struct {
	WhiteboardID int64 `json:"whiteboardId"`
}

// ElementData client-shaped whiteboard element.
type ElementData struct {
	ID     string         `json:"id,omitempty"`
	Type   string         `json:"type"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
	ZIndex int            `json:"zIndex"`
	Style  map[string]any `json:"style,omitempty"`
}

type ElementAddPayload struct {
	WhiteboardID int64       `json:"whiteboardId"`
	Element      ElementData `json:"element"`
}

type ElementUpdatePayload struct {
	WhiteboardID int64          `json:"whiteboardId"`
	ElementID    string         `json:"elementId"`
	Updates      map[string]any `json:"updates"`
}

type ElementRemovePayload struct {
	WhiteboardID int64  `json:"whiteboardId"`
	ElementID    string `json:"elementId"`
}

// Cursor a whiteboard pointer position.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CursorUpdatePayload struct {
	WhiteboardID int64  `json:"whiteboardId"`
	Cursor       Cursor `json:"cursor"`
}

type JoinChatPayload struct {
	ChatID int64 `json:"chatId"`
}

type ChatMessagePayload struct {
	ChatID      int64              `json:"chatId"`
	Content     string             `json:"content"`
	Type        string             `json:"type,omitempty"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
	Mentions    []int64            `json:"mentions,omitempty"`
}

type ChatEditPayload struct {
	ChatID    int64  `json:"chatId"`
	MessageID int64  `json:"messageId"`
	Content   string `json:"content"`
}

type ChatDeletePayload struct {
	ChatID    int64 `json:"chatId"`
	MessageID int64 `json:"messageId"`
}

type ChatReactPayload struct {
	ChatID    int64  `json:"chatId"`
	MessageID int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type ChatPinPayload struct {
	ChatID    int64 `json:"chatId"`
	MessageID int64 `json:"messageId"`
	Pinned    bool  `json:"pinned"`
}

type TypingPayload struct {
	ChatID int64 `json:"chatId"`
}

type ReadPayload struct {
	ChatID    int64 `json:"chatId"`
	MessageID int64 `json:"messageId,omitempty"` // 0 means latest
}

type PresenceUpdatePayload struct {
	Status    string `json:"status"`
	ProjectID int64  `json:"projectId"`
}

// --- Outbound payloads ---

// UserRef identifies the acting user in room notifications.
type UserRef struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
}

type UserRoomPayload struct {
	UserRef
	ProjectID    int64 `json:"projectId,omitempty"`
	WhiteboardID int64 `json:"whiteboardId,omitempty"`
	ChatID       int64 `json:"chatId,omitempty"`
}

// PresenceEntry per-user ephemeral whiteboard presence.
type PresenceEntry struct {
	UserRef
	Cursor Cursor `json:"cursor"`
}

type BoardStatePayload struct {
	WhiteboardID int64                     `json:"whiteboardId"`
	Elements     []model.WhiteboardElement `json:"elements"`
	Presence     []PresenceEntry           `json:"presence"`
}

type ElementEventPayload struct {
	WhiteboardID int64                    `json:"whiteboardId"`
	Element      *model.WhiteboardElement `json:"element,omitempty"`
	ElementID    string                   `json:"elementId,omitempty"`
	By           UserRef                  `json:"by"`
}

type CursorEventPayload struct {
	WhiteboardID int64  `json:"whiteboardId"`
	UserRef
	Cursor Cursor `json:"cursor"`
}

type ChatHistoryPayload struct {
	ChatID   int64               `json:"chatId"`
	Messages []model.ChatMessage `json:"messages"`
}

type ChatEventPayload struct {
	ChatID  int64              `json:"chatId"`
	Message *model.ChatMessage `json:"message"`
}

type UserTypingPayload struct {
	ChatID int64 `json:"chatId"`
	UserRef
	IsTyping bool `json:"isTyping"`
}

type MessageReadPayload struct {
	ChatID    int64 `json:"chatId"`
	MessageID int64 `json:"messageId"`
	UserID    int64 `json:"userId"`
}

type PresenceChangedPayload struct {
	UserID    int64  `json:"userId"`
	Nickname  string `json:"nickname"`
	Status    string `json:"status"`
	ProjectID int64  `json:"projectId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
