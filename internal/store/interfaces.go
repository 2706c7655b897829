package store

import (
	"context"
	"errors"

	"projecthub-backend/internal/model"
)

var (
	// ErrNotFound unknown message, element, room or board id
	ErrNotFound = errors.New("store: not found")
	// ErrMessageDeleted mutation attempted on a soft-deleted message
	ErrMessageDeleted = errors.New("store: message is deleted")
	// ErrForbidden caller does not own the record being mutated
	ErrForbidden = errors.New("store: forbidden")
)

// ChatStore durable chat-message document operations. History excludes
// soft-deleted messages; a deleted message keeps its row but hides content.
type ChatStore interface {
	History(ctx context.Context, chatRoomID int64, limit int) ([]model.ChatMessage, error)
	Append(ctx context.Context, msg *model.ChatMessage) error
	Edit(ctx context.Context, chatRoomID, messageID, userID int64, content string) (*model.ChatMessage, error)
	Delete(ctx context.Context, chatRoomID, messageID, userID int64) (*model.ChatMessage, error)
	ToggleReaction(ctx context.Context, chatRoomID, messageID, userID int64, emoji string) (*model.ChatMessage, error)
	SetPinned(ctx context.Context, chatRoomID, messageID, userID int64, pinned bool) (*model.ChatMessage, error)
	MarkRead(ctx context.Context, chatRoomID, messageID, userID int64) (*model.ChatMessage, error)
}

// WhiteboardStore durable whiteboard-element document operations. Element ids
// are unique within a board; update/remove on an unknown id returns
// ErrNotFound, never panics.
type WhiteboardStore interface {
	Elements(ctx context.Context, whiteboardID int64) ([]model.WhiteboardElement, error)
	AddElement(ctx context.Context, el *model.WhiteboardElement) error
	UpdateElement(ctx context.Context, whiteboardID int64, elementID string, updates map[string]any, userID int64) (*model.WhiteboardElement, error)
	RemoveElement(ctx context.Context, whiteboardID int64, elementID string) error
}
