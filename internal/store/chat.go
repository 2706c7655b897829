package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"projecthub-backend/internal/model"
)

// GormChatStore ChatStore backed by Postgres
type GormChatStore struct {
	db *gorm.DB
}

func NewGormChatStore(db *gorm.DB) *GormChatStore {
	return &GormChatStore{db: db}
}

// History returns the room's messages oldest-first, excluding soft-deleted
// ones. limit <= 0 means no limit.
func (s *GormChatStore) History(ctx context.Context, chatRoomID int64, limit int) ([]model.ChatMessage, error) {
	q := s.db.WithContext(ctx).
		Where("chat_room_id = ? AND is_deleted = ?", chatRoomID, false).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var messages []model.ChatMessage
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// Append persists a new message and marks it read by its sender. The store
// fills ID and CreatedAt; callers broadcast the returned server copy.
func (s *GormChatStore) Append(ctx context.Context, msg *model.ChatMessage) error {
	msg.ReadBy = model.ReadReceiptList{{UserID: msg.SenderID, ReadAt: time.Now()}}
	if msg.Type == "" {
		msg.Type = model.MessageTypeText
	}
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *GormChatStore) find(ctx context.Context, chatRoomID, messageID int64) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := s.db.WithContext(ctx).
		Where("id = ? AND chat_room_id = ?", messageID, chatRoomID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Edit replaces the content of the sender's own message. Edits on deleted
// messages are rejected.
func (s *GormChatStore) Edit(ctx context.Context, chatRoomID, messageID, userID int64, content string) (*model.ChatMessage, error) {
	msg, err := s.find(ctx, chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, ErrMessageDeleted
	}
	if msg.SenderID != userID {
		return nil, ErrForbidden
	}

	now := time.Now()
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now

	if err := s.db.WithContext(ctx).Model(msg).Updates(map[string]any{
		"content":   content,
		"is_edited": true,
		"edited_at": now,
	}).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// Delete soft-deletes the sender's own message. The row and its metadata
// survive; content is blanked.
func (s *GormChatStore) Delete(ctx context.Context, chatRoomID, messageID, userID int64) (*model.ChatMessage, error) {
	msg, err := s.find(ctx, chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, ErrMessageDeleted
	}
	if msg.SenderID != userID {
		return nil, ErrForbidden
	}

	now := time.Now()
	msg.Content = ""
	msg.IsDeleted = true
	msg.DeletedAt = &now

	if err := s.db.WithContext(ctx).Model(msg).Updates(map[string]any{
		"content":    "",
		"is_deleted": true,
		"deleted_at": now,
	}).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// ToggleReaction adds the user's emoji reaction, or removes it when already
// present. At most one active reaction per user per emoji.
func (s *GormChatStore) ToggleReaction(ctx context.Context, chatRoomID, messageID, userID int64, emoji string) (*model.ChatMessage, error) {
	msg, err := s.find(ctx, chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, ErrMessageDeleted
	}

	if msg.HasReaction(userID, emoji) {
		filtered := make(model.ReactionList, 0, len(msg.Reactions))
		for _, r := range msg.Reactions {
			if r.UserID == userID && r.Emoji == emoji {
				continue
			}
			filtered = append(filtered, r)
		}
		msg.Reactions = filtered
	} else {
		msg.Reactions = append(msg.Reactions, model.Reaction{UserID: userID, Emoji: emoji})
	}

	if err := s.db.WithContext(ctx).Model(msg).Update("reactions", msg.Reactions).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// SetPinned pins or unpins a message.
func (s *GormChatStore) SetPinned(ctx context.Context, chatRoomID, messageID, userID int64, pinned bool) (*model.ChatMessage, error) {
	msg, err := s.find(ctx, chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, ErrMessageDeleted
	}

	msg.IsPinned = pinned
	if err := s.db.WithContext(ctx).Model(msg).Update("is_pinned", pinned).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead appends the user's read receipt. messageID <= 0 means the room's
// latest message. The read-by list is append-only with one entry per user;
// re-reads are a no-op.
func (s *GormChatStore) MarkRead(ctx context.Context, chatRoomID, messageID, userID int64) (*model.ChatMessage, error) {
	var msg *model.ChatMessage
	var err error

	if messageID > 0 {
		msg, err = s.find(ctx, chatRoomID, messageID)
	} else {
		var latest model.ChatMessage
		err = s.db.WithContext(ctx).
			Where("chat_room_id = ? AND is_deleted = ?", chatRoomID, false).
			Order("id DESC").
			First(&latest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrNotFound
		}
		msg = &latest
	}
	if err != nil {
		return nil, err
	}

	if msg.HasReadReceipt(userID) {
		return msg, nil
	}

	msg.ReadBy = append(msg.ReadBy, model.ReadReceipt{UserID: userID, ReadAt: time.Now()})
	if err := s.db.WithContext(ctx).Model(msg).Update("read_by", msg.ReadBy).Error; err != nil {
		return nil, err
	}
	return msg, nil
}
