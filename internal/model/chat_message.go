package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Attachment file or image attached to a chat message
type Attachment struct {
	FileName string `json:"file_name"`
	FileKey  string `json:"file_key"` // S3 object key
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Reaction a single user's emoji reaction
type Reaction struct {
	UserID int64  `json:"user_id"`
	Emoji  string `json:"emoji"`
}

// ReadReceipt append-only record of a user having read a message
type ReadReceipt struct {
	UserID int64     `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// AttachmentList jsonb column holding attachments
type AttachmentList []Attachment

// ReactionList jsonb column holding reactions
type ReactionList []Reaction

// ReadReceiptList jsonb column holding read receipts
type ReadReceiptList []ReadReceipt

// MentionList jsonb column holding mentioned user ids
type MentionList []int64

func jsonbValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonbScan(dst any, src any) error {
	if src == nil {
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

func (l AttachmentList) Value() (driver.Value, error) { return jsonbValue([]Attachment(l)) }
func (l *AttachmentList) Scan(src any) error          { return jsonbScan((*[]Attachment)(l), src) }

func (l ReactionList) Value() (driver.Value, error) { return jsonbValue([]Reaction(l)) }
func (l *ReactionList) Scan(src any) error          { return jsonbScan((*[]Reaction)(l), src) }

func (l ReadReceiptList) Value() (driver.Value, error) { return jsonbValue([]ReadReceipt(l)) }
func (l *ReadReceiptList) Scan(src any) error          { return jsonbScan((*[]ReadReceipt)(l), src) }

func (l MentionList) Value() (driver.Value, error) { return jsonbValue([]int64(l)) }
func (l *MentionList) Scan(src any) error          { return jsonbScan((*[]int64)(l), src) }

// ChatMessage durable chat message. A deleted message keeps its row and
// metadata; Content is blanked and the deleted flag set.
type ChatMessage struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatRoomID  int64           `gorm:"not null;index:idx_room_created" json:"chat_room_id"`
	SenderID    int64           `gorm:"not null" json:"sender_id"`
	Content     string          `gorm:"type:text" json:"content"`
	Type        MessageType     `gorm:"type:varchar(20);default:'TEXT'" json:"type"`
	Attachments AttachmentList  `gorm:"type:jsonb" json:"attachments,omitempty"`
	Mentions    MentionList     `gorm:"type:jsonb" json:"mentions,omitempty"`
	Reactions   ReactionList    `gorm:"type:jsonb" json:"reactions,omitempty"`
	ReadBy      ReadReceiptList `gorm:"type:jsonb" json:"read_by,omitempty"`
	IsPinned    bool            `gorm:"default:false" json:"is_pinned"`
	IsEdited    bool            `gorm:"default:false" json:"is_edited"`
	EditedAt    *time.Time      `json:"edited_at,omitempty"`
	IsDeleted   bool            `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index:idx_room_created" json:"created_at"`

	// Relations
	ChatRoom ChatRoom `gorm:"foreignKey:ChatRoomID" json:"chat_room,omitempty"`
	Sender   User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// HasReaction reports whether the user already reacted with the emoji.
func (m *ChatMessage) HasReaction(userID int64, emoji string) bool {
	for _, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

// HasReadReceipt reports whether the user already appears in the read-by list.
func (m *ChatMessage) HasReadReceipt(userID int64) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
