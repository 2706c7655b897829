package model

import (
	"database/sql/driver"
	"time"
)

// ElementStyle jsonb column holding free-form style attributes
// (stroke color, fill, font, opacity and whatever else the client draws with).
type ElementStyle map[string]any

func (s ElementStyle) Value() (driver.Value, error) { return jsonbValue(map[string]any(s)) }
func (s *ElementStyle) Scan(src any) error          { return jsonbScan((*map[string]any)(s), src) }

// WhiteboardElement a single durable element on a whiteboard. The ID is a
// uuid, unique within the board; clients may supply their own so optimistic
// local rendering and the persisted element share an id.
type WhiteboardElement struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	WhiteboardID int64        `gorm:"not null;index:idx_board_created" json:"whiteboard_id"`
	Type         string       `gorm:"type:varchar(30);not null" json:"type"` // shape, text, image, line, sticky
	X            float64      `json:"x"`
	Y            float64      `json:"y"`
	Width        float64      `json:"width"`
	Height       float64      `json:"height"`
	ZIndex       int          `gorm:"default:0" json:"z_index"`
	Style        ElementStyle `gorm:"type:jsonb" json:"style,omitempty"`
	CreatedBy    int64        `gorm:"not null" json:"created_by"`
	UpdatedBy    *int64       `json:"updated_by,omitempty"`
	CreatedAt    time.Time    `gorm:"autoCreateTime;index:idx_board_created" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Whiteboard Whiteboard `gorm:"foreignKey:WhiteboardID" json:"whiteboard,omitempty"`
}

func (WhiteboardElement) TableName() string {
	return "whiteboard_elements"
}
