package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"projecthub-backend/internal/model"
)

// GormWhiteboardStore WhiteboardStore backed by Postgres
type GormWhiteboardStore struct {
	db *gorm.DB
}

func NewGormWhiteboardStore(db *gorm.DB) *GormWhiteboardStore {
	return &GormWhiteboardStore{db: db}
}

// Elements returns the full element set of a board, z-order then id.
func (s *GormWhiteboardStore) Elements(ctx context.Context, whiteboardID int64) ([]model.WhiteboardElement, error) {
	var elements []model.WhiteboardElement
	err := s.db.WithContext(ctx).
		Where("whiteboard_id = ?", whiteboardID).
		Order("z_index ASC, created_at ASC").
		Find(&elements).Error
	if err != nil {
		return nil, err
	}
	return elements, nil
}

// AddElement persists a new element, stamping creator. A missing id gets a
// server-generated uuid so the caller can broadcast the authoritative copy.
func (s *GormWhiteboardStore) AddElement(ctx context.Context, el *model.WhiteboardElement) error {
	if el.ID == "" {
		el.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(el).Error
}

// UpdateElement merges the given fields into an existing element and stamps
// updated-by. Unknown element id yields ErrNotFound. Last write wins on
// concurrent updates to the same element.
func (s *GormWhiteboardStore) UpdateElement(ctx context.Context, whiteboardID int64, elementID string, updates map[string]any, userID int64) (*model.WhiteboardElement, error) {
	var el model.WhiteboardElement
	err := s.db.WithContext(ctx).
		Where("id = ? AND whiteboard_id = ?", elementID, whiteboardID).
		First(&el).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"updated_by": userID,
		"updated_at": time.Now(),
	}
	for key, val := range updates {
		switch key {
		case "type", "x", "y", "width", "height", "z_index":
			fields[key] = val
		case "style":
			if m, ok := val.(map[string]any); ok {
				fields[key] = model.ElementStyle(m)
			}
		}
	}

	if err := s.db.WithContext(ctx).Model(&el).Updates(fields).Error; err != nil {
		return nil, err
	}

	// Re-read so the broadcast carries the persisted state.
	if err := s.db.WithContext(ctx).
		Where("id = ? AND whiteboard_id = ?", elementID, whiteboardID).
		First(&el).Error; err != nil {
		return nil, err
	}
	return &el, nil
}

// RemoveElement deletes an element. Unknown id yields ErrNotFound.
func (s *GormWhiteboardStore) RemoveElement(ctx context.Context, whiteboardID int64, elementID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND whiteboard_id = ?", elementID, whiteboardID).
		Delete(&model.WhiteboardElement{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
