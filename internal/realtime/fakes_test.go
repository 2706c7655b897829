package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"projecthub-backend/internal/model"
	"projecthub-backend/internal/store"
)

// fakeConn satisfies Conn without a network. Tests drive the router through
// Dispatch directly, so ReadMessage only matters for Serve-based tests.
type fakeConn struct {
	mu     sync.Mutex
	inbox  chan []byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 16)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.inbox
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbox)
	}
	return nil
}

func newTestClient(userID int64, nickname string) *Client {
	return NewClient(newFakeConn(), Identity{UserID: userID, Nickname: nickname}, 64)
}

// drainEvents empties the client's send queue, decoding each frame.
// writePump is deliberately not running in these tests.
func drainEvents(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var events []Envelope
	for {
		select {
		case data := <-c.send:
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("undecodable frame: %v", err)
			}
			events = append(events, env)
		default:
			return events
		}
	}
}

func eventTypes(events []Envelope) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

// fakeChatStore in-memory ChatStore mirroring the gorm store's semantics.
type fakeChatStore struct {
	mu         sync.Mutex
	nextID     int64
	messages   []*model.ChatMessage
	failureErr error
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{}
}

func (s *fakeChatStore) History(ctx context.Context, chatRoomID int64, limit int) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failureErr != nil {
		return nil, s.failureErr
	}
	var out []model.ChatMessage
	for _, m := range s.messages {
		if m.ChatRoomID == chatRoomID && !m.IsDeleted {
			out = append(out, *m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeChatStore) Append(ctx context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failureErr != nil {
		return s.failureErr
	}
	s.nextID++
	msg.ID = s.nextID
	msg.CreatedAt = time.Now()
	if msg.Type == "" {
		msg.Type = model.MessageTypeText
	}
	msg.ReadBy = model.ReadReceiptList{{UserID: msg.SenderID, ReadAt: msg.CreatedAt}}
	stored := *msg
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *fakeChatStore) find(chatRoomID, messageID int64) (*model.ChatMessage, error) {
	for _, m := range s.messages {
		if m.ChatRoomID == chatRoomID && m.ID == messageID {
			return m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeChatStore) Edit(ctx context.Context, chatRoomID, messageID, userID int64, content string) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.find(chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, store.ErrForbidden
	}
	if m.IsDeleted {
		return nil, store.ErrMessageDeleted
	}
	now := time.Now()
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	out := *m
	return &out, nil
}

func (s *fakeChatStore) Delete(ctx context.Context, chatRoomID, messageID, userID int64) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.find(chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, store.ErrForbidden
	}
	now := time.Now()
	m.Content = ""
	m.IsDeleted = true
	m.DeletedAt = &now
	out := *m
	return &out, nil
}

func (s *fakeChatStore) ToggleReaction(ctx context.Context, chatRoomID, messageID, userID int64, emoji string) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.find(chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, store.ErrMessageDeleted
	}
	if m.HasReaction(userID, emoji) {
		kept := m.Reactions[:0]
		for _, r := range m.Reactions {
			if r.UserID != userID || r.Emoji != emoji {
				kept = append(kept, r)
			}
		}
		m.Reactions = kept
	} else {
		m.Reactions = append(m.Reactions, model.Reaction{UserID: userID, Emoji: emoji})
	}
	out := *m
	return &out, nil
}

func (s *fakeChatStore) SetPinned(ctx context.Context, chatRoomID, messageID, userID int64, pinned bool) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.find(chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, store.ErrMessageDeleted
	}
	m.IsPinned = pinned
	out := *m
	return &out, nil
}

func (s *fakeChatStore) MarkRead(ctx context.Context, chatRoomID, messageID, userID int64) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if messageID == 0 {
		if len(s.messages) == 0 {
			return nil, store.ErrNotFound
		}
		messageID = s.messages[len(s.messages)-1].ID
	}
	m, err := s.find(chatRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if !m.HasReadReceipt(userID) {
		m.ReadBy = append(m.ReadBy, model.ReadReceipt{UserID: userID, ReadAt: time.Now()})
	}
	out := *m
	return &out, nil
}

// fakeBoardStore in-memory WhiteboardStore.
type fakeBoardStore struct {
	mu       sync.Mutex
	elements map[int64][]*model.WhiteboardElement
}

func newFakeBoardStore() *fakeBoardStore {
	return &fakeBoardStore{elements: make(map[int64][]*model.WhiteboardElement)}
}

func (s *fakeBoardStore) Elements(ctx context.Context, whiteboardID int64) ([]model.WhiteboardElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WhiteboardElement, 0, len(s.elements[whiteboardID]))
	for _, el := range s.elements[whiteboardID] {
		out = append(out, *el)
	}
	return out, nil
}

func (s *fakeBoardStore) AddElement(ctx context.Context, el *model.WhiteboardElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el.ID == "" {
		el.ID = uuid.New().String()
	}
	el.CreatedAt = time.Now()
	el.UpdatedAt = el.CreatedAt
	stored := *el
	s.elements[el.WhiteboardID] = append(s.elements[el.WhiteboardID], &stored)
	return nil
}

func (s *fakeBoardStore) UpdateElement(ctx context.Context, whiteboardID int64, elementID string, updates map[string]any, userID int64) (*model.WhiteboardElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range s.elements[whiteboardID] {
		if el.ID != elementID {
			continue
		}
		if x, ok := updates["x"].(float64); ok {
			el.X = x
		}
		if y, ok := updates["y"].(float64); ok {
			el.Y = y
		}
		el.UpdatedBy = &userID
		el.UpdatedAt = time.Now()
		out := *el
		return &out, nil
	}
	return nil, store.ErrNotFound
}

func (s *fakeBoardStore) RemoveElement(ctx context.Context, whiteboardID int64, elementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.elements[whiteboardID]
	for i, el := range list {
		if el.ID == elementID {
			s.elements[whiteboardID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// fakeMembers MembershipChecker with an allow-list.
type fakeMembers struct {
	allowed map[int64]map[int64]bool // projectID -> userID
}

func (f *fakeMembers) IsProjectMemberOrOwner(projectID, userID int64) bool {
	return f.allowed[projectID][userID]
}

func newTestRouter() (*Router, *fakeChatStore, *fakeBoardStore) {
	chat := newFakeChatStore()
	boards := newFakeBoardStore()
	r := NewRouter(NewInMemoryRegistry(), chat, boards, nil, nil, 2000)
	return r, chat, boards
}

func dispatch(t *testing.T, r *Router, c *Client, kind EventKind, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, err := json.Marshal(Envelope{Type: string(kind), Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	r.Dispatch(c, frame)
}
