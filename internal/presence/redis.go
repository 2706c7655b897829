package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status user-level presence state
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusIdle    Status = "IDLE"
	StatusDND     Status = "DND"
	StatusOffline Status = "OFFLINE"
)

const (
	presenceTTL     = 60 * time.Second
	presenceChannel = "presence_updates"
)

// Data presence record stored in Redis. Entries expire after presenceTTL
// unless a heartbeat extends them, so a crashed server's users age out on
// their own.
type Data struct {
	UserID        int64  `json:"user_id"`
	Status        Status `json:"status"`
	LastHeartbeat int64  `json:"last_heartbeat"`
}

// Manager tracks user presence in Redis
type Manager struct {
	client *redis.Client
}

// NewManager connects a presence manager
func NewManager(addr string, password string, db int) *Manager {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Manager{client: rdb}
}

func (m *Manager) userKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// SetPresence records the user's status and publishes the change.
func (m *Manager) SetPresence(ctx context.Context, userID int64, status Status) error {
	data := Data{
		UserID:        userID,
		Status:        status,
		LastHeartbeat: time.Now().Unix(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if err := m.client.Set(ctx, m.userKey(userID), jsonData, presenceTTL).Err(); err != nil {
		return err
	}
	return m.client.Publish(ctx, presenceChannel, jsonData).Err()
}

// UpdateHeartbeat extends the TTL of an existing presence entry.
func (m *Manager) UpdateHeartbeat(ctx context.Context, userID int64) error {
	result, err := m.client.Expire(ctx, m.userKey(userID), presenceTTL).Result()
	if err != nil {
		return err
	}
	if !result {
		return fmt.Errorf("user %d not found (offline)", userID)
	}
	return nil
}

// RemovePresence deletes the user's entry (disconnect).
func (m *Manager) RemovePresence(ctx context.Context, userID int64) error {
	return m.client.Del(ctx, m.userKey(userID)).Err()
}

// GetPresence fetches a single user's presence; nil means offline.
func (m *Manager) GetPresence(ctx context.Context, userID int64) (*Data, error) {
	val, err := m.client.Get(ctx, m.userKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data Data
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMultiPresence fetches presence for a member list in one MGET.
func (m *Manager) GetMultiPresence(ctx context.Context, userIDs []int64) (map[int64]*Data, error) {
	if len(userIDs) == 0 {
		return map[int64]*Data{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = m.userKey(id)
	}

	results, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	presenceMap := make(map[int64]*Data)
	for i, result := range results {
		if result == nil {
			continue // offline
		}

		strVal, ok := result.(string)
		if !ok {
			continue
		}

		var data Data
		if err := json.Unmarshal([]byte(strVal), &data); err == nil {
			presenceMap[userIDs[i]] = &data
		}
	}

	return presenceMap, nil
}

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Subscribe returns the pub/sub stream of presence changes.
func (m *Manager) Subscribe(ctx context.Context) *redis.PubSub {
	return m.client.Subscribe(ctx, presenceChannel)
}

// Close releases the Redis connection.
func (m *Manager) Close() error {
	return m.client.Close()
}
