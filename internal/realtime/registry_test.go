package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRegistry(t *testing.T) {
	reg := NewInMemoryRegistry()
	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")

	t.Run("JoinAndCount", func(t *testing.T) {
		reg.Join(alice, "project:1")
		reg.Join(bob, "project:1")
		assert.Equal(t, 2, reg.Count("project:1"))

		reg.Join(alice, "project:1")
		assert.Equal(t, 2, reg.Count("project:1"), "double join must not double count")
	})

	t.Run("BroadcastExcludesSender", func(t *testing.T) {
		reg.Broadcast("project:1", Event{Type: EventUserJoinedProject}, alice)
		assert.Empty(t, drainEvents(t, alice))
		require.Len(t, drainEvents(t, bob), 1)
	})

	t.Run("BroadcastAllIncludesEveryone", func(t *testing.T) {
		reg.BroadcastAll("project:1", Event{Type: EventChatReceived})
		require.Len(t, drainEvents(t, alice), 1)
		require.Len(t, drainEvents(t, bob), 1)
	})

	t.Run("BroadcastToEmptyRoomIsNoop", func(t *testing.T) {
		reg.Broadcast("project:404", Event{Type: EventChatReceived}, nil)
	})

	t.Run("LeaveDropsEmptyRoom", func(t *testing.T) {
		reg.Leave(alice, "project:1")
		reg.Leave(bob, "project:1")
		assert.Equal(t, 0, reg.Count("project:1"))
		assert.Empty(t, reg.Members("project:1"))

		reg.Leave(bob, "project:1")
	})
}

func TestSendBufferDropsWhenFull(t *testing.T) {
	slow := NewClient(newFakeConn(), Identity{UserID: 9, Nickname: "slow"}, 2)

	slow.Send([]byte("a"))
	slow.Send([]byte("b"))
	slow.Send([]byte("c")) // buffer is 2, this one drops

	var got [][]byte
	for {
		select {
		case data := <-slow.send:
			got = append(got, data)
			continue
		default:
		}
		break
	}

	require.Len(t, got, 2)
	assert.Equal(t, "a", string(got[0]), "queue order is preserved")
	assert.Equal(t, "b", string(got[1]))
}

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "project:7", ProjectRoom(7))
	assert.Equal(t, "whiteboard:7", WhiteboardRoom(7))
	assert.Equal(t, "chat:7", ChatRoom(7))

	id, ok := parseProjectRoom("project:42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = parseProjectRoom("whiteboard:42")
	assert.False(t, ok)
	_, ok = parseProjectRoom("project:nope")
	assert.False(t, ok)
}
