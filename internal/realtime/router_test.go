package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchRejectsBadFrames(t *testing.T) {
	r, _, _ := newTestRouter()
	c := newTestClient(1, "alice")

	t.Run("MalformedJSON", func(t *testing.T) {
		r.Dispatch(c, []byte("{not json"))
		events := drainEvents(t, c)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
	})

	t.Run("UnknownEventType", func(t *testing.T) {
		r.Dispatch(c, []byte(`{"type":"fly-to-the-moon","payload":{}}`))
		events := drainEvents(t, c)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
	})

	t.Run("MissingRequiredField", func(t *testing.T) {
		dispatch(t, r, c, KindJoinProject, JoinProjectPayload{})
		events := drainEvents(t, c)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
	})
}

func TestJoinProject(t *testing.T) {
	r, _, _ := newTestRouter()
	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")

	t.Run("JoinNotifiesOthersNotSender", func(t *testing.T) {
		dispatch(t, r, alice, KindJoinProject, JoinProjectPayload{ProjectID: 10})
		assert.Empty(t, drainEvents(t, alice))

		dispatch(t, r, bob, KindJoinProject, JoinProjectPayload{ProjectID: 10})
		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventUserJoinedProject, aliceEvents[0].Type)
		assert.Empty(t, drainEvents(t, bob))
	})

	t.Run("RepeatJoinIsIdempotent", func(t *testing.T) {
		dispatch(t, r, bob, KindJoinProject, JoinProjectPayload{ProjectID: 10})
		assert.Empty(t, drainEvents(t, alice), "duplicate join must not rebroadcast")
		assert.Equal(t, 2, r.registry.Count(ProjectRoom(10)))
	})

	t.Run("ProjectRoomsAreAdditive", func(t *testing.T) {
		dispatch(t, r, alice, KindJoinProject, JoinProjectPayload{ProjectID: 11})
		assert.True(t, alice.InRoom(ProjectRoom(10)))
		assert.True(t, alice.InRoom(ProjectRoom(11)))
		drainEvents(t, alice)
	})

	t.Run("LeaveNeverJoinedIsNoop", func(t *testing.T) {
		dispatch(t, r, bob, KindLeaveProject, JoinProjectPayload{ProjectID: 99})
		assert.Empty(t, drainEvents(t, bob))
		assert.Empty(t, drainEvents(t, alice))
	})

	t.Run("LeaveNotifiesRoom", func(t *testing.T) {
		dispatch(t, r, bob, KindLeaveProject, JoinProjectPayload{ProjectID: 10})
		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventUserLeftProject, aliceEvents[0].Type)
		assert.False(t, bob.InRoom(ProjectRoom(10)))
	})
}

func TestJoinProjectMembershipGuard(t *testing.T) {
	chat := newFakeChatStore()
	boards := newFakeBoardStore()
	members := &fakeMembers{allowed: map[int64]map[int64]bool{
		10: {1: true},
	}}
	r := NewRouter(NewInMemoryRegistry(), chat, boards, nil, members, 2000)

	t.Run("MemberJoins", func(t *testing.T) {
		alice := newTestClient(1, "alice")
		dispatch(t, r, alice, KindJoinProject, JoinProjectPayload{ProjectID: 10})
		assert.True(t, alice.InRoom(ProjectRoom(10)))
	})

	t.Run("NonMemberRejected", func(t *testing.T) {
		mallory := newTestClient(3, "mallory")
		dispatch(t, r, mallory, KindJoinProject, JoinProjectPayload{ProjectID: 10})
		events := drainEvents(t, mallory)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
		assert.False(t, mallory.InRoom(ProjectRoom(10)))
	})
}

func TestWhiteboardLifecycle(t *testing.T) {
	r, _, boards := newTestRouter()
	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")

	dispatch(t, r, alice, KindJoinBoard, JoinBoardPayload{WhiteboardID: 5})
	aliceEvents := drainEvents(t, alice)
	require.Len(t, aliceEvents, 1)
	assert.Equal(t, EventBoardState, aliceEvents[0].Type)

	t.Run("StateGoesToJoinerJoinNoticeToOthers", func(t *testing.T) {
		dispatch(t, r, bob, KindJoinBoard, JoinBoardPayload{WhiteboardID: 5})

		bobEvents := drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		assert.Equal(t, EventBoardState, bobEvents[0].Type)

		var state BoardStatePayload
		require.NoError(t, json.Unmarshal(bobEvents[0].Payload, &state))
		assert.Equal(t, int64(5), state.WhiteboardID)
		assert.Len(t, state.Presence, 2, "joiner and alice both have presence entries")

		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventUserJoinedBoard, aliceEvents[0].Type)
	})

	t.Run("AddBroadcastsToOthersOnly", func(t *testing.T) {
		dispatch(t, r, alice, KindElementAdd, ElementAddPayload{
			WhiteboardID: 5,
			Element:      ElementData{Type: "rect", X: 1, Y: 2, Width: 10, Height: 10},
		})

		assert.Empty(t, drainEvents(t, alice))
		bobEvents := drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		assert.Equal(t, EventElementAdded, bobEvents[0].Type)

		var payload ElementEventPayload
		require.NoError(t, json.Unmarshal(bobEvents[0].Payload, &payload))
		require.NotNil(t, payload.Element)
		assert.NotEmpty(t, payload.Element.ID, "server assigns the element id")
		assert.Equal(t, int64(1), payload.Element.CreatedBy)
	})

	t.Run("AddThenUpdateRoundTrips", func(t *testing.T) {
		els, err := boards.Elements(t.Context(), 5)
		require.NoError(t, err)
		require.Len(t, els, 1)

		dispatch(t, r, alice, KindElementUpdate, ElementUpdatePayload{
			WhiteboardID: 5,
			ElementID:    els[0].ID,
			Updates:      map[string]any{"x": 42.0},
		})

		bobEvents := drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		assert.Equal(t, EventElementUpdated, bobEvents[0].Type)

		var payload ElementEventPayload
		require.NoError(t, json.Unmarshal(bobEvents[0].Payload, &payload))
		assert.Equal(t, 42.0, payload.Element.X)
		require.NotNil(t, payload.Element.UpdatedBy)
		assert.Equal(t, int64(1), *payload.Element.UpdatedBy)
	})

	t.Run("UnknownElementErrorsSenderOnlyNoBroadcast", func(t *testing.T) {
		dispatch(t, r, alice, KindElementUpdate, ElementUpdatePayload{
			WhiteboardID: 5,
			ElementID:    "no-such-element",
			Updates:      map[string]any{"x": 1.0},
		})

		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventError, aliceEvents[0].Type)
		assert.Empty(t, drainEvents(t, bob), "nothing may be broadcast for a failed mutation")
	})

	t.Run("RemoveUnknownElementErrorsSenderOnly", func(t *testing.T) {
		dispatch(t, r, alice, KindElementRemove, ElementRemovePayload{
			WhiteboardID: 5,
			ElementID:    "no-such-element",
		})
		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventError, aliceEvents[0].Type)
		assert.Empty(t, drainEvents(t, bob))
	})

	t.Run("MutationWithoutJoinRejected", func(t *testing.T) {
		carol := newTestClient(3, "carol")
		dispatch(t, r, carol, KindElementAdd, ElementAddPayload{
			WhiteboardID: 5,
			Element:      ElementData{Type: "rect"},
		})
		events := drainEvents(t, carol)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
		assert.Empty(t, drainEvents(t, bob))
	})

	t.Run("CursorUpdateExcludesSender", func(t *testing.T) {
		dispatch(t, r, bob, KindCursorUpdate, CursorUpdatePayload{
			WhiteboardID: 5,
			Cursor:       Cursor{X: 7, Y: 9},
		})
		assert.Empty(t, drainEvents(t, bob))

		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventCursorUpdated, aliceEvents[0].Type)

		var payload CursorEventPayload
		require.NoError(t, json.Unmarshal(aliceEvents[0].Payload, &payload))
		assert.Equal(t, 7.0, payload.Cursor.X)
		assert.Equal(t, int64(2), payload.UserID)
	})

	t.Run("FreshJoinerSeesAccumulatedElements", func(t *testing.T) {
		dave := newTestClient(4, "dave")
		dispatch(t, r, dave, KindJoinBoard, JoinBoardPayload{WhiteboardID: 5})

		daveEvents := drainEvents(t, dave)
		require.Len(t, daveEvents, 1)
		require.Equal(t, EventBoardState, daveEvents[0].Type)

		var state BoardStatePayload
		require.NoError(t, json.Unmarshal(daveEvents[0].Payload, &state))
		require.Len(t, state.Elements, 1)
		assert.Equal(t, 42.0, state.Elements[0].X)

		drainEvents(t, alice)
		drainEvents(t, bob)
		r.Disconnect(dave)
		drainEvents(t, alice)
		drainEvents(t, bob)
	})

	t.Run("SwitchingBoardsReplacesTheActiveOne", func(t *testing.T) {
		dispatch(t, r, bob, KindJoinBoard, JoinBoardPayload{WhiteboardID: 6})

		assert.Equal(t, int64(6), bob.ActiveBoard())
		assert.False(t, bob.InRoom(WhiteboardRoom(5)))
		assert.True(t, bob.InRoom(WhiteboardRoom(6)))

		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventUserLeftBoard, aliceEvents[0].Type)
		drainEvents(t, bob)
	})
}

func TestChatLifecycle(t *testing.T) {
	r, _, _ := newTestRouter()
	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")

	dispatch(t, r, alice, KindJoinChat, JoinChatPayload{ChatID: 3})
	drainEvents(t, alice)

	t.Run("JoinDeliversHistoryToSender", func(t *testing.T) {
		dispatch(t, r, bob, KindJoinChat, JoinChatPayload{ChatID: 3})

		bobEvents := drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		assert.Equal(t, EventChatHistory, bobEvents[0].Type)

		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventUserJoinedChat, aliceEvents[0].Type)
	})

	t.Run("MessageGoesToEveryoneIncludingSender", func(t *testing.T) {
		dispatch(t, r, alice, KindChatMessage, ChatMessagePayload{ChatID: 3, Content: "hello"})

		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1, "sender needs the server-assigned id and timestamp")
		assert.Equal(t, EventChatReceived, aliceEvents[0].Type)

		var payload ChatEventPayload
		require.NoError(t, json.Unmarshal(aliceEvents[0].Payload, &payload))
		require.NotNil(t, payload.Message)
		assert.NotZero(t, payload.Message.ID)
		assert.False(t, payload.Message.CreatedAt.IsZero())

		bobEvents := drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		assert.Equal(t, EventChatReceived, bobEvents[0].Type)
	})

	t.Run("OverlongMessageRejectedNotTruncated", func(t *testing.T) {
		long := make([]byte, 2001)
		for i := range long {
			long[i] = 'a'
		}
		dispatch(t, r, alice, KindChatMessage, ChatMessagePayload{ChatID: 3, Content: string(long)})

		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventError, aliceEvents[0].Type)
		assert.Empty(t, drainEvents(t, bob))
	})

	t.Run("EmptyMessageRejected", func(t *testing.T) {
		dispatch(t, r, alice, KindChatMessage, ChatMessagePayload{ChatID: 3})
		events := drainEvents(t, alice)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
	})

	t.Run("EditBySenderBroadcastsToOthers", func(t *testing.T) {
		dispatch(t, r, alice, KindChatEdit, ChatEditPayload{ChatID: 3, MessageID: 1, Content: "hello, edited"})

		assert.Empty(t, drainEvents(t, alice))
		bobEvents := drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		assert.Equal(t, EventChatEdited, bobEvents[0].Type)

		var payload ChatEventPayload
		require.NoError(t, json.Unmarshal(bobEvents[0].Payload, &payload))
		assert.True(t, payload.Message.IsEdited)
		assert.Equal(t, "hello, edited", payload.Message.Content)
	})

	t.Run("EditByNonSenderForbidden", func(t *testing.T) {
		dispatch(t, r, bob, KindChatEdit, ChatEditPayload{ChatID: 3, MessageID: 1, Content: "hijack"})
		bobEvents := drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		assert.Equal(t, EventError, bobEvents[0].Type)
		assert.Empty(t, drainEvents(t, alice))
	})

	t.Run("ReactionToggles", func(t *testing.T) {
		dispatch(t, r, bob, KindChatReact, ChatReactPayload{ChatID: 3, MessageID: 1, Emoji: "👍"})
		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)

		var payload ChatEventPayload
		require.NoError(t, json.Unmarshal(aliceEvents[0].Payload, &payload))
		require.Len(t, payload.Message.Reactions, 1)

		dispatch(t, r, bob, KindChatReact, ChatReactPayload{ChatID: 3, MessageID: 1, Emoji: "👍"})
		aliceEvents = drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		require.NoError(t, json.Unmarshal(aliceEvents[0].Payload, &payload))
		assert.Empty(t, payload.Message.Reactions, "second identical reaction removes the first")
		drainEvents(t, bob)
	})

	t.Run("TypingExcludesSender", func(t *testing.T) {
		dispatch(t, r, alice, KindTypingStart, TypingPayload{ChatID: 3})
		assert.Empty(t, drainEvents(t, alice))

		bobEvents := drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		var payload UserTypingPayload
		require.NoError(t, json.Unmarshal(bobEvents[0].Payload, &payload))
		assert.True(t, payload.IsTyping)

		dispatch(t, r, alice, KindTypingStop, TypingPayload{ChatID: 3})
		bobEvents = drainEvents(t, bob)
		require.Len(t, bobEvents, 1)
		require.NoError(t, json.Unmarshal(bobEvents[0].Payload, &payload))
		assert.False(t, payload.IsTyping)
	})

	t.Run("ReadReceiptDefaultsToLatest", func(t *testing.T) {
		dispatch(t, r, bob, KindMessageRead, ReadPayload{ChatID: 3})
		aliceEvents := drainEvents(t, alice)
		require.Len(t, aliceEvents, 1)
		assert.Equal(t, EventMessageRead, aliceEvents[0].Type)

		var payload MessageReadPayload
		require.NoError(t, json.Unmarshal(aliceEvents[0].Payload, &payload))
		assert.Equal(t, int64(1), payload.MessageID)
		assert.Equal(t, int64(2), payload.UserID)
	})

	t.Run("DeletedMessageLeavesHistory", func(t *testing.T) {
		dispatch(t, r, alice, KindChatDelete, ChatDeletePayload{ChatID: 3, MessageID: 1})
		drainEvents(t, bob)

		carol := newTestClient(4, "carol")
		dispatch(t, r, carol, KindJoinChat, JoinChatPayload{ChatID: 3})

		carolEvents := drainEvents(t, carol)
		require.Len(t, carolEvents, 1)
		var history ChatHistoryPayload
		require.NoError(t, json.Unmarshal(carolEvents[0].Payload, &history))
		assert.Empty(t, history.Messages, "soft-deleted messages are hidden from history")
	})
}

func TestJoinChatStoreFailure(t *testing.T) {
	r, chat, _ := newTestRouter()
	chat.failureErr = assert.AnError

	alice := newTestClient(1, "alice")
	dispatch(t, r, alice, KindJoinChat, JoinChatPayload{ChatID: 3})

	events := drainEvents(t, alice)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.False(t, alice.InRoom(ChatRoom(3)), "a failed join must not leave the client in the room")
}

func TestDisconnectReconciliation(t *testing.T) {
	r, _, _ := newTestRouter()
	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")

	dispatch(t, r, alice, KindJoinProject, JoinProjectPayload{ProjectID: 10})
	dispatch(t, r, alice, KindJoinBoard, JoinBoardPayload{WhiteboardID: 5})
	dispatch(t, r, alice, KindJoinChat, JoinChatPayload{ChatID: 3})
	dispatch(t, r, alice, KindTypingStart, TypingPayload{ChatID: 3})

	dispatch(t, r, bob, KindJoinProject, JoinProjectPayload{ProjectID: 10})
	dispatch(t, r, bob, KindJoinBoard, JoinBoardPayload{WhiteboardID: 5})
	dispatch(t, r, bob, KindJoinChat, JoinChatPayload{ChatID: 3})
	drainEvents(t, alice)
	drainEvents(t, bob)

	r.Disconnect(alice)

	types := eventTypes(drainEvents(t, bob))
	assert.Equal(t, 1, count(types, EventUserLeftBoard), "exactly one user-left-whiteboard")
	assert.Equal(t, 1, count(types, EventUserTyping), "exactly one typing-stopped")
	assert.Equal(t, 1, count(types, EventUserLeftProject), "exactly one user-left-project")

	assert.Equal(t, 1, r.registry.Count(WhiteboardRoom(5)))
	assert.Equal(t, 1, r.registry.Count(ChatRoom(3)))
	assert.Equal(t, 1, r.registry.Count(ProjectRoom(10)))
	assert.Empty(t, alice.Rooms())

	t.Run("SecondDisconnectIsNoop", func(t *testing.T) {
		r.Disconnect(alice)
		assert.Empty(t, drainEvents(t, bob))
	})
}

func count(ss []string, want string) int {
	n := 0
	for _, s := range ss {
		if s == want {
			n++
		}
	}
	return n
}
