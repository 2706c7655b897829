package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBColumns(t *testing.T) {
	t.Run("ReactionListRoundTrip", func(t *testing.T) {
		in := ReactionList{{UserID: 1, Emoji: "👍"}, {UserID: 2, Emoji: "🎉"}}
		raw, err := in.Value()
		require.NoError(t, err)

		var out ReactionList
		require.NoError(t, out.Scan(raw))
		assert.Equal(t, in, out)
	})

	t.Run("ScanBytes", func(t *testing.T) {
		var out MentionList
		require.NoError(t, out.Scan([]byte(`[1,2,3]`)))
		assert.Equal(t, MentionList{1, 2, 3}, out)
	})

	t.Run("ScanNilLeavesZero", func(t *testing.T) {
		var out AttachmentList
		require.NoError(t, out.Scan(nil))
		assert.Empty(t, out)
	})

	t.Run("ScanUnsupportedType", func(t *testing.T) {
		var out ReactionList
		assert.Error(t, out.Scan(42))
	})

	t.Run("ElementStyleRoundTrip", func(t *testing.T) {
		in := ElementStyle{"stroke": "#ff0000", "opacity": 0.5}
		raw, err := in.Value()
		require.NoError(t, err)

		var out ElementStyle
		require.NoError(t, out.Scan(raw))
		assert.Equal(t, "#ff0000", out["stroke"])
		assert.Equal(t, 0.5, out["opacity"])
	})
}

func TestChatMessageHelpers(t *testing.T) {
	msg := ChatMessage{
		Reactions: ReactionList{{UserID: 1, Emoji: "👍"}},
		ReadBy:    ReadReceiptList{{UserID: 1, ReadAt: time.Now()}},
	}

	assert.True(t, msg.HasReaction(1, "👍"))
	assert.False(t, msg.HasReaction(1, "🎉"), "same user, different emoji")
	assert.False(t, msg.HasReaction(2, "👍"), "different user, same emoji")

	assert.True(t, msg.HasReadReceipt(1))
	assert.False(t, msg.HasReadReceipt(2))
}
