package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/beacon/internal/model/chat"
)

func placeholder(t *testing.T) (*Conversation, *TurnHandle) {
	t.Helper()
	conv := NewConversation()
	require.NoError(t, conv.AppendUserTurn("hi"))
	h, err := conv.AppendAssistantPlaceholder()
	require.NoError(t, err)
	return conv, h
}

func lastContent(turns []chat.Turn) string {
	return turns[len(turns)-1].Content
}

func TestStreamYieldsEveryPrefix(t *testing.T) {
	const text = "Héllo, 世界!"
	_, h := placeholder(t)

	var got []string
	for frame := range NewPresenter(0).Stream(context.Background(), text, h) {
		got = append(got, lastContent(frame))
	}

	runes := []rune(text)
	require.Len(t, got, len(runes))
	for k, content := range got {
		assert.Equal(t, string(runes[:k+1]), content)
	}
}

func TestStreamEmptyTextYieldsOnce(t *testing.T) {
	_, h := placeholder(t)

	frames := 0
	for frame := range NewPresenter(time.Hour).Stream(context.Background(), "", h) {
		frames++
		assert.Equal(t, "", lastContent(frame))
	}
	assert.Equal(t, 1, frames)
}

func TestStreamStopsWhenConsumerBreaks(t *testing.T) {
	conv, h := placeholder(t)

	for frame := range NewPresenter(0).Stream(context.Background(), "abcdef", h) {
		if lastContent(frame) == "abc" {
			break
		}
	}
	assert.Equal(t, "abc", lastContent(conv.Transcript()))
}

func TestStreamStopsOnCancel(t *testing.T) {
	_, h := placeholder(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := 0
	for range NewPresenter(5*time.Millisecond).Stream(ctx, "abcdef", h) {
		frames++
		if frames == 2 {
			cancel()
		}
	}
	assert.Equal(t, 2, frames)
}

func TestStreamStopsWhenHandleStale(t *testing.T) {
	conv, h := placeholder(t)

	frames := 0
	for range NewPresenter(0).Stream(context.Background(), "abcdef", h) {
		frames++
		if frames == 1 {
			conv.Clear()
		}
	}
	assert.Equal(t, 1, frames)
	assert.Empty(t, conv.Transcript())
}

func TestStreamIsRestartablePerCall(t *testing.T) {
	_, h := placeholder(t)
	seq := NewPresenter(0).Stream(context.Background(), "ab", h)

	for range 2 {
		var got []string
		for frame := range seq {
			got = append(got, lastContent(frame))
		}
		assert.Equal(t, []string{"a", "ab"}, got)
	}
}

func TestStreamWaitsBetweenFrames(t *testing.T) {
	_, h := placeholder(t)
	const delay = 10 * time.Millisecond

	start := time.Now()
	for range NewPresenter(delay).Stream(context.Background(), "abc", h) {
	}
	assert.GreaterOrEqual(t, time.Since(start), 3*delay)
}
