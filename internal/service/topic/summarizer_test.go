package topic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/techbot/internal/model/chat"
	"github.com/zhouzirui/techbot/internal/service/ai"
)

type fakeGateway struct {
	reply string
	err   error
	calls int
	input []*schema.Message
}

func (f *fakeGateway) Complete(_ context.Context, _ string, messages []*schema.Message) (string, error) {
	f.calls++
	f.input = messages
	return f.reply, f.err
}

func newTestSummarizer(t *testing.T, gw ai.Gateway) *Summarizer {
	t.Helper()
	s, err := NewSummarizer(context.Background(), gw, "fast-model", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func conversation() []chat.Message {
	now := time.Now()
	return []chat.Message{
		chat.NewMessage(chat.RoleUser, "How do goroutines work?", now),
		chat.NewMessage(chat.RoleAssistant, "They are lightweight threads.", now),
		chat.NewMessage(chat.RoleUser, "And channels?", now),
	}
}

func TestSummarizeSendsOnlyUserTurns(t *testing.T) {
	gw := &fakeGateway{reply: "  Go Concurrency Basics \n"}
	s := newTestSummarizer(t, gw)

	got := s.Summarize(context.Background(), conversation())

	assert.Equal(t, "go concurrency basics", got)
	require.Len(t, gw.input, 2)
	assert.Equal(t, schema.System, gw.input[0].Role)
	assert.Equal(t, topicSystemPrompt, gw.input[0].Content)
	assert.Equal(t, schema.User, gw.input[1].Role)
	assert.Equal(t, "How do goroutines work?\nAnd channels?", gw.input[1].Content)
}

func TestSummarizeFallbackOnGatewayError(t *testing.T) {
	gw := &fakeGateway{err: &ai.GatewayError{Op: "create chat completion", Err: errors.New("503")}}
	s := newTestSummarizer(t, gw)

	assert.Equal(t, Fallback, s.Summarize(context.Background(), conversation()))
	assert.Equal(t, "unknown topic", Fallback)
}

func TestSummarizeFallbackOnBlankAnswer(t *testing.T) {
	s := newTestSummarizer(t, &fakeGateway{reply: "   "})

	assert.Equal(t, Fallback, s.Summarize(context.Background(), conversation()))
}

func TestUserTranscriptTruncatesByCharacter(t *testing.T) {
	long := strings.Repeat("é", 1500)
	got := userTranscript([]chat.Message{chat.NewMessage(chat.RoleUser, long, time.Now())})

	assert.Equal(t, maxConversationRunes, utf8.RuneCountInString(got))
}

func TestUserTranscriptIgnoresAssistant(t *testing.T) {
	got := userTranscript([]chat.Message{
		chat.NewMessage(chat.RoleAssistant, "hello", time.Now()),
	})
	assert.Empty(t, got)
}
