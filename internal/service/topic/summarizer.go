package topic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/techbot/internal/logger"
	"github.com/zhouzirui/techbot/internal/model/chat"
	"github.com/zhouzirui/techbot/internal/service/ai"
)

// Fallback is the label used whenever a topic cannot be generated.
const Fallback = "unknown topic"

// maxConversationRunes caps how much of the user side is sent for labelling.
const maxConversationRunes = 1000

// Summarizer derives a short lowercase topic from a conversation.
type Summarizer struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	log   *slog.Logger
}

// NewSummarizer compiles the topic prompt chain against the given model.
func NewSummarizer(ctx context.Context, gateway ai.Gateway, modelName string, log *slog.Logger) (*Summarizer, error) {
	if log == nil {
		log = slog.Default()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(topicSystemPrompt),
		schema.UserMessage("{conversation}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(ai.NewChatModel(gateway, modelName))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile topic chain: %w", err)
	}

	return &Summarizer{chain: runnable, log: log.With("component", "topic")}, nil
}

// Summarize returns a lowercase topic for messages. It never fails; errors
// and empty answers produce Fallback.
func (s *Summarizer) Summarize(ctx context.Context, messages []chat.Message) string {
	msg, err := s.chain.Invoke(ctx, map[string]any{"conversation": userTranscript(messages)})
	if err != nil {
		s.log.WarnContext(ctx, "topic generation failed, using fallback", logger.Err(err))
		return Fallback
	}
	if msg == nil {
		return Fallback
	}

	label := strings.ToLower(strings.TrimSpace(msg.Content))
	if label == "" {
		return Fallback
	}
	return label
}

// userTranscript joins the user turns and keeps the first maxConversationRunes characters.
func userTranscript(messages []chat.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == chat.RoleUser {
			parts = append(parts, m.Content)
		}
	}

	joined := []rune(strings.Join(parts, "\n"))
	if len(joined) > maxConversationRunes {
		joined = joined[:maxConversationRunes]
	}
	return string(joined)
}

const topicSystemPrompt = "Generate a short topic heading (3-7 lowercase words, no grammar) based on this conversation:\n"
