package relevance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/techbot/internal/logger"
	"github.com/zhouzirui/techbot/internal/service/ai"
)

// ErrClassificationAmbiguous is logged when the model answers with neither yes nor no.
var ErrClassificationAmbiguous = errors.New("classification is neither yes nor no")

// Classifier decides whether a question is in scope. Anything other than a
// clear "yes" counts as out of scope.
type Classifier struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	log   *slog.Logger
}

// NewClassifier compiles the yes/no prompt chain against the given model.
func NewClassifier(ctx context.Context, gateway ai.Gateway, modelName string, log *slog.Logger) (*Classifier, error) {
	if log == nil {
		log = slog.Default()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage("{question}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(ai.NewChatModel(gateway, modelName))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile relevance classifier chain: %w", err)
	}

	return &Classifier{chain: runnable, log: log.With("component", "relevance")}, nil
}

// IsTechnical reports whether question concerns technology. Gateway failures
// and ambiguous answers yield false.
func (c *Classifier) IsTechnical(ctx context.Context, question string) bool {
	msg, err := c.chain.Invoke(ctx, map[string]any{"question": question})
	if err != nil {
		c.log.WarnContext(ctx, "classifier invoke failed, treating as not technical", logger.Err(err))
		return false
	}
	if msg == nil {
		return false
	}

	verdict := strings.ToLower(strings.TrimSpace(msg.Content))
	if strings.HasPrefix(verdict, "yes") {
		return true
	}
	if !strings.HasPrefix(verdict, "no") {
		c.log.WarnContext(ctx, "classifier answer not understood, treating as not technical",
			logger.Err(ErrClassificationAmbiguous), "answer", truncate(verdict, 80))
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

const classifierSystemPrompt = "You are a classifier. Only answer with 'yes' or 'no'. Is this question about technology, software, hardware, programming, computers, technical concepts, mathematics, or logical reasoning?"
