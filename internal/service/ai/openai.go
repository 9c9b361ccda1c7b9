package ai

import (
	"context"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/techbot/internal/config"
)

// OpenAIGateway talks to any OpenAI-compatible chat-completions endpoint (Groq by default).
type OpenAIGateway struct {
	api    *openai.Client
	hasKey bool
}

// NewOpenAIGateway builds a gateway for cfg.BaseURL using cfg.APIKey.
func NewOpenAIGateway(cfg config.AIConfig) *OpenAIGateway {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIGateway{
		api:    openai.NewClientWithConfig(clientCfg),
		hasKey: cfg.APIKey != "",
	}
}

// Complete implements Gateway.
func (g *OpenAIGateway) Complete(ctx context.Context, model string, messages []*schema.Message) (string, error) {
	if !g.hasKey {
		return "", &GatewayError{Op: "create chat completion", Model: model, Err: ErrMissingCredentials}
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}

	resp, err := g.api.CreateChatCompletion(ctx, req)
	if err != nil {
		gerr := &GatewayError{Op: "create chat completion", Model: model, Err: err}
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		switch {
		case errors.As(err, &apiErr):
			gerr.Status = apiErr.HTTPStatusCode
		case errors.As(err, &reqErr):
			gerr.Status = reqErr.HTTPStatusCode
		}
		return "", gerr
	}

	if len(resp.Choices) == 0 {
		return "", &GatewayError{Op: "read chat completion", Model: model, Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}
