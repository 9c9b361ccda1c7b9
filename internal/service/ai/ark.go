package ai

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/zhouzirui/techbot/internal/config"
)

// ArkGateway serves completions through Volcengine Ark. One eino chat model is
// built per model name on first use.
type ArkGateway struct {
	cfg     config.AIConfig
	factory func(ctx context.Context, modelName string) (model.BaseChatModel, error)

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

// NewArkGateway creates a gateway backed by the Ark chat model component.
func NewArkGateway(cfg config.AIConfig) *ArkGateway {
	return &ArkGateway{
		cfg: cfg,
		factory: func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
			return cfg.NewArkChatModel(ctx, modelName)
		},
		models: make(map[string]model.BaseChatModel),
	}
}

// Complete implements Gateway.
func (g *ArkGateway) Complete(ctx context.Context, modelName string, messages []*schema.Message) (string, error) {
	if !g.cfg.HasCredentials() {
		return "", &GatewayError{Op: "generate", Model: modelName, Err: ErrMissingCredentials}
	}

	cm, err := g.chatModel(ctx, modelName)
	if err != nil {
		return "", &GatewayError{Op: "init chat model", Model: modelName, Err: err}
	}

	resp, err := cm.Generate(ctx, messages)
	if err != nil {
		return "", &GatewayError{Op: "generate", Model: modelName, Err: err}
	}
	if resp == nil {
		return "", &GatewayError{Op: "generate", Model: modelName, Err: ErrEmptyResponse}
	}
	return resp.Content, nil
}

func (g *ArkGateway) chatModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cm, ok := g.models[modelName]; ok {
		return cm, nil
	}

	cm, err := g.factory(ctx, modelName)
	if err != nil {
		return nil, errors.Wrap(err, "create ark chat model")
	}
	g.models[modelName] = cm
	return cm, nil
}
