package ai

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel exposes a Gateway bound to one model name as an eino chat model so
// it can be composed into chains.
type ChatModel struct {
	gateway Gateway
	model   string
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel binds gateway to modelName.
func NewChatModel(gateway Gateway, modelName string) *ChatModel {
	return &ChatModel{gateway: gateway, model: modelName}
}

// Model returns the bound model name.
func (m *ChatModel) Model() string {
	return m.model
}

// Generate implements model.BaseChatModel.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	content, err := m.gateway.Complete(ctx, m.model, input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream implements model.BaseChatModel. Completions are not streamed, so the
// reader yields the whole reply as one chunk.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is a no-op; the gateway never sends tool definitions.
func (m *ChatModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}
