// Package app assembles the assistant from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zhouzirui/techbot/internal/config"
	"github.com/zhouzirui/techbot/internal/service/ai"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	"github.com/zhouzirui/techbot/internal/service/relevance"
	"github.com/zhouzirui/techbot/internal/service/topic"
)

// NewAssistant builds the gateway and the fast-model helpers, then the
// orchestrator on top of them.
func NewAssistant(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (*assistant.Service, error) {
	gateway, err := ai.NewGateway(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("create llm gateway: %w", err)
	}
	return Assemble(ctx, gateway, cfg.FastModel, cfg.FullModel, log)
}

// Assemble wires the orchestrator over an existing gateway.
func Assemble(ctx context.Context, gateway ai.Gateway, fastModel, fullModel string, log *slog.Logger) (*assistant.Service, error) {
	classifier, err := relevance.NewClassifier(ctx, gateway, fastModel, log)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}

	summarizer, err := topic.NewSummarizer(ctx, gateway, fastModel, log)
	if err != nil {
		return nil, fmt.Errorf("create summarizer: %w", err)
	}

	return assistant.NewService(gateway, classifier, summarizer, fullModel, assistant.WithLogger(log)), nil
}
