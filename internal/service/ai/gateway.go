package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/zhouzirui/techbot/internal/config"
)

var (
	// ErrMissingCredentials is reported at request time when no API key is configured.
	ErrMissingCredentials = errors.New("llm api key is not configured")
	// ErrEmptyResponse means the endpoint answered without any choice.
	ErrEmptyResponse = errors.New("llm response has no choices")
)

// Gateway issues chat-completion requests against the hosted inference endpoint.
type Gateway interface {
	// Complete sends messages verbatim and returns the text of the first choice.
	Complete(ctx context.Context, model string, messages []*schema.Message) (string, error)
}

// GatewayError is returned for any failed completion: transport, non-2xx status
// or an unusable body.
type GatewayError struct {
	Op     string
	Model  string
	Status int
	Err    error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString("llm gateway: ")
	b.WriteString(e.Op)
	if e.Model != "" {
		fmt.Fprintf(&b, " model=%s", e.Model)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGateway picks the backend named by cfg.Provider.
func NewGateway(cfg config.AIConfig, log *slog.Logger) (Gateway, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.HasCredentials() {
		log.Warn("llm credentials missing, every completion will fail until they are configured", "provider", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderGroq, config.ProviderOpenAI:
		return NewOpenAIGateway(cfg), nil
	case config.ProviderArk:
		return NewArkGateway(cfg), nil
	default:
		return nil, errors.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
