// Package assistanttest provides in-memory stand-ins for the assistant's
// collaborators, for use in transport tests.
package assistanttest

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/techbot/internal/model/chat"
	"github.com/zhouzirui/techbot/internal/service/assistant"
)

// Gateway returns a canned reply or error.
type Gateway struct {
	mu    sync.Mutex
	Reply string
	Err   error
	calls int
}

func (g *Gateway) Complete(_ context.Context, _ string, _ []*schema.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.Reply, g.Err
}

// Calls reports how many completions were requested.
func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Classifier returns a fixed verdict.
type Classifier struct {
	Technical bool
}

func (c *Classifier) IsTechnical(context.Context, string) bool {
	return c.Technical
}

// Summarizer returns a fixed topic and counts calls.
type Summarizer struct {
	mu    sync.Mutex
	Topic string
	calls int
}

func (s *Summarizer) Summarize(context.Context, []chat.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.Topic
}

// Calls reports how many summaries were requested.
func (s *Summarizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Fixture bundles a Service with its fakes.
type Fixture struct {
	Gateway    *Gateway
	Classifier *Classifier
	Summarizer *Summarizer
	Service    *assistant.Service
}

// New builds a Service whose classifier answers technical and whose
// gateway answers reply.
func New(technical bool, reply string) *Fixture {
	f := &Fixture{
		Gateway:    &Gateway{Reply: reply},
		Classifier: &Classifier{Technical: technical},
		Summarizer: &Summarizer{Topic: "test topic"},
	}
	f.Service = assistant.NewService(f.Gateway, f.Classifier, f.Summarizer, "full-model",
		assistant.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return f
}
