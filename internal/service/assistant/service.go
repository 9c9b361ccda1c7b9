package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/techbot/internal/logger"
	"github.com/zhouzirui/techbot/internal/model/chat"
	"github.com/zhouzirui/techbot/internal/service/ai"
	chatservice "github.com/zhouzirui/techbot/internal/service/chat"
)

var (
	ErrEmptyMessage         = errors.New("message content is required")
	ErrSessionNotSelectable = errors.New("session has no topic yet and is not selectable")
)

// RefusalMessage is the reply to anything classified as off-topic.
const RefusalMessage = "❗ I only answer *technical* questions.\n\n" +
	"Try asking me about programming, software development, hardware, AI, cloud, data, or other tech-related topics."

// FailureNotice replaces the answer when the full model cannot be reached.
const FailureNotice = "Something went wrong. Please try again later."

// Phase is a step of the per-message state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseClassifying Phase = "classifying"
	PhaseResponding  Phase = "responding"
	PhaseRefusing    Phase = "refusing"
)

// Observer is told about every phase change while a message is handled.
type Observer func(Phase)

// Classifier decides whether a question is in scope.
type Classifier interface {
	IsTechnical(ctx context.Context, question string) bool
}

// Summarizer labels a conversation. It must not fail.
type Summarizer interface {
	Summarize(ctx context.Context, messages []chat.Message) string
}

// Reply is the outcome of one user message.
type Reply struct {
	SessionID string       `json:"sessionId"`
	Message   chat.Message `json:"message"`
	Technical bool         `json:"technical"`
	Failed    bool         `json:"failed"`
	Topic     string       `json:"topic"`
}

// Service runs the classify-then-answer pipeline against a workspace store.
type Service struct {
	gateway    ai.Gateway
	classifier Classifier
	summarizer Summarizer
	fullModel  string
	now        func() time.Time
	log        *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService wires the pipeline. fullModel answers technical questions.
func NewService(gateway ai.Gateway, classifier Classifier, summarizer Summarizer, fullModel string, opts ...Option) *Service {
	s := &Service{
		gateway:    gateway,
		classifier: classifier,
		summarizer: summarizer,
		fullModel:  fullModel,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "assistant")
	return s
}

// Ask appends content to the current session, answers it and labels the
// session once it has a full exchange. Gateway failures never surface as
// errors; they become FailureNotice.
func (s *Service) Ask(ctx context.Context, store *chatservice.Store, content string, observe Observer) (Reply, error) {
	if strings.TrimSpace(content) == "" {
		return Reply{}, ErrEmptyMessage
	}
	if observe == nil {
		observe = func(Phase) {}
	}

	sessionID := store.CurrentID()
	if err := store.AppendMessage(sessionID, chat.NewMessage(chat.RoleUser, content, s.now())); err != nil {
		return Reply{}, fmt.Errorf("append user message: %w", err)
	}

	observe(PhaseClassifying)
	technical := s.classifier.IsTechnical(ctx, content)

	reply := Reply{SessionID: sessionID, Technical: technical}
	var text string
	if technical {
		observe(PhaseResponding)
		text, reply.Failed = s.answer(ctx, store, sessionID)
	} else {
		observe(PhaseRefusing)
		text = RefusalMessage
	}

	reply.Message = chat.NewMessage(chat.RoleAssistant, text, s.now())
	if err := store.AppendMessage(sessionID, reply.Message); err != nil {
		observe(PhaseIdle)
		return Reply{}, fmt.Errorf("append assistant message: %w", err)
	}

	session, err := store.Get(sessionID)
	if err != nil {
		observe(PhaseIdle)
		return Reply{}, err
	}
	if !session.HasTopic() && len(session.Messages) >= 2 {
		session.Topic = s.summarizer.Summarize(ctx, session.Messages)
		if err := store.SetTopic(sessionID, session.Topic); err != nil {
			observe(PhaseIdle)
			return Reply{}, err
		}
	}
	reply.Topic = session.Topic

	observe(PhaseIdle)
	s.log.InfoContext(ctx, "message handled",
		"session", sessionID, "technical", technical, "failed", reply.Failed, "messages", len(session.Messages))
	return reply, nil
}

// answer sends the whole transcript to the full model.
func (s *Service) answer(ctx context.Context, store *chatservice.Store, sessionID string) (string, bool) {
	session, err := store.Get(sessionID)
	if err != nil {
		s.log.ErrorContext(ctx, "load session for answer", "session", sessionID, logger.Err(err))
		return FailureNotice, true
	}

	text, err := s.gateway.Complete(ctx, s.fullModel, toConversation(session.Messages))
	if err != nil {
		s.log.ErrorContext(ctx, "full model request failed", "session", sessionID, logger.Err(err))
		return FailureNotice, true
	}
	return text, false
}

// NewChat labels the current session if it has content but no topic yet, then
// creates a fresh session and makes it current.
func (s *Service) NewChat(ctx context.Context, store *chatservice.Store) (chat.Session, error) {
	if current, err := store.Current(); err == nil && !current.HasTopic() && len(current.Messages) > 0 {
		if err := store.SetTopic(current.ID, s.summarizer.Summarize(ctx, current.Messages)); err != nil {
			return chat.Session{}, err
		}
	}

	id := store.CreateSession()
	if err := store.SetCurrent(id); err != nil {
		return chat.Session{}, err
	}
	return store.Get(id)
}

// ClearCurrent empties the current session's transcript.
func (s *Service) ClearCurrent(store *chatservice.Store) error {
	return store.ClearMessages(store.CurrentID())
}

// Select switches to a labelled session. The current session is always
// selectable; other unlabelled sessions are not.
func (s *Service) Select(store *chatservice.Store, id string) error {
	session, err := store.Get(id)
	if err != nil {
		return err
	}
	if id == store.CurrentID() {
		return nil
	}
	if !session.HasTopic() {
		return ErrSessionNotSelectable
	}
	return store.SetCurrent(id)
}

// History lists the labelled sessions in creation order.
func (s *Service) History(store *chatservice.Store) []chat.Session {
	sessions := store.List()
	out := make([]chat.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.HasTopic() {
			out = append(out, session)
		}
	}
	return out
}

func toConversation(messages []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}
