package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/techbot/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Store holds the chat sessions of a single workspace. It is not safe for
// concurrent use; Registry serialises access per workspace.
type Store struct {
	sessions  map[string]*chat.Session
	order     []string
	currentID string
	now       func() time.Time
	newID     func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides session id allocation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore returns an empty store with no current session.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*chat.Session),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreWithSession returns a store that already has a fresh current session,
// which is the state a browsing context starts in.
func NewStoreWithSession(opts ...Option) *Store {
	s := NewStore(opts...)
	s.currentID = s.CreateSession()
	return s
}

// CreateSession inserts an empty session labelled with the sentinel topic. It
// does not change the current session.
func (s *Store) CreateSession() string {
	id := s.newID()
	s.sessions[id] = &chat.Session{
		ID:        id,
		CreatedAt: s.now(),
		Topic:     chat.SentinelTopic,
		Messages:  make([]chat.Message, 0, 16),
	}
	s.order = append(s.order, id)
	return id
}

// CurrentID returns the id of the current session, or "" if none is set.
func (s *Store) CurrentID() string {
	return s.currentID
}

// Current returns a copy of the current session.
func (s *Store) Current() (chat.Session, error) {
	return s.Get(s.currentID)
}

// SetCurrent marks an existing session as current.
func (s *Store) SetCurrent(id string) error {
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	s.currentID = id
	return nil
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (chat.Session, error) {
	session, ok := s.sessions[id]
	if !ok || id == "" {
		return chat.Session{}, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// List returns copies of every session in creation order.
func (s *Store) List() []chat.Session {
	out := make([]chat.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id].Clone())
	}
	return out
}

// AppendMessage adds a message to the end of a session's transcript.
func (s *Store) AppendMessage(id string, message chat.Message) error {
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Messages = append(session.Messages, message)
	return nil
}

// ClearMessages empties a session's transcript in place; id and topic are kept.
func (s *Store) ClearMessages(id string) error {
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Messages = make([]chat.Message, 0, 16)
	return nil
}

// SetTopic overwrites a session's topic.
func (s *Store) SetTopic(id, topic string) error {
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Topic = topic
	return nil
}
