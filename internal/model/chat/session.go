package chat

import "time"

// SentinelTopic marks a session whose topic has not been generated yet.
const SentinelTopic = "new chat"

// CreatedAtLayout is how session creation times are shown in the history list.
const CreatedAtLayout = "2006-01-02 15:04"

// Session captures one conversation thread and its generated topic.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Topic     string    `json:"topic"`
	Messages  []Message `json:"messages"`
}

// HasTopic reports whether the session has been labelled.
func (s Session) HasTopic() bool {
	return s.Topic != SentinelTopic
}

// DisplayCreatedAt formats the creation time for the history list.
func (s Session) DisplayCreatedAt() string {
	return s.CreatedAt.Format(CreatedAtLayout)
}

// Clone returns a copy whose message slice does not alias the original.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}
