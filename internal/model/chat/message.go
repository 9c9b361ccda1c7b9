package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageTimeLayout is how message timestamps are shown next to each turn.
const MessageTimeLayout = "2006-01-02 15:04:05"

// Message is a single turn. Messages are append-only once stored.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// NewMessage stamps a message with the supplied time.
func NewMessage(role Role, content string, at time.Time) Message {
	return Message{Role: role, Content: content, Time: at}
}

// DisplayTime formats the message timestamp for the transcript.
func (m Message) DisplayTime() string {
	return m.Time.Format(MessageTimeLayout)
}
