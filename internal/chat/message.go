package chat

import "time"

// Message is the universal representation of a single chat entry.
// Every decoder converts its platform's native export format into this
// structure, so merging, filtering and output writing work the same way
// regardless of the source.
//
// Sender and Content are always set after a successful decode. Everything
// else is optional metadata: a zero time.Time means "not present", an empty
// string ID means the platform didn't provide one. IDs are kept as text
// because platforms disagree on their shape (Telegram uses integers,
// Discord uses snowflake strings).
type Message struct {
	Sender   string    `json:"sender"`
	Content  string    `json:"content"`
	Time     time.Time `json:"timestamp,omitzero"`
	ID       string    `json:"id,omitempty"`
	ReplyTo  string    `json:"reply_to,omitempty"`
	EditedAt time.Time `json:"edited_at,omitzero"`
}

// NewMessage creates a message with only sender and content set.
func NewMessage(sender, content string) Message {
	return Message{Sender: sender, Content: content}
}

// HasTime reports whether the message carries a timestamp.
func (m Message) HasTime() bool {
	return !m.Time.IsZero()
}
