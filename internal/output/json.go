package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/arne314/chatpack/internal/chat"
)

// jsonMessage is the serialized shape: sender and content always,
// everything else only when configured and present.
type jsonMessage struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	ID        string `json:"id,omitempty"`
	ReplyTo   string `json:"reply_to,omitempty"`
	Edited    string `json:"edited,omitempty"`
}

func jsonTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func toJSONMessages(messages []chat.Message, cfg Config) []jsonMessage {
	out := make([]jsonMessage, len(messages))
	for i, msg := range messages {
		jm := jsonMessage{Sender: msg.Sender, Content: msg.Content}
		if cfg.IncludeTimestamps {
			jm.Timestamp = jsonTime(msg.Time)
		}
		if cfg.IncludeIDs {
			jm.ID = msg.ID
		}
		if cfg.IncludeReplies {
			jm.ReplyTo = msg.ReplyTo
		}
		if cfg.IncludeEdited {
			jm.Edited = jsonTime(msg.EditedAt)
		}
		out[i] = jm
	}
	return out
}

// writeJSON emits one indented JSON array.
func writeJSON(w io.Writer, messages []chat.Message, cfg Config) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(toJSONMessages(messages, cfg)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// writeJSONL emits one compact JSON object per line.
func writeJSONL(w io.Writer, messages []chat.Message, cfg Config) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for _, jm := range toJSONMessages(messages, cfg) {
		if err := encoder.Encode(jm); err != nil {
			return fmt.Errorf("encode jsonl: %w", err)
		}
	}
	return nil
}
