package decoder

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arne314/chatpack/internal/chat"
)

// TelegramDecoder reads Telegram Desktop JSON exports: a single document
// with a top-level "messages" array. Service entries (joins, pins and the
// like carry a type other than "message") are dropped.
type TelegramDecoder struct {
	cfg StreamingConfig
}

func (d *TelegramDecoder) Platform() Platform {
	return Telegram
}

// telegramRawMessage mirrors one element of the export's messages array.
// The text field is polymorphic (plain string or an array of styled
// fragments), so it stays raw until extraction.
type telegramRawMessage struct {
	ID         *int64          `json:"id"`
	Type       string          `json:"type"`
	Date       string          `json:"date"`
	DateUnix   string          `json:"date_unixtime"`
	From       *string         `json:"from"`
	Text       json.RawMessage `json:"text"`
	ReplyTo    *int64          `json:"reply_to_message_id"`
	Edited     string          `json:"edited"`
	EditedUnix string          `json:"edited_unixtime"`
}

type telegramExport struct {
	Messages *[]telegramRawMessage `json:"messages"`
}

func (d *TelegramDecoder) Decode(path string) ([]chat.Message, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read Telegram export: %w", err)
	}
	return d.decodeText(string(content), path)
}

func (d *TelegramDecoder) DecodeText(content string) ([]chat.Message, error) {
	return d.decodeText(content, "")
}

func (d *TelegramDecoder) decodeText(content, path string) ([]chat.Message, error) {
	var export telegramExport
	if err := json.Unmarshal([]byte(content), &export); err != nil {
		return nil, &ParseError{Platform: Telegram, Path: path, Err: err}
	}
	if export.Messages == nil {
		return nil, &FormatError{Platform: Telegram, Path: path, Reason: "no messages array found"}
	}

	messages := make([]chat.Message, 0, len(*export.Messages))
	for _, raw := range *export.Messages {
		if msg, ok := raw.message(); ok {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (d *TelegramDecoder) Stream(path string) iter.Seq2[chat.Message, error] {
	return func(yield func(chat.Message, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(chat.Message{}, fmt.Errorf("open Telegram export: %w", err))
			return
		}
		defer f.Close()

		scanner, err := newJSONArrayScanner(f, Telegram, path, d.cfg)
		if err != nil {
			yield(chat.Message{}, err)
			return
		}

		for {
			raw, line, err := scanner.next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(chat.Message{}, err)
				return
			}

			var rawMsg telegramRawMessage
			if err := json.Unmarshal(raw, &rawMsg); err != nil {
				parseErr := &ParseError{Platform: Telegram, Path: path, Line: line, Err: err}
				if d.cfg.SkipInvalid {
					log.Debugf("Skipping invalid record: %v", parseErr)
					continue
				}
				yield(chat.Message{}, parseErr)
				return
			}

			msg, ok := rawMsg.message()
			if !ok {
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// message converts a raw export entry, reporting whether it is a plain
// chat message worth keeping.
func (raw telegramRawMessage) message() (chat.Message, bool) {
	if raw.Type != "message" || raw.From == nil || raw.Text == nil {
		return chat.Message{}, false
	}

	content := extractTelegramText(raw.Text)
	if strings.TrimSpace(content) == "" {
		return chat.Message{}, false
	}

	msg := chat.Message{
		Sender:   *raw.From,
		Content:  content,
		Time:     parseTelegramTime(raw.Date, raw.DateUnix),
		EditedAt: parseTelegramTime(raw.Edited, raw.EditedUnix),
	}
	if raw.ID != nil {
		msg.ID = strconv.FormatInt(*raw.ID, 10)
	}
	if raw.ReplyTo != nil {
		msg.ReplyTo = strconv.FormatInt(*raw.ReplyTo, 10)
	}
	return msg, true
}

// extractTelegramText flattens the polymorphic text field into plain
// text. Styled fragments keep their text, their style metadata is
// discarded.
func extractTelegramText(raw json.RawMessage) string {
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var fragments []json.RawMessage
	if err := json.Unmarshal(raw, &fragments); err != nil {
		return ""
	}

	var sb strings.Builder
	for _, fragment := range fragments {
		var s string
		if err := json.Unmarshal(fragment, &s); err == nil {
			sb.WriteString(s)
			continue
		}
		var styled struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(fragment, &styled); err == nil {
			sb.WriteString(styled.Text)
		}
	}
	return sb.String()
}

// parseTelegramTime resolves the export's timestamp pair: a local
// ISO-style date and, in newer exports, a unix epoch string. The epoch
// wins when present.
func parseTelegramTime(date, unix string) time.Time {
	if unix != "" {
		if secs, err := strconv.ParseInt(unix, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	}
	if date != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", date); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
