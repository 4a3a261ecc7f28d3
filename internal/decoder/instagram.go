package decoder

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"github.com/arne314/chatpack/internal/chat"
)

// InstagramDecoder reads Instagram data-download JSON exports. Two quirks
// set it apart: the messages array is in reverse chronological order, and
// every string is double-encoded (UTF-8 bytes mis-decoded as Latin-1 and
// re-encoded as UTF-8), so each text field goes through a best-effort
// repair pass.
type InstagramDecoder struct {
	cfg StreamingConfig
}

func (d *InstagramDecoder) Platform() Platform {
	return Instagram
}

type instagramRawMessage struct {
	SenderName  string          `json:"sender_name"`
	TimestampMS int64           `json:"timestamp_ms"`
	Content     *string         `json:"content"`
	Share       *instagramShare `json:"share"`
}

type instagramShare struct {
	ShareText *string `json:"share_text"`
	Link      *string `json:"link"`
}

type instagramExport struct {
	Messages *[]instagramRawMessage `json:"messages"`
}

// repairMojibake reverses Meta's double encoding: every rune of the
// input is reinterpreted as the single byte it mis-decoded from, and the
// reassembled byte sequence is taken as UTF-8. When the input has runes
// outside the single-byte range, or the reassembled bytes are not valid
// UTF-8, the input was not double-encoded after all and is returned
// untouched; skipped reports that case. Repair never destroys data.
//
// The encoder is stateful, so a fresh one is built per call; decodes on
// different goroutines must not share it.
func repairMojibake(s string) (repaired string, skipped bool) {
	if isASCII(s) {
		return s, false
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s, true
	}
	if !utf8.ValidString(raw) {
		return s, true
	}
	return raw, false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

func (d *InstagramDecoder) Decode(path string) ([]chat.Message, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read Instagram export: %w", err)
	}
	return d.decodeText(string(content), path)
}

func (d *InstagramDecoder) DecodeText(content string) ([]chat.Message, error) {
	return d.decodeText(content, "")
}

func (d *InstagramDecoder) decodeText(content, path string) ([]chat.Message, error) {
	var export instagramExport
	if err := json.Unmarshal([]byte(content), &export); err != nil {
		return nil, &ParseError{Platform: Instagram, Path: path, Err: err}
	}
	if export.Messages == nil {
		return nil, &FormatError{Platform: Instagram, Path: path, Reason: "no messages array found"}
	}

	messages := make([]chat.Message, 0, len(*export.Messages))
	repairsSkipped := 0
	for _, raw := range *export.Messages {
		msg, ok, skipped := raw.message()
		if skipped {
			repairsSkipped++
		}
		if ok {
			messages = append(messages, msg)
		}
	}

	// The export lists newest first; flip to ascending like every other
	// platform.
	slices.Reverse(messages)

	if repairsSkipped > 0 {
		log.Debugf("Instagram decode kept %v strings that were not double-encoded", repairsSkipped)
	}
	return messages, nil
}

// Stream yields messages in file order, which for Instagram exports is
// reverse chronological: re-reversing would require materializing the
// whole array, defeating the bounded buffer. Consumers that need
// ascending order should use Decode or reverse downstream.
func (d *InstagramDecoder) Stream(path string) iter.Seq2[chat.Message, error] {
	return func(yield func(chat.Message, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(chat.Message{}, fmt.Errorf("open Instagram export: %w", err))
			return
		}
		defer f.Close()

		scanner, err := newJSONArrayScanner(f, Instagram, path, d.cfg)
		if err != nil {
			yield(chat.Message{}, err)
			return
		}

		repairsSkipped := 0
		for {
			raw, line, err := scanner.next()
			if err == io.EOF {
				break
			}
			if err != nil {
				yield(chat.Message{}, err)
				return
			}

			var rawMsg instagramRawMessage
			if err := json.Unmarshal(raw, &rawMsg); err != nil {
				parseErr := &ParseError{Platform: Instagram, Path: path, Line: line, Err: err}
				if d.cfg.SkipInvalid {
					log.Debugf("Skipping invalid record: %v", parseErr)
					continue
				}
				yield(chat.Message{}, parseErr)
				return
			}

			msg, ok, skipped := rawMsg.message()
			if skipped {
				repairsSkipped++
			}
			if !ok {
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
		if repairsSkipped > 0 {
			log.Debugf("Instagram stream kept %v strings that were not double-encoded", repairsSkipped)
		}
	}
}

// message converts a raw entry. Entries that are empty after repair
// (reactions, attachments without text) report ok=false; skipped reports
// whether any repair pass had to keep a non-double-encoded original.
func (raw instagramRawMessage) message() (msg chat.Message, ok bool, skipped bool) {
	var content string
	switch {
	case raw.Content != nil:
		content = *raw.Content
	case raw.Share != nil && raw.Share.ShareText != nil:
		content = *raw.Share.ShareText
	default:
		return chat.Message{}, false, false
	}

	content, contentSkipped := repairMojibake(content)
	sender, senderSkipped := repairMojibake(raw.SenderName)
	skipped = contentSkipped || senderSkipped

	if strings.TrimSpace(content) == "" {
		return chat.Message{}, false, skipped
	}

	msg = chat.Message{Sender: sender, Content: content}
	if raw.TimestampMS > 0 {
		msg.Time = time.UnixMilli(raw.TimestampMS).UTC()
	}
	return msg, true, skipped
}
