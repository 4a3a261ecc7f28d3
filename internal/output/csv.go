package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/arne314/chatpack/internal/chat"
)

// csvTimeLayout keeps CSV cells spreadsheet-friendly.
const csvTimeLayout = "2006-01-02 15:04:05"

func csvTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(csvTimeLayout)
}

// writeCSV emits semicolon-delimited CSV, a header row first. The
// delimiter avoids fighting with commas in chat text, escaping is left
// to encoding/csv.
func writeCSV(w io.Writer, messages []chat.Message, cfg Config) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	var header []string
	if cfg.IncludeIDs {
		header = append(header, "ID")
	}
	if cfg.IncludeTimestamps {
		header = append(header, "Timestamp")
	}
	header = append(header, "Sender", "Content")
	if cfg.IncludeReplies {
		header = append(header, "ReplyTo")
	}
	if cfg.IncludeEdited {
		header = append(header, "Edited")
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, 0, len(header))
	for _, msg := range messages {
		record = record[:0]
		if cfg.IncludeIDs {
			record = append(record, msg.ID)
		}
		if cfg.IncludeTimestamps {
			record = append(record, csvTime(msg.Time))
		}
		record = append(record, msg.Sender, msg.Content)
		if cfg.IncludeReplies {
			record = append(record, msg.ReplyTo)
		}
		if cfg.IncludeEdited {
			record = append(record, csvTime(msg.EditedAt))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
