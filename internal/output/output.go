// Package output writes converted chats to CSV, JSON, JSONL or a sqlite
// database. Sender and content are always written; timestamps, IDs,
// reply references and edit times are opt-in via Config.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/arne314/chatpack/internal/chat"
)

// Config selects the optional metadata fields included in the output.
type Config struct {
	IncludeTimestamps bool
	IncludeIDs        bool
	IncludeReplies    bool
	IncludeEdited     bool
}

// Write encodes messages to a file, creating or truncating it. The
// sqlite format manages its own file handling.
func Write(messages []chat.Message, path string, format Format, cfg Config) error {
	if format == SQLite {
		return writeSQLite(messages, path, cfg)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := WriteTo(f, messages, format, cfg); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

// WriteTo encodes messages to a writer. SQLite is file-backed and not
// supported here.
func WriteTo(w io.Writer, messages []chat.Message, format Format, cfg Config) error {
	switch format {
	case CSV:
		return writeCSV(w, messages, cfg)
	case JSON:
		return writeJSON(w, messages, cfg)
	case JSONL:
		return writeJSONL(w, messages, cfg)
	case SQLite:
		return fmt.Errorf("sqlite output requires a file path")
	}
	return fmt.Errorf("unknown output format %v", format)
}
