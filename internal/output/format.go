package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an output encoding for converted chats.
type Format int

const (
	CSV Format = iota
	JSON
	JSONL
	SQLite
)

func (f Format) String() string {
	switch f {
	case CSV:
		return "csv"
	case JSON:
		return "json"
	case JSONL:
		return "jsonl"
	case SQLite:
		return "sqlite"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extension returns the conventional file extension, dot included.
func (f Format) Extension() string {
	switch f {
	case SQLite:
		return ".db"
	default:
		return "." + f.String()
	}
}

func Formats() []Format {
	return []Format{CSV, JSON, JSONL, SQLite}
}

// ParseFormat resolves a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	case "sqlite", "sqlite3", "db":
		return SQLite, nil
	}
	return 0, fmt.Errorf("unknown output format %q, expected one of %v", s, Formats())
}

// FormatFromPath guesses the format from a file extension; ok is false
// when the extension is unknown.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, true
	case ".json":
		return JSON, true
	case ".jsonl", ".ndjson":
		return JSONL, true
	case ".db", ".sqlite", ".sqlite3":
		return SQLite, true
	}
	return 0, false
}
