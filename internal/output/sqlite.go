package output

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arne314/chatpack/internal/chat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT,
	timestamp TEXT,
	sender    TEXT NOT NULL,
	content   TEXT NOT NULL,
	reply_to  TEXT,
	edited    TEXT
);`

// writeSQLite stores messages in a sqlite database, one row each, inside
// a single transaction. The seq column preserves chat order; disabled
// metadata fields are NULL.
func writeSQLite(messages []chat.Message, path string, cfg Config) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO messages (id, timestamp, sender, content, reply_to, edited)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	nullable := func(enabled bool, value string) any {
		if !enabled || value == "" {
			return nil
		}
		return value
	}

	for _, msg := range messages {
		_, err := stmt.Exec(
			nullable(cfg.IncludeIDs, msg.ID),
			nullable(cfg.IncludeTimestamps, jsonTime(msg.Time)),
			msg.Sender,
			msg.Content,
			nullable(cfg.IncludeReplies, msg.ReplyTo),
			nullable(cfg.IncludeEdited, jsonTime(msg.EditedAt)),
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
