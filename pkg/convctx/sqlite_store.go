package convctx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/zoe-assistant/zoe/pkg/db"
)

// SQLiteStore persists conversational context in the shared SQLite database
// so that slot memory survives process restarts.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a store on an already-opened database. Run
// Migrations through the shared runner before first use.
func NewSQLiteStore(database *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Migrations returns the schema migrations owned by this store.
func Migrations() []db.Migration {
	return []db.Migration{
		{
			Version:     20260115090000,
			Description: "create conversation_context",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS conversation_context (
						user_id TEXT NOT NULL,
						session_id TEXT NOT NULL,
						last_items TEXT NOT NULL DEFAULT '[]',
						last_device TEXT NOT NULL DEFAULT '',
						last_list TEXT NOT NULL DEFAULT '',
						last_area TEXT NOT NULL DEFAULT '',
						last_time TEXT NOT NULL DEFAULT '',
						last_intent TEXT NOT NULL DEFAULT '',
						updated_at DATETIME NOT NULL,
						PRIMARY KEY (user_id, session_id)
					)
				`)
				return err
			},
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec("DROP TABLE conversation_context")
				return err
			},
		},
	}
}

type contextRow struct {
	LastItems  string `db:"last_items"`
	LastDevice string `db:"last_device"`
	LastList   string `db:"last_list"`
	LastArea   string `db:"last_area"`
	LastTime   string `db:"last_time"`
	LastIntent string `db:"last_intent"`
}

// Context returns the stored context for the session, or a zero value.
func (s *SQLiteStore) Context(ctx context.Context, userID, sessionID string) (Context, error) {
	var row contextRow
	err := s.db.GetContext(ctx, &row, `
		SELECT last_items, last_device, last_list, last_area, last_time, last_intent
		FROM conversation_context WHERE user_id = ? AND session_id = ?`,
		userID, sessionID)
	if err == sql.ErrNoRows {
		return Context{}, nil
	}
	if err != nil {
		return Context{}, errors.Wrap(err, "failed to read conversation context")
	}

	var items []string
	if err := json.Unmarshal([]byte(row.LastItems), &items); err != nil {
		items = nil
	}

	return Context{
		LastItems:  items,
		LastDevice: row.LastDevice,
		LastList:   row.LastList,
		LastArea:   row.LastArea,
		LastTime:   row.LastTime,
		LastIntent: row.LastIntent,
	}, nil
}

// UpdateFromIntent overwrites context fields from the intent's slots.
func (s *SQLiteStore) UpdateFromIntent(ctx context.Context, userID, sessionID, intentName string, slots map[string]any) error {
	current, err := s.Context(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	applySlots(&current, intentName, slots)

	items, err := json.Marshal(current.LastItems)
	if err != nil {
		items = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_context
			(user_id, session_id, last_items, last_device, last_list, last_area, last_time, last_intent, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, session_id) DO UPDATE SET
			last_items = excluded.last_items,
			last_device = excluded.last_device,
			last_list = excluded.last_list,
			last_area = excluded.last_area,
			last_time = excluded.last_time,
			last_intent = excluded.last_intent,
			updated_at = excluded.updated_at`,
		userID, sessionID, string(items), current.LastDevice, current.LastList,
		current.LastArea, current.LastTime, current.LastIntent, time.Now().UTC())
	return errors.Wrap(err, "failed to write conversation context")
}
