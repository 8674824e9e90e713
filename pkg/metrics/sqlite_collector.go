package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/zoe-assistant/zoe/pkg/db"
)

// SQLiteCollector stores execution records in the shared SQLite database.
type SQLiteCollector struct {
	db *sqlx.DB
}

// NewSQLiteCollector creates a collector on an already-opened database. Run
// Migrations through the shared runner before first use.
func NewSQLiteCollector(database *sqlx.DB) *SQLiteCollector {
	return &SQLiteCollector{db: database}
}

// Migrations returns the schema migrations owned by this collector.
func Migrations() []db.Migration {
	return []db.Migration{
		{
			Version:     20260115091000,
			Description: "create intent_metrics",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS intent_metrics (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						user_id TEXT NOT NULL,
						intent TEXT NOT NULL,
						tier INTEGER NOT NULL,
						confidence REAL NOT NULL,
						latency_ms INTEGER NOT NULL,
						success INTEGER NOT NULL,
						input_text TEXT NOT NULL,
						source TEXT NOT NULL,
						recorded_at DATETIME NOT NULL
					)
				`)
				if err != nil {
					return err
				}
				_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_intent_metrics_recorded_at ON intent_metrics(recorded_at)")
				return err
			},
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec("DROP TABLE intent_metrics")
				return err
			},
		},
	}
}

// RecordExecution inserts one execution record.
func (c *SQLiteCollector) RecordExecution(ctx context.Context, record Record) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO intent_metrics
			(user_id, intent, tier, confidence, latency_ms, success, input_text, source, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UserID, record.Intent, record.Tier, record.Confidence,
		record.LatencyMS, record.Success, record.InputText, record.Source,
		time.Now().UTC())
	return errors.Wrap(err, "failed to record intent execution")
}

// IntentSummary aggregates executions per intent.
type IntentSummary struct {
	Intent       string  `db:"intent" json:"intent"`
	Executions   int64   `db:"executions" json:"executions"`
	Successes    int64   `db:"successes" json:"successes"`
	AvgLatencyMS float64 `db:"avg_latency_ms" json:"avg_latency_ms"`
}

// Summary aggregates executions recorded since the given time, most-used
// intents first.
func (c *SQLiteCollector) Summary(ctx context.Context, since time.Time) ([]IntentSummary, error) {
	var out []IntentSummary
	err := c.db.SelectContext(ctx, &out, `
		SELECT intent,
		       COUNT(*) AS executions,
		       SUM(success) AS successes,
		       AVG(latency_ms) AS avg_latency_ms
		FROM intent_metrics
		WHERE recorded_at >= ?
		GROUP BY intent
		ORDER BY executions DESC, intent`,
		since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize intent metrics")
	}
	return out, nil
}
