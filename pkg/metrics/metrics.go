// Package metrics records intent execution outcomes. The collector sits off
// the primary response path: recording failures are logged by callers and
// never fail an execution.
package metrics

import "context"

// Record captures one intent execution.
type Record struct {
	UserID     string  `db:"user_id"`
	Intent     string  `db:"intent"`
	Tier       int     `db:"tier"`
	Confidence float64 `db:"confidence"`
	LatencyMS  int64   `db:"latency_ms"`
	Success    bool    `db:"success"`
	InputText  string  `db:"input_text"`
	Source     string  `db:"source"`
}

// Collector persists execution records.
type Collector interface {
	RecordExecution(ctx context.Context, record Record) error
}

// NopCollector discards all records.
type NopCollector struct{}

// RecordExecution discards the record.
func (NopCollector) RecordExecution(context.Context, Record) error { return nil }
