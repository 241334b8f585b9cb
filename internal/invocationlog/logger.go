// Package invocationlog is the append-only sink for invocation records.
// The core only ever writes to it; aggregate reads exist purely so an
// external dashboard can surface cost and usage history.
package invocationlog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"github.com/relay-labs/rumpbot/internal/domain"
)

// Logger persists Invocation Records to a SQLite-backed append-only table.
type Logger struct {
	db *sql.DB
}

// Open creates (or attaches to) the invocation log at dbPath.
func Open(dbPath string) (*Logger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("invocationlog: open: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS invocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		chat_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		duration_api_ms INTEGER NOT NULL,
		cost_usd REAL NOT NULL,
		num_turns INTEGER NOT NULL,
		stop_reason TEXT,
		is_error INTEGER NOT NULL,
		model_usage TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_timestamp ON invocations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_invocations_chat_id ON invocations(chat_id);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("invocationlog: schema: %w", err)
	}

	return &Logger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Logger) Close() error {
	return l.db.Close()
}

// Record persists one Invocation Record.
func (l *Logger) Record(rec domain.InvocationRecord) error {
	usageJSON, err := json.Marshal(rec.ModelUsage)
	if err != nil {
		return fmt.Errorf("invocationlog: marshal model usage: %w", err)
	}

	_, err = l.db.Exec(
		`INSERT INTO invocations
			(timestamp, chat_id, tier, duration_ms, duration_api_ms, cost_usd, num_turns, stop_reason, is_error, model_usage)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.ChatID, string(rec.Tier), rec.DurationMs, rec.DurationAPIMs,
		rec.CostUSD, rec.NumTurns, rec.StopReason, boolToInt(rec.IsError), string(usageJSON),
	)
	if err != nil {
		return fmt.Errorf("invocationlog: insert: %w", err)
	}
	return nil
}

// Totals is the aggregate read across every recorded invocation.
type Totals struct {
	Count        int
	TotalCostUSD float64
	ErrorCount   int
}

// Totals computes the all-time aggregate.
func (l *Logger) Totals() (Totals, error) {
	var t Totals
	row := l.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(cost_usd), 0), COALESCE(SUM(is_error), 0) FROM invocations`)
	if err := row.Scan(&t.Count, &t.TotalCostUSD, &t.ErrorCount); err != nil {
		return Totals{}, fmt.Errorf("invocationlog: totals: %w", err)
	}
	return t, nil
}

// DayRollup is one day's aggregate row.
type DayRollup struct {
	Day          string
	Count        int
	TotalCostUSD float64
}

// DailyRollup returns one aggregate row per day between since and until,
// both parsed flexibly as absolute dates or timestamps in many layouts
// (e.g. "2026-07-01", RFC 3339); relative phrases such as "yesterday" are
// rejected with an error.
func (l *Logger) DailyRollup(since, until string) ([]DayRollup, error) {
	sinceTime, err := dateparseParse(since)
	if err != nil {
		return nil, fmt.Errorf("invocationlog: parse since: %w", err)
	}
	untilTime, err := dateparseParse(until)
	if err != nil {
		return nil, fmt.Errorf("invocationlog: parse until: %w", err)
	}

	rows, err := l.db.Query(
		`SELECT date(timestamp) AS day, COUNT(*), COALESCE(SUM(cost_usd), 0)
		 FROM invocations
		 WHERE timestamp >= ? AND timestamp <= ?
		 GROUP BY day
		 ORDER BY day`,
		sinceTime, untilTime,
	)
	if err != nil {
		return nil, fmt.Errorf("invocationlog: daily rollup: %w", err)
	}
	defer rows.Close()

	var out []DayRollup
	for rows.Next() {
		var r DayRollup
		if err := rows.Scan(&r.Day, &r.Count, &r.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("invocationlog: scan rollup row: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

