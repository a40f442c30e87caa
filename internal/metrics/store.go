package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meal-planner/internal/database"
)

// RequestMetric records a single API request.
type RequestMetric struct {
	Method    string
	Route     string
	Status    int
	LatencyMS int64
	RequestID string
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m RequestMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_metrics (method, route, status, latency_ms, request_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Method, m.Route, m.Status, m.LatencyMS, m.RequestID, ts.UTC().Format(database.TimestampLayout))
	if err != nil {
		return fmt.Errorf("failed to record request metric: %w", err)
	}
	return nil
}

// DailyUsage represents request totals for a single day.
type DailyUsage struct {
	Date         string  `json:"date"`
	Requests     int     `json:"requests"`
	ClientErrors int     `json:"clientErrors"`
	ServerErrors int     `json:"serverErrors"`
	AvgLatencyMS float64 `json:"avgLatencyMs"`
	MaxLatencyMS int64   `json:"maxLatencyMs"`
}

// GetDailyUsage retrieves usage for the last N days, most recent day first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := s.now().UTC().AddDate(0, 0, -days).Format(database.TimestampLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day,
			COUNT(*),
			SUM(CASE WHEN status >= 400 AND status < 500 THEN 1 ELSE 0 END),
			SUM(CASE WHEN status >= 500 THEN 1 ELSE 0 END),
			AVG(latency_ms),
			MAX(latency_ms)
		FROM request_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	results := []DailyUsage{}
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.Requests, &u.ClientErrors, &u.ServerErrors, &u.AvgLatencyMS, &u.MaxLatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		results = append(results, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily usage: %w", err)
	}
	return results, nil
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().UTC().AddDate(0, 0, -olderThanDays).Format(database.TimestampLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM request_metrics WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up request metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
