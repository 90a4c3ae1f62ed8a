package store

import (
	"database/sql"
	"fmt"
	"time"
)

const importColumns = `id, started_at, finished_at, mode, from_timestamp, to_timestamp, status, error_message`

// LastSuccessfulImport returns the most recent import run with status
// success, or nil.
func (s *Store) LastSuccessfulImport() (*ImportRun, error) {
	rows, err := s.db.Query(
		`SELECT ` + importColumns + ` FROM imports WHERE status = 'success' ORDER BY finished_at DESC LIMIT 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("last successful import: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanImport(rows)
}

// LatestImport returns the most recently started import run, or nil.
func (s *Store) LatestImport() (*ImportRun, error) {
	rows, err := s.db.Query(
		`SELECT ` + importColumns + ` FROM imports ORDER BY started_at DESC LIMIT 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("latest import: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanImport(rows)
}

// CreateImportRun records a new running import and returns it.
func (s *Store) CreateImportRun(mode string, fromTimestamp *string, toTimestamp string) (*ImportRun, error) {
	startedAt := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO imports (started_at, mode, from_timestamp, to_timestamp, status) VALUES (?, ?, ?, ?, 'running')`,
		startedAt, mode, fromTimestamp, toTimestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert import run: %w", err)
	}
	id, _ := res.LastInsertId()
	return &ImportRun{
		ID:            id,
		StartedAt:     startedAt,
		Mode:          mode,
		FromTimestamp: fromTimestamp,
		ToTimestamp:   toTimestamp,
		Status:        "running",
	}, nil
}

// CompleteImportRun marks an import run as success or failed.
func (s *Store) CompleteImportRun(id int64, status string, errorMessage *string) error {
	_, err := s.db.Exec(
		`UPDATE imports SET finished_at = ?, status = ?, error_message = ? WHERE id = ?`,
		time.Now().UTC(), status, errorMessage, id,
	)
	if err != nil {
		return fmt.Errorf("complete import run: %w", err)
	}
	return nil
}

// UpsertDailyMetrics replaces per-day, per-model aggregate rows.
func (s *Store) UpsertDailyMetrics(metrics []DailyMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT OR REPLACE INTO usage_daily_metrics
			 (date, model, input_tokens, output_tokens, total_tokens, request_count, total_cost)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare metrics upsert: %w", err)
		}
		defer stmt.Close()
		for _, m := range metrics {
			if _, err := stmt.Exec(m.Date, m.Model, m.InputTokens, m.OutputTokens, m.TotalTokens, m.RequestCount, m.TotalCost); err != nil {
				return fmt.Errorf("upsert metric %s/%s: %w", m.Date, m.Model, err)
			}
		}
		return nil
	})
}

// DailyMetrics returns aggregate rows between two dates, inclusive.
func (s *Store) DailyMetrics(fromDate, toDate string) ([]DailyMetric, error) {
	rows, err := s.db.Query(
		`SELECT date, model, input_tokens, output_tokens, total_tokens, request_count, total_cost
		 FROM usage_daily_metrics WHERE date >= ? AND date <= ?
		 ORDER BY date ASC, model ASC`, fromDate, toDate,
	)
	if err != nil {
		return nil, fmt.Errorf("query daily metrics: %w", err)
	}
	defer rows.Close()
	return collectMetrics(rows)
}

// MetricsByTimeRange aggregates request rows on the fly for sub-day windows,
// grouping by day and model.
func (s *Store) MetricsByTimeRange(fromTS, toTS string) ([]DailyMetric, error) {
	rows, err := s.db.Query(
		`SELECT SUBSTR(started_at, 1, 10) AS date, model,
		        SUM(input_tokens), SUM(output_tokens), SUM(total_tokens),
		        COUNT(*), COALESCE(SUM(cost), 0)
		 FROM usage_requests
		 WHERE started_at >= ? AND started_at < ? AND model IS NOT NULL
		 GROUP BY date, model
		 ORDER BY date ASC, COALESCE(SUM(cost), 0) DESC`, fromTS, toTS,
	)
	if err != nil {
		return nil, fmt.Errorf("query metrics by range: %w", err)
	}
	defer rows.Close()
	return collectMetrics(rows)
}

// DistinctModels lists the models seen in imported requests.
func (s *Store) DistinctModels() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT model FROM usage_requests WHERE model IS NOT NULL ORDER BY model ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()

	var models []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// UpsertRequests replaces imported request rows by ID.
func (s *Store) UpsertRequests(requests []UsageRequest) error {
	if len(requests) == 0 {
		return nil
	}
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT OR REPLACE INTO usage_requests
			 (id, trace_id, name, model, started_at, finished_at,
			  input_tokens, output_tokens, total_tokens, cost, latency_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare request upsert: %w", err)
		}
		defer stmt.Close()
		for _, r := range requests {
			if _, err := stmt.Exec(
				r.ID, r.TraceID, r.Name, r.Model, r.StartedAt, r.FinishedAt,
				r.InputTokens, r.OutputTokens, r.TotalTokens, r.Cost, r.LatencyMs,
			); err != nil {
				return fmt.Errorf("upsert request %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// Requests returns imported request rows, newest first, with optional model
// and date filters.
func (s *Store) Requests(page, limit int, model, fromDate, toDate string) ([]UsageRequest, int, error) {
	var clauses []string
	var args []any
	if model != "" {
		clauses = append(clauses, "model = ?")
		args = append(args, model)
	}
	if fromDate != "" {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, fromDate)
	}
	if toDate != "" {
		clauses = append(clauses, "started_at <= ?")
		args = append(args, toDate)
	}
	where := ""
	for i, c := range clauses {
		if i == 0 {
			where = " WHERE " + c
		} else {
			where += " AND " + c
		}
	}

	total, err := s.count(`SELECT COUNT(*) FROM usage_requests`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := s.db.Query(
		`SELECT id, trace_id, name, model, started_at, finished_at,
		        input_tokens, output_tokens, total_tokens, cost, latency_ms
		 FROM usage_requests`+where+` ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var requests []UsageRequest
	for rows.Next() {
		var r UsageRequest
		var traceID, name, reqModel, startedAt, finishedAt sql.NullString
		var cost sql.NullFloat64
		var latency sql.NullInt64
		if err := rows.Scan(
			&r.ID, &traceID, &name, &reqModel, &startedAt, &finishedAt,
			&r.InputTokens, &r.OutputTokens, &r.TotalTokens, &cost, &latency,
		); err != nil {
			return nil, 0, fmt.Errorf("scan request: %w", err)
		}
		r.TraceID = strPtr(traceID)
		r.Name = strPtr(name)
		r.Model = strPtr(reqModel)
		r.StartedAt = strPtr(startedAt)
		r.FinishedAt = strPtr(finishedAt)
		r.Cost = floatPtr(cost)
		r.LatencyMs = int64Ptr(latency)
		requests = append(requests, r)
	}
	return requests, total, rows.Err()
}

// TelemetryCounts returns the stored metric and request row counts.
func (s *Store) TelemetryCounts() (int, int, error) {
	metrics, err := s.count(`SELECT COUNT(*) FROM usage_daily_metrics`)
	if err != nil {
		return 0, 0, err
	}
	requests, err := s.count(`SELECT COUNT(*) FROM usage_requests`)
	if err != nil {
		return 0, 0, err
	}
	return metrics, requests, nil
}

func collectMetrics(rows *sql.Rows) ([]DailyMetric, error) {
	var metrics []DailyMetric
	for rows.Next() {
		var m DailyMetric
		if err := rows.Scan(&m.Date, &m.Model, &m.InputTokens, &m.OutputTokens, &m.TotalTokens, &m.RequestCount, &m.TotalCost); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func scanImport(rows *sql.Rows) (*ImportRun, error) {
	var r ImportRun
	var finishedAt sql.NullTime
	var fromTS, errMsg sql.NullString
	err := rows.Scan(&r.ID, &r.StartedAt, &finishedAt, &r.Mode, &fromTS, &r.ToTimestamp, &r.Status, &errMsg)
	if err != nil {
		return nil, fmt.Errorf("scan import: %w", err)
	}
	r.FinishedAt = timePtr(finishedAt)
	r.FromTimestamp = strPtr(fromTS)
	r.ErrorMessage = strPtr(errMsg)
	return &r, nil
}
