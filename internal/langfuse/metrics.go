package langfuse

import (
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/mission-control/internal/store"
)

// Dashboard serves read-only aggregations over the imported telemetry.
type Dashboard struct {
	store *store.Store
}

// NewDashboard creates a dashboard reader over the store.
func NewDashboard(st *store.Store) *Dashboard {
	return &Dashboard{store: st}
}

// ModelUsage is the per-model slice of one day's costs.
type ModelUsage struct {
	Model             string  `json:"model"`
	InputUsage        int64   `json:"inputUsage"`
	OutputUsage       int64   `json:"outputUsage"`
	TotalUsage        int64   `json:"totalUsage"`
	TotalCost         float64 `json:"totalCost"`
	CountObservations int64   `json:"countObservations"`
}

// DailyCost is one day of aggregated spend across models.
type DailyCost struct {
	Date              string       `json:"date"`
	TotalCost         float64      `json:"totalCost"`
	CountObservations int64        `json:"countObservations"`
	Usage             []ModelUsage `json:"usage"`
}

// CostReport is the /costs response body.
type CostReport struct {
	Daily []DailyCost `json:"daily"`
}

// Costs aggregates stored metrics between two bounds. Date bounds read the
// precomputed daily rows; timestamp bounds (both containing a time part)
// aggregate the raw request rows on the fly.
func (d *Dashboard) Costs(from, to string) (*CostReport, error) {
	var metrics []store.DailyMetric
	var err error
	if strings.Contains(from, "T") && strings.Contains(to, "T") {
		metrics, err = d.store.MetricsByTimeRange(from, to)
	} else {
		metrics, err = d.store.DailyMetrics(from, to)
	}
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}

	var daily []DailyCost
	index := make(map[string]int)
	for _, m := range metrics {
		i, ok := index[m.Date]
		if !ok {
			i = len(daily)
			index[m.Date] = i
			daily = append(daily, DailyCost{Date: m.Date, Usage: []ModelUsage{}})
		}
		daily[i].TotalCost += m.TotalCost
		daily[i].CountObservations += m.RequestCount
		daily[i].Usage = append(daily[i].Usage, ModelUsage{
			Model:             m.Model,
			InputUsage:        m.InputTokens,
			OutputUsage:       m.OutputTokens,
			TotalUsage:        m.TotalTokens,
			TotalCost:         m.TotalCost,
			CountObservations: m.RequestCount,
		})
	}
	if daily == nil {
		daily = []DailyCost{}
	}
	return &CostReport{Daily: daily}, nil
}

// ImportCounts reports how many rows each telemetry table holds.
type ImportCounts struct {
	Metrics  int `json:"metrics"`
	Requests int `json:"requests"`
}

// ImportStatus is the /imports/status response body.
type ImportStatus struct {
	LastImport *store.ImportRun `json:"lastImport"`
	LastStatus *string          `json:"lastStatus"`
	Counts     ImportCounts     `json:"counts"`
}

// Status returns the latest import run and the stored row counts.
func (d *Dashboard) Status() (*ImportStatus, error) {
	last, err := d.store.LatestImport()
	if err != nil {
		return nil, fmt.Errorf("latest import: %w", err)
	}
	metrics, requests, err := d.store.TelemetryCounts()
	if err != nil {
		return nil, fmt.Errorf("telemetry counts: %w", err)
	}

	status := &ImportStatus{
		LastImport: last,
		Counts:     ImportCounts{Metrics: metrics, Requests: requests},
	}
	if last != nil {
		status.LastStatus = &last.Status
	}
	return status, nil
}

// RequestRow is one imported generation in the shape the dashboard renders.
type RequestRow struct {
	ID                  string   `json:"id"`
	Name                *string  `json:"name"`
	Model               *string  `json:"model"`
	StartTime           string   `json:"startTime"`
	EndTime             *string  `json:"endTime"`
	CompletionStartTime *string  `json:"completionStartTime"`
	InputTokens         int64    `json:"inputTokens"`
	OutputTokens        int64    `json:"outputTokens"`
	TotalTokens         int64    `json:"totalTokens"`
	Cost                *float64 `json:"cost"`
	LatencyMs           *int64   `json:"latencyMs"`
	Metadata            any      `json:"metadata"`
}

// RequestPageMeta carries the pagination envelope for /requests.
type RequestPageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// RequestPage is the /requests response body.
type RequestPage struct {
	Data []RequestRow    `json:"data"`
	Meta RequestPageMeta `json:"meta"`
}

// Requests returns a page of imported generations, newest first.
func (d *Dashboard) Requests(page, limit int, model, fromDate, toDate string) (*RequestPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	rows, total, err := d.store.Requests(page, limit, model, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	data := make([]RequestRow, 0, len(rows))
	for _, r := range rows {
		startTime := time.Now().UTC().Format(time.RFC3339)
		if r.StartedAt != nil {
			startTime = *r.StartedAt
		}
		data = append(data, RequestRow{
			ID:           r.ID,
			Name:         r.Name,
			Model:        r.Model,
			StartTime:    startTime,
			EndTime:      r.FinishedAt,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			TotalTokens:  r.TotalTokens,
			Cost:         r.Cost,
			LatencyMs:    r.LatencyMs,
		})
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &RequestPage{
		Data: data,
		Meta: RequestPageMeta{Page: page, Limit: limit, TotalItems: total, TotalPages: totalPages},
	}, nil
}

// Models lists the distinct model names seen in imported requests.
func (d *Dashboard) Models() ([]string, error) {
	models, err := d.store.DistinctModels()
	if err != nil {
		return nil, fmt.Errorf("distinct models: %w", err)
	}
	if models == nil {
		models = []string{}
	}
	return models, nil
}
