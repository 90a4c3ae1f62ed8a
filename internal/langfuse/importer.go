package langfuse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openclaw/mission-control/internal/store"
)

// fullImportLookbackDays bounds the first import when no successful run
// exists yet.
const fullImportLookbackDays = 90

// Importer pulls metrics and observations from Langfuse and lands them in
// the store, recording each run in the imports table.
type Importer struct {
	store  *store.Store
	client *Client
	log    *slog.Logger
}

// NewImporter creates an importer over the given store and client.
func NewImporter(st *store.Store, client *Client, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{store: st, client: client, log: log}
}

// Run executes one import. The first run pulls the full lookback window;
// later runs resume from the end of the last successful one. The run record
// is marked success or failed either way.
func (i *Importer) Run(ctx context.Context) (*store.ImportRun, error) {
	last, err := i.store.LastSuccessfulImport()
	if err != nil {
		return nil, fmt.Errorf("last import: %w", err)
	}

	now := time.Now().UTC()
	toTimestamp := now.Format(time.RFC3339)
	toDate := now.Format("2006-01-02")

	var fromTimestamp *string
	var fromDate string
	mode := "full"
	if last != nil {
		fromTimestamp = &last.ToTimestamp
		fromDate = last.ToTimestamp[:10]
		mode = "incremental"
	} else {
		fromDate = now.AddDate(0, 0, -fullImportLookbackDays).Format("2006-01-02")
	}

	run, err := i.store.CreateImportRun(mode, fromTimestamp, toTimestamp)
	if err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	i.log.Info("langfuse import started", "import_id", run.ID, "mode", mode, "from", fromDate, "to", toDate)

	if err := i.pull(ctx, fromTimestamp, fromDate, toDate); err != nil {
		msg := err.Error()
		if cerr := i.store.CompleteImportRun(run.ID, "failed", &msg); cerr != nil {
			i.log.Error("record failed import", "import_id", run.ID, "error", cerr)
		}
		return nil, err
	}

	if err := i.store.CompleteImportRun(run.ID, "success", nil); err != nil {
		return nil, fmt.Errorf("complete import run: %w", err)
	}
	return i.store.LatestImport()
}

// pull fetches both feeds concurrently and upserts the transformed rows.
func (i *Importer) pull(ctx context.Context, fromTimestamp *string, fromDate, toDate string) error {
	var rawMetrics []MetricsRow
	var rawObservations []Observation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := i.client.FetchDailyMetrics(gctx, fromDate, toDate)
		if err != nil {
			return err
		}
		rawMetrics = rows
		return nil
	})
	g.Go(func() error {
		from := ""
		if fromTimestamp != nil {
			from = *fromTimestamp
		}
		obs, err := i.client.FetchAllObservations(gctx, from)
		if err != nil {
			return err
		}
		rawObservations = obs
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	metrics := transformMetrics(rawMetrics)
	if err := i.store.UpsertDailyMetrics(metrics); err != nil {
		return err
	}
	requests := transformObservations(rawObservations)
	if err := i.store.UpsertRequests(requests); err != nil {
		return err
	}

	i.log.Info("langfuse import landed", "metrics", len(metrics), "requests", len(requests))
	return nil
}

func transformMetrics(raw []MetricsRow) []store.DailyMetric {
	metrics := make([]store.DailyMetric, 0, len(raw))
	for _, row := range raw {
		date := row.TimeDimension
		if idx := len("2006-01-02"); len(date) > idx {
			date = date[:idx]
		}
		model := row.ProvidedModelName
		if model == "" {
			model = "unknown"
		}
		var cost float64
		if row.SumTotalCost != nil {
			cost = *row.SumTotalCost
		}
		metrics = append(metrics, store.DailyMetric{
			Date:         date,
			Model:        model,
			InputTokens:  numberToInt(row.SumInputTokens),
			OutputTokens: numberToInt(row.SumOutputTokens),
			TotalTokens:  numberToInt(row.SumTotalTokens),
			RequestCount: numberToInt(row.CountCount),
			TotalCost:    cost,
		})
	}
	return metrics
}

func transformObservations(raw []Observation) []store.UsageRequest {
	requests := make([]store.UsageRequest, 0, len(raw))
	for _, obs := range raw {
		requests = append(requests, store.UsageRequest{
			ID:           obs.ID,
			TraceID:      obs.TraceID,
			Name:         obs.Name,
			Model:        obs.Model,
			StartedAt:    obs.StartTime,
			FinishedAt:   obs.EndTime,
			InputTokens:  obs.InputUsage,
			OutputTokens: obs.OutputUsage,
			TotalTokens:  obs.TotalUsage,
			Cost:         obs.TotalCost,
			LatencyMs:    latencyMs(obs),
		})
	}
	return requests
}

// latencyMs prefers the reported latency and falls back to the start/end
// timestamp difference.
func latencyMs(obs Observation) *int64 {
	if obs.LatencySecs != nil {
		ms := int64(math.Round(*obs.LatencySecs * 1000))
		return &ms
	}
	if obs.StartTime != nil && obs.EndTime != nil {
		start, err1 := time.Parse(time.RFC3339, *obs.StartTime)
		end, err2 := time.Parse(time.RFC3339, *obs.EndTime)
		if err1 == nil && err2 == nil {
			ms := end.Sub(start).Milliseconds()
			return &ms
		}
	}
	return nil
}

func numberToInt(n *json.Number) int64 {
	if n == nil {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}
