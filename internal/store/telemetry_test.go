package store

import (
	"testing"
)

func TestImportRunLifecycle(t *testing.T) {
	s := testStore(t)

	if last, err := s.LastSuccessfulImport(); err != nil || last != nil {
		t.Fatalf("LastSuccessfulImport empty = %+v, %v", last, err)
	}

	run, err := s.CreateImportRun("full", nil, "2026-08-28T00:00:00Z")
	if err != nil {
		t.Fatalf("CreateImportRun: %v", err)
	}
	if run.Status != "running" || run.Mode != "full" {
		t.Errorf("run = %+v, want running/full", run)
	}

	if err := s.CompleteImportRun(run.ID, "success", nil); err != nil {
		t.Fatalf("CompleteImportRun: %v", err)
	}

	last, err := s.LastSuccessfulImport()
	if err != nil {
		t.Fatalf("LastSuccessfulImport: %v", err)
	}
	if last == nil || last.ID != run.ID {
		t.Fatalf("last = %+v, want id %d", last, run.ID)
	}
	if last.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}

	// A failed run doesn't displace the last successful one.
	failed, _ := s.CreateImportRun("incremental", &last.ToTimestamp, "2026-08-28T01:00:00Z")
	msg := "boom"
	s.CompleteImportRun(failed.ID, "failed", &msg)

	last, _ = s.LastSuccessfulImport()
	if last.ID != run.ID {
		t.Errorf("last successful = %d, want %d", last.ID, run.ID)
	}
	latest, _ := s.LatestImport()
	if latest.ID != failed.ID {
		t.Errorf("latest = %d, want %d", latest.ID, failed.ID)
	}
	if latest.ErrorMessage == nil || *latest.ErrorMessage != "boom" {
		t.Errorf("error_message = %v, want boom", latest.ErrorMessage)
	}
}

func TestUpsertDailyMetricsReplaces(t *testing.T) {
	s := testStore(t)

	first := []DailyMetric{{Date: "2026-08-01", Model: "opus", TotalTokens: 100, RequestCount: 2, TotalCost: 1.5}}
	if err := s.UpsertDailyMetrics(first); err != nil {
		t.Fatalf("UpsertDailyMetrics: %v", err)
	}
	second := []DailyMetric{{Date: "2026-08-01", Model: "opus", TotalTokens: 200, RequestCount: 4, TotalCost: 3.0}}
	if err := s.UpsertDailyMetrics(second); err != nil {
		t.Fatalf("UpsertDailyMetrics again: %v", err)
	}

	metrics, err := s.DailyMetrics("2026-08-01", "2026-08-31")
	if err != nil {
		t.Fatalf("DailyMetrics: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("len = %d, want 1 (same day+model replaces)", len(metrics))
	}
	if metrics[0].TotalTokens != 200 {
		t.Errorf("total_tokens = %d, want 200", metrics[0].TotalTokens)
	}
}

func TestRequestsPaginationAndFilters(t *testing.T) {
	s := testStore(t)

	model := "sonnet"
	var reqs []UsageRequest
	for _, id := range []string{"r1", "r2", "r3"} {
		started := "2026-08-0" + string(id[1]) + "T10:00:00Z"
		reqs = append(reqs, UsageRequest{ID: id, Model: &model, StartedAt: &started, TotalTokens: 10})
	}
	other := "haiku"
	started := "2026-08-04T10:00:00Z"
	reqs = append(reqs, UsageRequest{ID: "r4", Model: &other, StartedAt: &started})
	if err := s.UpsertRequests(reqs); err != nil {
		t.Fatalf("UpsertRequests: %v", err)
	}

	page, total, err := s.Requests(1, 2, "sonnet", "", "")
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d rows, want 2", len(page))
	}
	if page[0].ID != "r3" {
		t.Errorf("newest first: got %s, want r3", page[0].ID)
	}

	models, err := s.DistinctModels()
	if err != nil {
		t.Fatalf("DistinctModels: %v", err)
	}
	if len(models) != 2 || models[0] != "haiku" || models[1] != "sonnet" {
		t.Errorf("models = %v, want [haiku sonnet]", models)
	}

	metricCount, requestCount, err := s.TelemetryCounts()
	if err != nil {
		t.Fatalf("TelemetryCounts: %v", err)
	}
	if metricCount != 0 || requestCount != 4 {
		t.Errorf("counts = (%d, %d), want (0, 4)", metricCount, requestCount)
	}
}

func TestMetricsByTimeRange(t *testing.T) {
	s := testStore(t)

	model := "opus"
	cost := 2.0
	a := "2026-08-10T09:00:00Z"
	b := "2026-08-10T12:00:00Z"
	c := "2026-08-11T09:00:00Z"
	s.UpsertRequests([]UsageRequest{
		{ID: "a", Model: &model, StartedAt: &a, InputTokens: 5, OutputTokens: 5, TotalTokens: 10, Cost: &cost},
		{ID: "b", Model: &model, StartedAt: &b, InputTokens: 5, OutputTokens: 5, TotalTokens: 10, Cost: &cost},
		{ID: "c", Model: &model, StartedAt: &c, TotalTokens: 10},
	})

	metrics, err := s.MetricsByTimeRange("2026-08-10T00:00:00Z", "2026-08-11T00:00:00Z")
	if err != nil {
		t.Fatalf("MetricsByTimeRange: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("len = %d, want 1", len(metrics))
	}
	m := metrics[0]
	if m.Date != "2026-08-10" || m.RequestCount != 2 || m.TotalTokens != 20 || m.TotalCost != 4.0 {
		t.Errorf("aggregate = %+v", m)
	}
}
