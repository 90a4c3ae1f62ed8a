package langfuse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openclaw/mission-control/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "langfuse.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func discardLog() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeLangfuse serves the two endpoints the client hits.
func fakeLangfuse(t *testing.T, metrics []MetricsRow, pages [][]Observation) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" || !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/public/metrics":
			json.NewEncoder(w).Encode(map[string]any{"data": metrics})
		case "/api/public/v2/observations":
			page := 0
			if c := r.URL.Query().Get("cursor"); c != "" {
				fmt.Sscanf(c, "page-%d", &page)
			}
			body := map[string]any{"data": pages[page], "meta": map[string]any{}}
			if page+1 < len(pages) {
				body["meta"] = map[string]any{"cursor": fmt.Sprintf("page-%d", page+1)}
			}
			json.NewEncoder(w).Encode(body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func num(v string) *json.Number {
	n := json.Number(v)
	return &n
}

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func TestFetchAllObservationsPaginates(t *testing.T) {
	pages := [][]Observation{
		{{ID: "obs-1"}, {ID: "obs-2"}},
		{{ID: "obs-3"}},
	}
	srv := fakeLangfuse(t, nil, pages)
	defer srv.Close()

	client := NewClient(srv.URL, "pk", "sk", discardLog())
	obs, err := client.FetchAllObservations(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchAllObservations: %v", err)
	}
	if len(obs) != 3 || obs[2].ID != "obs-3" {
		t.Fatalf("observations = %+v, want 3 across pages", obs)
	}
}

func TestClientRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []MetricsRow{}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "pk", "sk", discardLog())
	if _, err := client.FetchDailyMetrics(context.Background(), "2026-08-01", "2026-08-02"); err != nil {
		t.Fatalf("FetchDailyMetrics: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "pk", "sk", discardLog())
	_, err := client.FetchDailyMetrics(context.Background(), "2026-08-01", "2026-08-02")
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected 429 failure after retries, got %v", err)
	}
}

func TestImporterFullThenIncremental(t *testing.T) {
	metrics := []MetricsRow{
		{
			TimeDimension:     "2026-08-27T00:00:00Z",
			ProvidedModelName: "claude-opus",
			SumInputTokens:    num("100"),
			SumOutputTokens:   num("40"),
			SumTotalTokens:    num("140"),
			CountCount:        num("2"),
			SumTotalCost:      fptr(1.25),
		},
	}
	pages := [][]Observation{{
		{
			ID:          "obs-1",
			Model:       sptr("claude-opus"),
			StartTime:   sptr("2026-08-27T10:00:00Z"),
			EndTime:     sptr("2026-08-27T10:00:02Z"),
			InputUsage:  60,
			OutputUsage: 20,
			TotalUsage:  80,
			TotalCost:   fptr(0.75),
		},
	}}
	srv := fakeLangfuse(t, metrics, pages)
	defer srv.Close()

	st := testStore(t)
	importer := NewImporter(st, NewClient(srv.URL, "pk", "sk", discardLog()), discardLog())

	run, err := importer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Mode != "full" || run.Status != "success" {
		t.Fatalf("run = %+v, want full/success", run)
	}
	if run.FromTimestamp != nil {
		t.Fatal("full import should have no lower bound")
	}

	// Latency falls back to the start/end difference.
	reqs, total, err := st.Requests(1, 10, "", "", "")
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	if total != 1 || reqs[0].LatencyMs == nil || *reqs[0].LatencyMs != 2000 {
		t.Fatalf("requests = %+v, want one with latency 2000ms", reqs)
	}

	second, err := importer.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Mode != "incremental" {
		t.Fatalf("mode = %s, want incremental", second.Mode)
	}
	if second.FromTimestamp == nil || *second.FromTimestamp != run.ToTimestamp {
		t.Fatalf("from = %v, want previous to %s", second.FromTimestamp, run.ToTimestamp)
	}
}

func TestImporterRecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := testStore(t)
	importer := NewImporter(st, NewClient(srv.URL, "pk", "sk", discardLog()), discardLog())

	if _, err := importer.Run(context.Background()); err == nil {
		t.Fatal("expected import failure")
	}

	last, err := st.LatestImport()
	if err != nil {
		t.Fatalf("LatestImport: %v", err)
	}
	if last == nil || last.Status != "failed" || last.ErrorMessage == nil {
		t.Fatalf("run = %+v, want failed with message", last)
	}
}

func TestCostsAggregatesByDay(t *testing.T) {
	st := testStore(t)
	err := st.UpsertDailyMetrics([]store.DailyMetric{
		{Date: "2026-08-26", Model: "claude-opus", InputTokens: 10, OutputTokens: 5, TotalTokens: 15, RequestCount: 1, TotalCost: 0.5},
		{Date: "2026-08-26", Model: "claude-haiku", InputTokens: 20, OutputTokens: 10, TotalTokens: 30, RequestCount: 3, TotalCost: 0.1},
		{Date: "2026-08-27", Model: "claude-opus", InputTokens: 8, OutputTokens: 4, TotalTokens: 12, RequestCount: 1, TotalCost: 0.4},
	})
	if err != nil {
		t.Fatalf("UpsertDailyMetrics: %v", err)
	}

	report, err := NewDashboard(st).Costs("2026-08-26", "2026-08-27")
	if err != nil {
		t.Fatalf("Costs: %v", err)
	}
	if len(report.Daily) != 2 {
		t.Fatalf("days = %d, want 2", len(report.Daily))
	}
	first := report.Daily[0]
	if first.Date != "2026-08-26" || first.TotalCost != 0.6 || first.CountObservations != 4 || len(first.Usage) != 2 {
		t.Fatalf("unexpected day: %+v", first)
	}
}

func TestCostsTimestampModeUsesRawRequests(t *testing.T) {
	st := testStore(t)
	err := st.UpsertRequests([]store.UsageRequest{
		{ID: "a", Model: sptr("claude-opus"), StartedAt: sptr("2026-08-27T09:00:00Z"), InputTokens: 10, OutputTokens: 5, TotalTokens: 15, Cost: fptr(0.2)},
		{ID: "b", Model: sptr("claude-opus"), StartedAt: sptr("2026-08-27T18:00:00Z"), InputTokens: 10, OutputTokens: 5, TotalTokens: 15, Cost: fptr(0.3)},
	})
	if err != nil {
		t.Fatalf("UpsertRequests: %v", err)
	}

	report, err := NewDashboard(st).Costs("2026-08-27T00:00:00Z", "2026-08-27T12:00:00Z")
	if err != nil {
		t.Fatalf("Costs: %v", err)
	}
	if len(report.Daily) != 1 {
		t.Fatalf("days = %d, want 1 (only the morning request in range)", len(report.Daily))
	}
	if report.Daily[0].CountObservations != 1 || report.Daily[0].TotalCost != 0.2 {
		t.Fatalf("unexpected aggregation: %+v", report.Daily[0])
	}
}

func TestRequestsPageMeta(t *testing.T) {
	st := testStore(t)
	var rows []store.UsageRequest
	for i := 0; i < 5; i++ {
		rows = append(rows, store.UsageRequest{
			ID:        fmt.Sprintf("req-%d", i),
			Model:     sptr("claude-opus"),
			StartedAt: sptr(fmt.Sprintf("2026-08-27T10:0%d:00Z", i)),
		})
	}
	if err := st.UpsertRequests(rows); err != nil {
		t.Fatalf("UpsertRequests: %v", err)
	}

	page, err := NewDashboard(st).Requests(2, 2, "", "", "")
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	if page.Meta.TotalItems != 5 || page.Meta.TotalPages != 3 || page.Meta.Page != 2 {
		t.Fatalf("meta = %+v", page.Meta)
	}
	if len(page.Data) != 2 {
		t.Fatalf("rows = %d, want 2", len(page.Data))
	}
	// Newest first: page 2 holds req-2 and req-1.
	if page.Data[0].ID != "req-2" {
		t.Fatalf("first row = %s, want req-2", page.Data[0].ID)
	}
}
