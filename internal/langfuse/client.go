// Package langfuse imports LLM usage telemetry from a Langfuse deployment
// into the local store and serves the aggregations the cost dashboard reads.
package langfuse

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	observationsPageSize = 1000
	maxRetries           = 3
	baseRetryDelay       = time.Second
)

// Client is a read-only Langfuse API client authenticated with a
// public/secret key pair.
type Client struct {
	host       string
	authHeader string
	http       *http.Client
	log        *slog.Logger
}

// NewClient creates a client for the given Langfuse host.
func NewClient(host, publicKey, secretKey string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(publicKey + ":" + secretKey))
	return &Client{
		host:       strings.TrimRight(host, "/"),
		authHeader: "Basic " + credentials,
		http:       &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// MetricsRow is one row of the Langfuse metrics API response, aggregated per
// day and model.
type MetricsRow struct {
	TimeDimension     string       `json:"time_dimension"`
	ProvidedModelName string       `json:"providedModelName"`
	SumInputTokens    *json.Number `json:"sum_inputTokens"`
	SumOutputTokens   *json.Number `json:"sum_outputTokens"`
	SumTotalTokens    *json.Number `json:"sum_totalTokens"`
	CountCount        *json.Number `json:"count_count"`
	SumTotalCost      *float64     `json:"sum_totalCost"`
}

// Observation is one GENERATION observation from the Langfuse API.
type Observation struct {
	ID           string   `json:"id"`
	TraceID      *string  `json:"traceId"`
	Name         *string  `json:"name"`
	Model        *string  `json:"model"`
	StartTime    *string  `json:"startTime"`
	EndTime      *string  `json:"endTime"`
	InputUsage   int64    `json:"inputUsage"`
	OutputUsage  int64    `json:"outputUsage"`
	TotalUsage   int64    `json:"totalUsage"`
	TotalCost    *float64 `json:"totalCost"`
	LatencySecs  *float64 `json:"latency"`
}

// FetchDailyMetrics queries the metrics API for per-day, per-model token and
// cost aggregates between two dates, inclusive.
func (c *Client) FetchDailyMetrics(ctx context.Context, fromDate, toDate string) ([]MetricsRow, error) {
	query := map[string]any{
		"view": "observations",
		"metrics": []map[string]string{
			{"measure": "totalCost", "aggregation": "sum"},
			{"measure": "inputTokens", "aggregation": "sum"},
			{"measure": "outputTokens", "aggregation": "sum"},
			{"measure": "totalTokens", "aggregation": "sum"},
			{"measure": "count", "aggregation": "count"},
		},
		"dimensions":    []map[string]string{{"field": "providedModelName"}},
		"timeDimension": map[string]string{"granularity": "day"},
		"fromTimestamp": fromDate + "T00:00:00Z",
		"toTimestamp":   toDate + "T23:59:59Z",
		"filters":       []any{},
	}
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics query: %w", err)
	}

	params := url.Values{"query": {string(queryJSON)}}
	var body struct {
		Data []MetricsRow `json:"data"`
	}
	if err := c.get(ctx, "/api/public/metrics", params, "metrics", &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// FetchAllObservations pages through the observations API and returns every
// GENERATION record, optionally bounded below by a start timestamp.
func (c *Client) FetchAllObservations(ctx context.Context, fromTimestamp string) ([]Observation, error) {
	var all []Observation
	cursor := ""
	page := 0

	for {
		params := url.Values{
			"type":   {"GENERATION"},
			"limit":  {strconv.Itoa(observationsPageSize)},
			"fields": {"core,basic,usage,model"},
		}
		if fromTimestamp != "" {
			params.Set("fromStartTime", fromTimestamp)
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		page++
		var body struct {
			Data []Observation `json:"data"`
			Meta struct {
				Cursor *string `json:"cursor"`
			} `json:"meta"`
		}
		label := fmt.Sprintf("observations (page %d)", page)
		if err := c.get(ctx, "/api/public/v2/observations", params, label, &body); err != nil {
			return nil, err
		}
		all = append(all, body.Data...)

		if body.Meta.Cursor == nil || *body.Meta.Cursor == "" || len(body.Data) == 0 {
			break
		}
		cursor = *body.Meta.Cursor
	}
	return all, nil
}

// get issues an authenticated GET with 429 retry and decodes the JSON body
// into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, label string, out any) error {
	reqURL := c.host + path + "?" + params.Encode()

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("build %s request: %w", label, err)
		}
		req.Header.Set("Authorization", c.authHeader)

		res, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", label, err)
		}

		if res.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			delay := retryDelay(res.Header.Get("Retry-After"), attempt)
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
			c.log.Info("langfuse rate limited", "label", label, "delay", delay, "attempt", attempt+1, "max", maxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
			return fmt.Errorf("fetch %s: status %d: %s", label, res.StatusCode, strings.TrimSpace(string(body)))
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", label, err)
		}
		return nil
	}
}

// retryDelay honors Retry-After when present, otherwise backs off
// exponentially from one second.
func retryDelay(retryAfter string, attempt int) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return baseRetryDelay * (1 << attempt)
}
