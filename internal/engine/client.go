// Package engine is the HTTP client for the external risk/generation engine.
// The engine owns task generation from regulatory-calendar rules, the
// at-risk flag computation, and absence reassignment; this module only
// invokes those operations and consumes their results.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"compliance-taskboard/internal/telemetry"
)

// RunSummary is the engine's response envelope. The upstream service speaks
// Spanish on the wire ("mensaje", "detalles"); field names are kept verbatim.
type RunSummary struct {
	Success bool           `json:"success"`
	Message string         `json:"mensaje"`
	Details []string       `json:"detalles,omitempty"`
	Stats   map[string]int `json:"stats,omitempty"`
}

// UpstreamError carries a non-2xx engine response verbatim. There is no
// local fallback: the caller sees exactly what the engine said.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("engine returned %d: %s", e.Status, e.Body)
}

// Client invokes the engine's HTTP endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GenerateTasks asks the engine to create task rows for a fiscal period.
func (c *Client) GenerateTasks(ctx context.Context, period string) (RunSummary, error) {
	return c.post(ctx, "/engine/generate-tasks", map[string]string{"periodo": period})
}

// RefreshRisk asks the engine to recompute the at-risk flag for a period.
func (c *Client) RefreshRisk(ctx context.Context, period string) (RunSummary, error) {
	return c.post(ctx, "/engine/refresh-risk", map[string]string{"periodo": period})
}

// Reassign asks the engine to move an absent collaborator's tasks to a
// substitute.
func (c *Client) Reassign(ctx context.Context, collaboratorID string) (RunSummary, error) {
	return c.post(ctx, "/engine/auto-reassign", map[string]string{"colaborador_id": collaboratorID})
}

func (c *Client) post(ctx context.Context, path string, payload any) (RunSummary, error) {
	telemetry.EngineCalls.Inc()

	body, err := json.Marshal(payload)
	if err != nil {
		return RunSummary{}, fmt.Errorf("marshal engine request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return RunSummary{}, fmt.Errorf("build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.EngineFailures.Inc()
		return RunSummary{}, fmt.Errorf("call engine %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.EngineFailures.Inc()
		return RunSummary{}, fmt.Errorf("read engine response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.EngineFailures.Inc()
		return RunSummary{}, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var summary RunSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return RunSummary{}, fmt.Errorf("decode engine response: %w", err)
	}
	return summary, nil
}
