// Package llmtransport sends completed (non-streaming) chat requests to a
// local Ollama-compatible endpoint and returns the assistant's raw text
// content, per spec.md §4.5/§6.2.
package llmtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sysdesk/internal/observability"
)

// ErrTimeout is returned when the context deadline elapses before the
// endpoint responds.
var ErrTimeout = errors.New("llmtransport: request timed out")

// ErrTransport wraps any non-timeout network or decode failure.
var ErrTransport = errors.New("llmtransport: transport failure")

// ErrEmptyResponse is returned when the endpoint returns 200 with no
// message content.
var ErrEmptyResponse = errors.New("llmtransport: empty response content")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Format    string        `json:"format"`
	KeepAlive string        `json:"keep_alive"`
	Stream    bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Transport is a thin client for a single chat completion endpoint.
// Callers share one Transport across roles; it holds no per-request state.
type Transport struct {
	baseURL string
	client  *http.Client
}

// New returns a Transport posting to baseURL's /api/chat endpoint. httpClient
// may be nil, in which case observability.NewHTTPClient(nil) is used so
// every call gets span and status-logging instrumentation for free.
func New(baseURL string, httpClient *http.Client) *Transport {
	return &Transport{
		baseURL: baseURL,
		client:  observability.NewHTTPClient(httpClient),
	}
}

var tracer = otel.Tracer("llmtransport")
var meter = otel.Meter("llmtransport")

var timeoutCounter, _ = meter.Int64Counter("llmtransport.timeouts.total")
var transportErrCounter, _ = meter.Int64Counter("llmtransport.errors.total")
var latencyHist, _ = meter.Int64Histogram("llmtransport.duration.ms")

// Chat sends a single-turn system+user exchange and returns the assistant's
// content. It never streams; the caller's context deadline is the hard
// per-call budget (spec.md §4.5, §5 "stage budgets").
func (t *Transport) Chat(ctx context.Context, model, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "chat", trace.WithAttributes(attribute.String("llm.model", model)))
	defer span.End()

	start := time.Now()
	defer func() {
		latencyHist.Record(ctx, time.Since(start).Milliseconds())
	}()

	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Format:    "json",
		KeepAlive: "5m",
		Stream:    false,
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrTransport, err)
	}
	observability.LoggerWithTrace(ctx).Debug().
		RawJSON("request_body", observability.RedactJSON(encoded)).
		Msg("llmtransport: sending chat request")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/chat", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			timeoutCounter.Add(ctx, 1)
			return "", ErrTimeout
		}
		transportErrCounter.Add(ctx, 1)
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer observability.DrainAndClose(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		transportErrCounter.Add(ctx, 1)
		return "", fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		transportErrCounter.Add(ctx, 1)
		return "", fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		transportErrCounter.Add(ctx, 1)
		return "", fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}

	if parsed.Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return parsed.Message.Content, nil
}
