package observability

import (
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracedTransport wraps an http.RoundTripper with a span per request and
// debug logging of the response status and elapsed time; it does not
// redact anything. It plays the role the
// teacher's otelhttp.NewTransport wrapper played, without pulling in the
// otelhttp contrib module: this engine only ever calls one local endpoint,
// so a hand-rolled span is simpler than wiring the contrib instrumentation
// for a single call site.
type tracedTransport struct {
	base http.RoundTripper
}

func (t *tracedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tracer := otel.Tracer("httpclient")
	ctx, span := tracer.Start(req.Context(), "http.request",
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
		))
	defer span.End()

	start := time.Now()
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	dur := time.Since(start)

	log := LoggerWithTrace(ctx)
	if err != nil {
		span.RecordError(err)
		log.Debug().Err(err).Dur("elapsed", dur).Msg("http_request_failed")
		return resp, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	log.Debug().Int("status", resp.StatusCode).Dur("elapsed", dur).Msg("http_request_done")
	return resp, nil
}

// NewHTTPClient returns an http.Client with a sane default timeout and a
// tracing/logging transport. Pass base=nil to get the package default.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	base.Transport = &tracedTransport{base: rt}
	return base
}

// DrainAndClose discards and closes an HTTP response body so the
// underlying connection can be reused by the transport's pool.
func DrainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
