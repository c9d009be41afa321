package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"sysdesk/internal/observability"
)

// ErrSpawnFailure is returned (wrapped) when the probe's binary could not
// be started at all, per spec.md §4.2 / §7 ProbeSpawnFailure.
var ErrSpawnFailure = errors.New("probe: spawn failure")

// Runner executes a single probe. It is the seam the orchestrator and
// fast-path depend on, so tests can inject a fake without spawning real
// subprocesses — the dependency-injection style spec.md §9 calls for.
type Runner interface {
	Run(ctx context.Context, id ID) (Result, ParsedData, error)
}

// Executor runs probes via a shell, one at a time, with a hard timeout.
// Grounded directly on internal/tools/cli/exec.go's exec.CommandContext +
// bytes.Buffer + otel span/counter pattern; the differences are that the
// command line here is fixed per ID (never receives caller-supplied args)
// and truncation is by line count rather than bytes (spec.md §4.2).
type Executor struct {
	// DefaultTimeout is used when a probe's catalog Definition has no
	// Timeout set.
	DefaultTimeout time.Duration
}

// NewExecutor returns an Executor with the given default per-probe timeout.
func NewExecutor(defaultTimeout time.Duration) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	return &Executor{DefaultTimeout: defaultTimeout}
}

// Run spawns the probe's fixed command line under `sh -c`, capturing
// stdout/stderr, classifying the outcome, and parsing stdout into a
// ParsedData value. It never returns an error for a failed/timed-out probe
// — those are reported via Result.Status and a non-nil ParsedData{Kind:
// KindError} — only for a catalog lookup miss.
func (e *Executor) Run(ctx context.Context, id ID) (Result, ParsedData, error) {
	def, ok := Lookup(id)
	if !ok {
		return Result{}, ParsedData{}, fmt.Errorf("probe: unknown id %q", id)
	}

	tracer := otel.Tracer("probe")
	meter := otel.Meter("probe")
	ctx, span := tracer.Start(ctx, "run", trace.WithAttributes(attribute.String("probe.id", string(id))))
	defer span.End()

	spawnFailures, _ := meter.Int64Counter("probe.spawn_failures.total")
	timeouts, _ := meter.Int64Counter("probe.timeouts.total")
	parseFailures, _ := meter.Int64Counter("probe.parse_failures.total")
	durHist, _ := meter.Int64Histogram("probe.duration.ms")

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = e.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", def.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	durHist.Record(ctx, elapsed.Milliseconds(), otelmetric.WithAttributes(attribute.String("probe", string(id))))

	res := Result{ID: id, Command: def.Command, TimingMS: elapsed.Milliseconds()}

	switch {
	case runErr == nil:
		res.Status = StatusOK
		res.ExitCode = 0
	case runCtx.Err() == context.DeadlineExceeded:
		res.Status = StatusTimeout
		res.ExitCode = -1
		res.Stderr = fmt.Sprintf("timed out after %dms", timeout.Milliseconds())
		timeouts.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("probe", string(id))))
		span.RecordError(context.DeadlineExceeded)
		return res, ParsedData{Kind: KindError, Reason: res.Stderr}, nil
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.Status = StatusNonZeroExit
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Binary missing, permission denied, etc: never reached the OS
			// well enough to produce an exit code.
			res.Status = StatusSpawnFailure
			res.ExitCode = -1
			res.Stderr = runErr.Error()
			spawnFailures.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("probe", string(id))))
			span.RecordError(fmt.Errorf("%w: %s", ErrSpawnFailure, runErr))
			return res, ParsedData{Kind: KindError, Reason: res.Stderr}, nil
		}
	}

	outStr, outTrunc := truncateLines(stdout.String(), maxOutputLines)
	errStr, errTrunc := truncateLines(stderr.String(), maxOutputLines)
	res.Stdout = outStr
	res.Stderr = errStr
	res.Truncated = outTrunc || errTrunc

	observability.LoggerWithTrace(ctx).Debug().
		Str("probe_id", string(id)).
		Str("stdout", observability.RedactText(outStr)).
		Msg("probe: captured stdout")

	parsed := def.Parse(stdout.String())
	if parsed.Kind == KindError {
		parseFailures.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("probe", string(id))))
		parsed.Raw = stdout.String()
	}

	span.SetAttributes(attribute.Int("probe.exit_code", res.ExitCode), attribute.Int64("probe.duration_ms", res.TimingMS))
	return res, parsed, nil
}
