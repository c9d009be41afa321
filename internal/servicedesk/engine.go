package servicedesk

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"sysdesk/internal/evidence"
	"sysdesk/internal/fastpath"
	"sysdesk/internal/observability"
	"sysdesk/internal/orchestrator"
	"sysdesk/internal/probe"
	"sysdesk/internal/reliability"
	"sysdesk/internal/roles"
	"sysdesk/internal/router"
	"sysdesk/internal/snapshot"
	"sysdesk/internal/transcript"
)

// healthStyle names the classes the §4.4 degrade table treats as
// "health-style query": on LLM timeout with some evidence already
// gathered, compose a fast-path fallback rather than a bare refusal.
var healthStyle = map[router.QueryClass]bool{
	router.SystemHealthSummary: true,
	router.SystemSlow:          true,
	router.ServiceStatus:       true,
}

// Engine is the top-level entry point: one Answer call per request,
// composing the router, fast path, orchestrator, and reliability scorer.
// Safe for concurrent use; it holds no per-request state of its own.
type Engine struct {
	Orchestrator   *orchestrator.Engine
	Store          *snapshot.Store
	DefaultTurnCap int
	DefaultMaxAge  time.Duration

	// TranslatorEnabled turns on the optional Translator stage (spec.md
	// §4.6) ahead of the orchestrator's audit loop; off by default.
	TranslatorEnabled bool
	TranslatorBudget  time.Duration
}

// NewEngine wires an Engine from its collaborators.
func NewEngine(orch *orchestrator.Engine, store *snapshot.Store) *Engine {
	return &Engine{
		Orchestrator:     orch,
		Store:            store,
		DefaultTurnCap:   10,
		DefaultMaxAge:    5 * time.Minute,
		TranslatorBudget: 4 * time.Second,
	}
}

// Answer routes query, answers it deterministically or via the audit loop,
// and returns the final ServiceDeskResult. It never returns an error for
// ordinary degraded outcomes (spec.md §7: probe/LLM failures are
// local-recoverable); an error return means no answer was possible at all.
func (e *Engine) Answer(ctx context.Context, query string, ticket *roles.TranslatorTicket, opts Options) (Result, error) {
	requestID := uuid.NewString()
	log := observability.LoggerWithTrace(ctx)
	log.Info().Str("request_id", requestID).Str("query", observability.RedactText(query)).Msg("answering request")

	// The translator ticket carries no QueryClass of its own (spec.md §4.1:
	// it only proposes domain/intent/entities); deterministic classification
	// always wins when the router produces a non-Unknown class, so a plain
	// Classify covers both the ticket and no-ticket cases.
	route := router.Classify(query)

	maxAge := e.DefaultMaxAge
	if opts.SnapshotMaxAge != nil {
		maxAge = *opts.SnapshotMaxAge
	}

	if fastpath.Eligible(route.Class) {
		if res, ok := fastpath.Try(e.Store, route.Class, route.Probes, maxAge, false); ok {
			return e.buildFastPathResult(requestID, route, res), nil
		}
	}

	if e.TranslatorEnabled && ticket == nil {
		ticket = e.runTranslator(ctx, requestID, query, route)
	}

	// Orchestrator is shared across concurrent requests, so per-request
	// overrides operate on a local copy rather than mutating shared state.
	orch := e.Orchestrator
	if opts.TurnCap > 0 || opts.ModelHint != "" || opts.SnapshotMaxAge != nil {
		o := *e.Orchestrator
		if opts.TurnCap > 0 {
			o.TurnCap = opts.TurnCap
		}
		if opts.ModelHint != "" {
			o.Model = opts.ModelHint
		}
		if opts.SnapshotMaxAge != nil {
			o.SnapshotMaxAge = maxAge
		}
		orch = &o
	}
	out, err := orch.Run(ctx, query, route, ticket)

	if err != nil {
		return e.degrade(requestID, route, out, err, opts), nil
	}

	return e.buildResult(requestID, route, out), nil
}

// runTranslator invokes the optional Translator stage (spec.md §4.6). A
// schema violation or transport failure here is non-fatal: the Translator
// only supplements the deterministic router's routing, so the request
// proceeds with ticket == nil rather than degrading the whole answer over
// one LLM call.
func (e *Engine) runTranslator(ctx context.Context, requestID, query string, route router.Route) *roles.TranslatorTicket {
	budget := e.TranslatorBudget
	if budget <= 0 {
		budget = 4 * time.Second
	}
	tCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	out, err := roles.CallWithRetry(tCtx, roles.Translator, e.Orchestrator.Caller, e.Orchestrator.Model, roles.Input{
		Query:       query,
		RouteDomain: string(route.Domain),
	})
	if err != nil {
		log := observability.LoggerWithTrace(ctx)
		log.Debug().Str("request_id", requestID).Err(err).Msg("translator stage skipped")
		return nil
	}
	return out.TranslatorTicket
}

// degrade implements spec.md §4.4's "Timeouts" row: on total LLM
// unavailability for a health-style query with some evidence already
// gathered, compose a fast-path fallback with reliability clamped to
// [40,60] rather than a bare refusal; otherwise refuse with reliability 25
// (30 when the failed call was a schema violation).
func (e *Engine) degrade(requestID string, route router.Route, out orchestrator.Outcome, callErr error, opts Options) Result {
	hasEvidence := out.Evidence != nil && len(out.Evidence.Entries()) > 0

	maxAge := e.DefaultMaxAge
	if opts.SnapshotMaxAge != nil {
		maxAge = *opts.SnapshotMaxAge
	}

	if healthStyle[route.Class] && hasEvidence {
		fallbackClass, fallbackProbes := fastPathFallback(route)
		if res, ok := fastpath.Try(e.Store, fallbackClass, fallbackProbes, maxAge, true); ok {
			score := reliability.Score(reliability.Input{
				EvidenceRequired: true,
				PlannedProbes:    uint32(len(route.Probes)),
				SucceededProbes:  uint32(out.Evidence.SucceededCount()),
				NoInvention:      true,
				ClarificationNotNeeded: true,
			})
			if score.Score > 60 {
				score.Score = 60
			}
			if score.Score < 40 {
				score.Score = 40
			}
			return Result{
				RequestID:        requestID,
				Answer:           res.Answer,
				ReliabilityScore: score.Score,
				ReliabilityReasons: append(score.Reasons, reliability.Reason("LlmTransportTimeout")),
				ReliabilitySignals: Signals{
					NoInvention:            true,
					ClarificationNotNeeded: true,
				},
				Domain:         route.Domain,
				Evidence:       out.Evidence,
				Transcript:     out.Transcript,
				ExecutionTrace: buildTrace(route, out),
			}
		}
	}

	tr := out.Transcript
	if tr == nil {
		tr = transcript.New()
	}
	bundle := out.Evidence
	if bundle == nil {
		bundle = evidence.New()
	}
	answer := "I couldn't reach a grounded answer right now. Please try again shortly."
	reliabilityCap := uint8(25)
	if strings.Contains(callErr.Error(), "schema") {
		reliabilityCap = 30
	}

	return Result{
		RequestID:        requestID,
		Answer:           answer,
		ReliabilityScore: reliabilityCap,
		ReliabilityReasons: []reliability.Reason{reliability.EvidenceMissing, reliability.Reason("LlmTransportTimeout")},
		ReliabilitySignals: Signals{
			ClarificationNotNeeded: true,
		},
		Domain:         route.Domain,
		Evidence:       bundle,
		Transcript:     tr,
		ExecutionTrace: buildTrace(route, out),
	}
}

// fastPathFallback maps a route to a whitelisted class and matching probe
// set the fast path can actually render from. SystemHealthSummary and
// SystemSlow have no direct fast-path renderer, so the memory view is used
// as the most broadly informative single-probe substitute; the class and
// its probe list must agree, since fastpath's renderers key their lookup
// by fixed probe ids per class.
func fastPathFallback(route router.Route) (router.QueryClass, []probe.ID) {
	if fastpath.Eligible(route.Class) {
		return route.Class, route.Probes
	}
	return router.RAMInfo, []probe.ID{probe.MemInfo}
}

func (e *Engine) buildFastPathResult(requestID string, route router.Route, res fastpath.Result) Result {
	tr := transcript.New()
	tr.NoteEvent("answered via fast path, no LLM call", time.Now())
	bundle := evidence.New()

	reasons := []reliability.Reason{}
	return Result{
		RequestID:        requestID,
		Answer:           res.Answer,
		ReliabilityScore: res.Reliability,
		ReliabilityReasons: reasons,
		ReliabilitySignals: Signals{
			TranslatorConfident:    true,
			ProbeCoverage:          1.0,
			AnswerGrounded:         true,
			NoInvention:            true,
			ClarificationNotNeeded: true,
		},
		Domain:         route.Domain,
		Evidence:       bundle,
		Transcript:     tr,
		ExecutionTrace: transcript.ExecutionTrace{RouteClass: route.Class},
	}
}

func (e *Engine) buildResult(requestID string, route router.Route, out orchestrator.Outcome) Result {
	coverage := 1.0
	if out.PlannedProbes > 0 {
		coverage = float64(out.SucceededProbes) / float64(out.PlannedProbes)
	}

	score := reliability.Score(reliability.Input{
		EvidenceRequired:       route.Capability.EvidenceRequired,
		PlannedProbes:          uint32(out.PlannedProbes),
		SucceededProbes:        uint32(out.SucceededProbes),
		TotalClaims:            uint32(out.TotalClaims),
		VerifiedClaims:         uint32(out.VerifiedClaims),
		AnswerGrounded:         out.AnswerGrounded,
		NoInvention:            out.NoInvention,
		TranslatorConfident:    out.TranslatorConfident,
		RouterClassUnknown:     route.Class == router.Unknown,
		ClarificationNotNeeded: out.ClarificationNotNeeded,
		TurnCapExceeded:        out.TurnCapExceeded,
	})
	// A Junior or Senior refusal is terminal but grounded in nothing; it is
	// capped at 40, the same cap as the forced turn-cap refusal.
	if strings.HasPrefix(out.Answer, "I can't give a reliable answer") && score.Score > 40 {
		score.Score = 40
		score.Reasons = append(score.Reasons, reliability.Reason("Refused"))
	}

	return Result{
		RequestID:        requestID,
		Answer:           out.Answer,
		ReliabilityScore: score.Score,
		ReliabilityReasons: score.Reasons,
		ReliabilitySignals: Signals{
			TranslatorConfident:    out.TranslatorConfident,
			ProbeCoverage:          coverage,
			AnswerGrounded:         out.AnswerGrounded,
			NoInvention:            out.NoInvention,
			ClarificationNotNeeded: out.ClarificationNotNeeded,
		},
		Domain:                route.Domain,
		Evidence:              out.Evidence,
		NeedsClarification:    out.NeedsClarification,
		ClarificationQuestion: out.ClarificationQuestion,
		Transcript:            out.Transcript,
		ExecutionTrace:        buildTrace(route, out),
	}
}

func buildTrace(route router.Route, out orchestrator.Outcome) transcript.ExecutionTrace {
	stats := transcript.ProbeStats{Planned: out.PlannedProbes, Succeeded: out.SucceededProbes}
	if out.Evidence != nil {
		stats.Failed = len(out.Evidence.Entries()) - out.SucceededProbes
	}
	return transcript.ExecutionTrace{
		RouteClass: route.Class,
		ProbeStats: stats,
		LLMTurns:   out.Turns,
	}
}
