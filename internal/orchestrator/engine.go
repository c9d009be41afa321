// Package orchestrator drives the bounded Junior/Senior audit loop of
// spec.md §4.4: plan a probe set or answer, execute, audit, repeat until a
// terminal verdict or the iteration cap is hit.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"sysdesk/internal/evidence"
	"sysdesk/internal/probe"
	"sysdesk/internal/roles"
	"sysdesk/internal/router"
	"sysdesk/internal/snapshot"
	"sysdesk/internal/transcript"
)

var meter = otel.Meter("orchestrator")
var catalogViolationCounter, _ = meter.Int64Counter("orchestrator.catalog_violations.total")
var inventionCounter, _ = meter.Int64Counter("orchestrator.invention_detections.total")
var turnCapCounter, _ = meter.Int64Counter("orchestrator.turn_cap_exceeded.total")

// Engine runs the turn loop for one request. It holds no per-request state;
// construct once and share across concurrent requests (spec.md §5).
type Engine struct {
	Runner         probe.Runner
	Caller         roles.Caller
	Store          *snapshot.Store
	Model          string
	TurnCap        int
	JuniorTimeout  time.Duration
	SeniorTimeout  time.Duration
	SnapshotMaxAge time.Duration
}

// NewEngine returns an Engine with sane defaults for any zero-valued
// duration/cap fields.
func NewEngine(runner probe.Runner, caller roles.Caller, store *snapshot.Store, model string) *Engine {
	return &Engine{
		Runner:         runner,
		Caller:         caller,
		Store:          store,
		Model:          model,
		TurnCap:        10,
		JuniorTimeout:  8 * time.Second,
		SeniorTimeout:  8 * time.Second,
		SnapshotMaxAge: 5 * time.Minute,
	}
}

// Outcome is everything the orchestrator learned while answering one
// request, enough for the reliability scorer and the top-level Result to
// be built without re-deriving anything (spec.md §3.6, §4.10).
type Outcome struct {
	Answer                 string
	NeedsClarification     bool
	ClarificationQuestion  string
	Evidence               *evidence.Bundle
	Transcript             *transcript.Transcript
	Scores                 roles.Scores
	AnswerGrounded         bool
	NoInvention            bool
	UnsupportedTokens      []string
	TotalClaims            int
	VerifiedClaims         int
	PlannedProbes          int
	SucceededProbes        int
	TranslatorConfident    bool
	ClarificationNotNeeded bool
	TurnCapExceeded        bool
	Turns                  int
	RouteClass             router.QueryClass
}

const forcedRefusalMessage = "Unable to reach a grounded answer within budget."

// Run executes the turn loop for query under route, optionally seeded by a
// Translator ticket. ticket may be nil when the Translator stage is
// disabled (spec.md §4.6, optional stage).
func (e *Engine) Run(ctx context.Context, query string, route router.Route, ticket *roles.TranslatorTicket) (Outcome, error) {
	bundle := evidence.New()
	tr := transcript.New()
	executed := make(map[probe.ID]bool)

	allowed := make(map[probe.ID]bool, len(route.Probes))
	for _, id := range route.Probes {
		allowed[id] = true
	}

	translatorConfident := ticket == nil || ticket.Confident()

	runProbe := func(id probe.ID) {
		now := time.Now()
		if !probe.InCatalog(id) || !allowed[id] {
			catalogViolationCounter.Add(ctx, 1)
			tr.NoteEvent(fmt.Sprintf("catalog violation: probe %q not in catalog or route", id), now)
			bundle.Append(evidence.Entry{
				ProbeID:   id,
				Parsed:    probe.ParsedData{Kind: probe.KindError, Reason: "probe not in catalog"},
				Timestamp: now,
				Status:    evidence.Failed,
			})
			return
		}

		def, _ := probe.Lookup(id)
		tr.ProbeStartEvent(string(id), def.Command, now)

		res, parsed, err := e.Store.GetOrRun(ctx, id, e.SnapshotMaxAge, now, func(ctx context.Context) (probe.Result, probe.ParsedData, probe.TTLClass, error) {
			r, p, runErr := e.Runner.Run(ctx, id)
			return r, p, def.TTL, runErr
		})
		end := time.Now()
		executed[id] = true
		if err != nil {
			bundle.Append(evidence.Entry{ProbeID: id, Parsed: probe.ParsedData{Kind: probe.KindError, Reason: err.Error()}, Timestamp: end, Status: evidence.Failed})
			tr.ProbeEndEvent(string(id), -1, end.Sub(now).Milliseconds(), err.Error(), end)
			return
		}
		bundle.Append(evidence.Entry{ProbeID: id, Parsed: parsed, Stdout: res.Stdout, Timestamp: end, Status: evidence.StatusFromProbe(res.Status)})
		preview := res.Stdout
		if len(preview) > 200 {
			preview = preview[:200]
		}
		tr.ProbeEndEvent(string(id), res.ExitCode, res.TimingMS, preview, end)
	}

	var (
		draft       string
		draftScores roles.Scores
		citations   []probe.ID
		terminal    bool
		answer      string
		needsClar   bool
		clarQ       string
		finalScores roles.Scores
		turnCap     bool
		turnsUsed   int
	)

	for turn := 1; turn <= max1(e.TurnCap); turn++ {
		turnsUsed = turn
		tr.StageStart("turn", time.Now())

		if route.Capability.EvidenceRequired && len(executed) == 0 && len(route.Capability.SpineProbes) > 0 {
			tr.NoteEvent("spine enforcement: running spine probes before first turn", time.Now())
			for _, id := range route.Capability.SpineProbes {
				runProbe(id)
			}
		}

		juniorCtx, cancel := context.WithTimeout(ctx, e.JuniorTimeout)
		jOut, err := roles.CallWithRetry(juniorCtx, roles.Junior, e.Caller, e.Model, roles.Input{
			Query:           query,
			AvailableProbes: route.Probes,
			EvidenceSummary: summarizeEvidence(bundle),
			TurnIndex:       turn,
		})
		cancel()
		if err != nil {
			tr.StageEnd("turn", transcript.Error, time.Now())
			return e.timeoutOrErrorOutcome(bundle, tr, route, translatorConfident, turnsUsed), err
		}

		act := jOut.JuniorAction
		tr.MessageEvent("junior", "orchestrator", string(act.Kind), time.Now())

		proceedToSenior := false
		switch act.Kind {
		case roles.ActionRunProbe:
			runProbe(act.ProbeID)
			tr.StageEnd("turn", transcript.Ok, time.Now())
			continue
		case roles.ActionAskClarification:
			needsClar = true
			clarQ = act.Question
			terminal = true
			answer = "I need more information to answer that: " + act.Question
			tr.StageEnd("turn", transcript.Ok, time.Now())
		case roles.ActionProposeAnswer:
			draft = act.Text
			draftScores = act.Scores
			citations = act.Citations
			if !act.ReadyForUser {
				tr.StageEnd("turn", transcript.Ok, time.Now())
				continue
			}
			proceedToSenior = true
		case roles.ActionEscalateToSenior:
			if draft == "" {
				draft = act.Summary
			}
			proceedToSenior = true
		case roles.ActionRefuse:
			terminal = true
			answer = "I can't give a reliable answer: " + act.Reason
			finalScores = roles.Scores{}
			tr.StageEnd("turn", transcript.Ok, time.Now())
		}

		if terminal {
			break
		}

		if proceedToSenior {
			seniorCtx, scancel := context.WithTimeout(ctx, e.SeniorTimeout)
			sOut, serr := roles.CallWithRetry(seniorCtx, roles.Senior, e.Caller, e.Model, roles.Input{
				Query:           query,
				Draft:           draft,
				DraftScores:     draftScores,
				DraftCitedBy:    citations,
				EvidenceSummary: summarizeEvidence(bundle),
			})
			scancel()
			if serr != nil {
				tr.StageEnd("turn", transcript.Error, time.Now())
				return e.timeoutOrErrorOutcome(bundle, tr, route, translatorConfident, turnsUsed), serr
			}

			v := sOut.SeniorVerdict
			tr.MessageEvent("senior", "orchestrator", string(v.Kind), time.Now())

			switch v.Kind {
			case roles.VerdictApprove:
				terminal = true
				answer = draft
				finalScores = v.Scores
			case roles.VerdictFixAndAccept:
				terminal = true
				answer = v.FixedAnswer
				finalScores = v.Scores
				if len(v.Corrections) > 0 {
					tr.NoteEvent("senior corrections: "+strings.Join(v.Corrections, "; "), time.Now())
				}
			case roles.VerdictNeedsMoreProbes:
				for _, id := range v.ProbeRequests {
					if !probe.InCatalog(id) {
						catalogViolationCounter.Add(ctx, 1)
						tr.NoteEvent(fmt.Sprintf("catalog violation: senior requested %q outside catalog", id), time.Now())
						continue
					}
					allowed[id] = true
					runProbe(id)
				}
			case roles.VerdictRefuse:
				terminal = true
				answer = "I can't give a reliable answer: " + v.Reason
				finalScores = roles.Scores{}
			}
		}

		tr.StageEnd("turn", transcript.Ok, time.Now())
		if terminal {
			break
		}
	}

	if !terminal {
		turnCap = true
		turnCapCounter.Add(ctx, 1)
		terminal = true
		answer = forcedRefusalMessage
		finalScores = roles.Scores{}
	}

	noInvention := true
	var unsupported []string
	totalClaims, verifiedClaims := 0, 0
	if !needsClar && answer != forcedRefusalMessage && !strings.HasPrefix(answer, "I can't give a reliable answer") {
		noInvention, unsupported, totalClaims, verifiedClaims = checkInvention(answer, bundle)
		if !noInvention {
			inventionCounter.Add(ctx, 1)
			tr.NoteEvent("invention detected: unsupported tokens "+strings.Join(unsupported, ", "), time.Now())
		}
	}

	out := Outcome{
		Answer:                 answer,
		NeedsClarification:     needsClar,
		ClarificationQuestion:  clarQ,
		Evidence:               bundle,
		Transcript:             tr,
		Scores:                 finalScores,
		AnswerGrounded:         finalScores.Overall >= 0.8 && noInvention,
		NoInvention:            noInvention,
		UnsupportedTokens:      unsupported,
		TotalClaims:            totalClaims,
		VerifiedClaims:         verifiedClaims,
		PlannedProbes:          len(route.Probes),
		SucceededProbes:        bundle.SucceededCount(),
		TranslatorConfident:    translatorConfident,
		ClarificationNotNeeded: !needsClar,
		TurnCapExceeded:        turnCap,
		Turns:                  turnsUsed,
		RouteClass:             route.Class,
	}
	return out, nil
}

// timeoutOrErrorOutcome builds a degraded Outcome when a role call fails
// outright (transport timeout or unrecoverable schema violation after
// retries are exhausted). The caller (servicedesk) decides whether to
// apply the health-query fast-path fallback of spec.md §4.4 "Timeouts".
func (e *Engine) timeoutOrErrorOutcome(bundle *evidence.Bundle, tr *transcript.Transcript, route router.Route, translatorConfident bool, turns int) Outcome {
	return Outcome{
		Answer:                 "I couldn't complete that request right now.",
		Evidence:               bundle,
		Transcript:             tr,
		NoInvention:            true,
		PlannedProbes:          len(route.Probes),
		SucceededProbes:        bundle.SucceededCount(),
		TranslatorConfident:    translatorConfident,
		ClarificationNotNeeded: true,
		Turns:                  turns,
		RouteClass:             route.Class,
	}
}

func summarizeEvidence(bundle *evidence.Bundle) string {
	entries := bundle.Entries()
	if len(entries) == 0 {
		return "(no evidence gathered yet)"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s (status=%d): %s\n", e.ProbeID, e.Status, truncate(e.Stdout, 300))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
