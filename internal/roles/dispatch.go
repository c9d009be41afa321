package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sysdesk/internal/probe"
)

// ErrSchemaViolation is returned when the model's JSON does not conform to
// the role's expected shape (spec.md §4.5: "schema violation is a
// role-level error, not a transport error").
var ErrSchemaViolation = errors.New("roles: schema violation")

// Caller is the narrow interface orchestrator depends on, satisfied by a
// *llmtransport.Transport or a test double.
type Caller interface {
	Chat(ctx context.Context, model, system, user string) (string, error)
}

// Input carries the role-specific arguments for one Call. Only the fields
// relevant to Tag are read.
type Input struct {
	Tag RoleTag

	Query string

	// translator
	RouteDomain string

	// junior
	AvailableProbes []probe.ID
	EvidenceSummary string
	TurnIndex       int

	// senior
	Draft        string
	DraftScores  Scores
	DraftCitedBy []probe.ID
}

// Output carries exactly one populated role result, selected by Tag.
type Output struct {
	Tag              RoleTag
	TranslatorTicket *TranslatorTicket
	JuniorAction     *JuniorAction
	SeniorVerdict    *SeniorVerdict
}

var tracer = otel.Tracer("roles")
var meter = otel.Meter("roles")
var schemaViolationCounter, _ = meter.Int64Counter("roles.schema_violations.total")

// MaxSchemaRetries bounds how many extra attempts CallWithRetry makes after
// an initial schema violation (spec.md §7: "treated as a recoverable error
// up to three role retries, then escalated"; §9: "schema drift is a
// reliability hit, not a crash").
const MaxSchemaRetries = 3

// CallWithRetry calls Call, retrying up to MaxSchemaRetries additional
// times when the model's reply violates the role's schema. A transport
// failure (anything not wrapping ErrSchemaViolation) is not retried here;
// it propagates immediately so the caller's own timeout/degrade handling
// applies.
func CallWithRetry(ctx context.Context, tag RoleTag, caller Caller, model string, in Input) (Output, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxSchemaRetries; attempt++ {
		out, err := Call(ctx, tag, caller, model, in)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrSchemaViolation) {
			return Output{}, err
		}
		lastErr = err
	}
	return Output{}, fmt.Errorf("roles: %s schema violation after %d retries: %w", tag, MaxSchemaRetries, lastErr)
}

// Call dispatches a single LLM round trip for the given role tag, building
// the role's system/user prompt, invoking the transport, and validating the
// response against the role's schema. It never mutates input.
func Call(ctx context.Context, tag RoleTag, caller Caller, model string, in Input) (Output, error) {
	ctx, span := tracer.Start(ctx, "call", trace.WithAttributes(attribute.String("role", string(tag))))
	defer span.End()

	system := systemPromptFor(tag)
	if system == "" {
		return Output{}, fmt.Errorf("roles: unknown role tag %q", tag)
	}
	user := buildUserPrompt(tag, in)

	raw, err := caller.Chat(ctx, model, system, user)
	if err != nil {
		return Output{}, fmt.Errorf("roles: %s transport call: %w", tag, err)
	}

	switch tag {
	case Translator:
		return parseTranslator(ctx, raw)
	case Junior:
		return parseJunior(ctx, raw, in.AvailableProbes)
	case Senior:
		return parseSenior(ctx, raw)
	default:
		return Output{}, fmt.Errorf("roles: unknown role tag %q", tag)
	}
}

func buildUserPrompt(tag RoleTag, in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", in.Query)
	switch tag {
	case Translator:
		if in.RouteDomain != "" {
			fmt.Fprintf(&b, "Router domain hint: %s\n", in.RouteDomain)
		}
	case Junior:
		fmt.Fprintf(&b, "Turn: %d\n", in.TurnIndex)
		fmt.Fprintf(&b, "Available probes: %s\n", joinProbeIDs(in.AvailableProbes))
		fmt.Fprintf(&b, "Evidence so far:\n%s\n", in.EvidenceSummary)
	case Senior:
		fmt.Fprintf(&b, "Junior draft: %s\n", in.Draft)
		fmt.Fprintf(&b, "Junior citations: %s\n", joinProbeIDs(in.DraftCitedBy))
		fmt.Fprintf(&b, "Junior scores: evidence=%.2f reasoning=%.2f coverage=%.2f overall=%.2f\n",
			in.DraftScores.Evidence, in.DraftScores.Reasoning, in.DraftScores.Coverage, in.DraftScores.Overall)
		fmt.Fprintf(&b, "Evidence bundle:\n%s\n", in.EvidenceSummary)
	}
	return b.String()
}

func joinProbeIDs(ids []probe.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func violation(ctx context.Context, format string, args ...any) error {
	schemaViolationCounter.Add(ctx, 1)
	return fmt.Errorf("%w: %s", ErrSchemaViolation, fmt.Sprintf(format, args...))
}

func parseTranslator(ctx context.Context, raw string) (Output, error) {
	var t TranslatorTicket
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Output{}, violation(ctx, "translator: invalid JSON: %v", err)
	}
	switch t.Intent {
	case IntentQuestion, IntentRequest, IntentClarify:
	default:
		return Output{}, violation(ctx, "translator: invalid intent %q", t.Intent)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return Output{}, violation(ctx, "translator: confidence %f out of [0,1]", t.Confidence)
	}
	return Output{Tag: Translator, TranslatorTicket: &t}, nil
}

func parseJunior(ctx context.Context, raw string, available []probe.ID) (Output, error) {
	var a JuniorAction
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Output{}, violation(ctx, "junior: invalid JSON: %v", err)
	}
	switch a.Kind {
	case ActionRunProbe:
		if a.ProbeID == "" {
			return Output{}, violation(ctx, "junior: run_probe missing probe_id")
		}
	case ActionAskClarification:
		if strings.TrimSpace(a.Question) == "" {
			return Output{}, violation(ctx, "junior: ask_clarification missing question")
		}
	case ActionProposeAnswer:
		if strings.TrimSpace(a.Text) == "" {
			return Output{}, violation(ctx, "junior: propose_answer missing text")
		}
		if err := validateScores(a.Scores); err != nil {
			return Output{}, violation(ctx, "junior: %v", err)
		}
	case ActionEscalateToSenior:
		if strings.TrimSpace(a.Summary) == "" {
			return Output{}, violation(ctx, "junior: escalate_to_senior missing summary")
		}
	case ActionRefuse:
		if strings.TrimSpace(a.Reason) == "" {
			return Output{}, violation(ctx, "junior: refuse missing reason")
		}
	default:
		return Output{}, violation(ctx, "junior: unknown action %q", a.Kind)
	}
	return Output{Tag: Junior, JuniorAction: &a}, nil
}

func parseSenior(ctx context.Context, raw string) (Output, error) {
	var v SeniorVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Output{}, violation(ctx, "senior: invalid JSON: %v", err)
	}
	switch v.Kind {
	case VerdictApprove:
		if err := validateScores(v.Scores); err != nil {
			return Output{}, violation(ctx, "senior: %v", err)
		}
	case VerdictFixAndAccept:
		if strings.TrimSpace(v.FixedAnswer) == "" {
			return Output{}, violation(ctx, "senior: fix_and_accept missing fixed_answer")
		}
		if err := validateScores(v.Scores); err != nil {
			return Output{}, violation(ctx, "senior: %v", err)
		}
	case VerdictNeedsMoreProbes:
		if len(v.ProbeRequests) == 0 {
			return Output{}, violation(ctx, "senior: needs_more_probes missing probe_requests")
		}
	case VerdictRefuse:
		if strings.TrimSpace(v.Reason) == "" {
			return Output{}, violation(ctx, "senior: refuse missing reason")
		}
	default:
		return Output{}, violation(ctx, "senior: unknown verdict %q", v.Kind)
	}
	return Output{Tag: Senior, SeniorVerdict: &v}, nil
}

const scoreEpsilon = 1e-6

func validateScores(s Scores) error {
	for name, v := range map[string]float64{"evidence": s.Evidence, "reasoning": s.Reasoning, "coverage": s.Coverage, "overall": s.Overall} {
		if v < 0 || v > 1 {
			return fmt.Errorf("score %s=%f out of [0,1]", name, v)
		}
	}
	min := s.Evidence
	if s.Reasoning < min {
		min = s.Reasoning
	}
	if s.Coverage < min {
		min = s.Coverage
	}
	if diff := s.Overall - min; diff > scoreEpsilon || diff < -scoreEpsilon {
		return fmt.Errorf("overall=%f does not equal min(evidence,reasoning,coverage)=%f", s.Overall, min)
	}
	return nil
}
