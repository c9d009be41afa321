// Package roles implements the three LLM roles (Translator, Junior, Senior)
// as one schema-validating dispatcher over a shared llmtransport.Transport,
// per spec.md §3.5 and §4.6-§4.8.
package roles

import "sysdesk/internal/probe"

// RoleTag discriminates which role a Call invocation addresses.
type RoleTag string

const (
	Translator RoleTag = "translator"
	Junior     RoleTag = "junior"
	Senior     RoleTag = "senior"
)

// Intent is the TranslatorTicket's classification of what the user wants.
type Intent string

const (
	IntentQuestion Intent = "Question"
	IntentRequest  Intent = "Request"
	IntentClarify  Intent = "Clarify"
)

// TranslatorTicket is the Translator role's output (spec.md §3.5).
type TranslatorTicket struct {
	Intent                 Intent    `json:"intent"`
	Domain                 string    `json:"domain"`
	Entities               []string  `json:"entities"`
	NeedsProbes            []probe.ID `json:"needs_probes"`
	ClarificationQuestion  string    `json:"clarification_question,omitempty"`
	Confidence             float64   `json:"confidence"`
}

// Confident reports whether the ticket meets the translator_confident
// reliability signal threshold (spec.md §4.6: confidence >= 0.7).
func (t TranslatorTicket) Confident() bool { return t.Confidence >= 0.7 }

// Scores is the shared Junior/Senior scoring vector (spec.md §3.5). Overall
// must equal the minimum of the other three; validateScores enforces this.
type Scores struct {
	Evidence  float64 `json:"evidence"`
	Reasoning float64 `json:"reasoning"`
	Coverage  float64 `json:"coverage"`
	Overall   float64 `json:"overall"`
}

// JuniorActionKind discriminates the five shapes a JuniorAction may take.
type JuniorActionKind string

const (
	ActionRunProbe           JuniorActionKind = "run_probe"
	ActionAskClarification   JuniorActionKind = "ask_clarification"
	ActionProposeAnswer      JuniorActionKind = "propose_answer"
	ActionEscalateToSenior   JuniorActionKind = "escalate_to_senior"
	ActionRefuse             JuniorActionKind = "refuse"
)

// JuniorAction is the Junior role's single-action-per-turn output
// (spec.md §3.5, §4.7). Only the fields relevant to Kind are populated.
type JuniorAction struct {
	Kind JuniorActionKind `json:"action"`

	// run_probe
	ProbeID probe.ID `json:"probe_id,omitempty"`
	Reason  string   `json:"reason,omitempty"`

	// ask_clarification
	Question string `json:"question,omitempty"`

	// propose_answer
	Text         string     `json:"text,omitempty"`
	Citations    []probe.ID `json:"citations,omitempty"`
	Scores       Scores     `json:"scores,omitempty"`
	ReadyForUser bool       `json:"ready_for_user,omitempty"`

	// escalate_to_senior
	Summary string `json:"summary,omitempty"`
}

// SeniorVerdictKind discriminates the four shapes a SeniorVerdict may take.
type SeniorVerdictKind string

const (
	VerdictApprove         SeniorVerdictKind = "approve"
	VerdictFixAndAccept    SeniorVerdictKind = "fix_and_accept"
	VerdictNeedsMoreProbes SeniorVerdictKind = "needs_more_probes"
	VerdictRefuse          SeniorVerdictKind = "refuse"
)

// SeniorVerdict is the Senior role's audit output (spec.md §3.5, §4.8).
type SeniorVerdict struct {
	Kind SeniorVerdictKind `json:"verdict"`

	// approve / fix_and_accept
	Scores Scores `json:"scores,omitempty"`

	// fix_and_accept
	FixedAnswer string   `json:"fixed_answer,omitempty"`
	Corrections []string `json:"corrections,omitempty"`

	// needs_more_probes
	ProbeRequests []probe.ID `json:"probe_requests,omitempty"`

	// refuse
	Reason string `json:"reason,omitempty"`
}
