// Package servicedesk wires the router, fast path, orchestrator, and
// reliability scorer into the single entry point described by spec.md
// §1: one natural-language query in, one ServiceDeskResult out.
package servicedesk

import (
	"time"

	"sysdesk/internal/evidence"
	"sysdesk/internal/reliability"
	"sysdesk/internal/router"
	"sysdesk/internal/transcript"
)

// Options threads per-request overrides through the whole pipeline. A nil
// SnapshotMaxAge falls back to the engine's configured default; a non-nil
// SnapshotMaxAge is used verbatim, including a literal zero, which means
// "bypass the cache" (spec.md §8.3) — a plain time.Duration field could not
// represent that case, since its zero value is indistinguishable from "not
// set".
type Options struct {
	SnapshotMaxAge *time.Duration
	ModelHint      string
	TurnCap        int
	Debug          bool
}

// Signals is the reliability_signals object of spec.md §3.6.
type Signals struct {
	TranslatorConfident  bool    `json:"translator_confident"`
	ProbeCoverage        float64 `json:"probe_coverage"`
	AnswerGrounded       bool    `json:"answer_grounded"`
	NoInvention          bool    `json:"no_invention"`
	ClarificationNotNeeded bool  `json:"clarification_not_needed"`
}

// Result is the ServiceDeskResult final return value of spec.md §3.6.
type Result struct {
	RequestID              string                    `json:"request_id"`
	Answer                 string                    `json:"answer"`
	ReliabilityScore       uint8                     `json:"reliability_score"`
	ReliabilitySignals     Signals                   `json:"reliability_signals"`
	ReliabilityReasons     []reliability.Reason      `json:"reliability_reasons"`
	Domain                 router.SpecialistDomain   `json:"domain"`
	Evidence               *evidence.Bundle          `json:"evidence"`
	NeedsClarification     bool                      `json:"needs_clarification"`
	ClarificationQuestion  string                    `json:"clarification_question,omitempty"`
	Transcript             *transcript.Transcript    `json:"transcript"`
	ExecutionTrace         transcript.ExecutionTrace `json:"execution_trace"`
}
