// Package reliability computes the 0-100 reliability score attached to
// every ServiceDeskResult, per spec.md §4.10. Score is a pure function:
// same input always yields the same output, no I/O, no clock reads.
package reliability

import "math"

// Reason names one rule that adjusted the score, reported back to the
// caller for transcript/debugging purposes.
type Reason string

const (
	EvidenceMissing        Reason = "EvidenceMissing"
	InventionDetected      Reason = "InventionDetected"
	PartialCoverage        Reason = "PartialCoverage"
	ProbePartialFailure    Reason = "ProbePartialFailure"
	LowTranslatorConfidence Reason = "LowTranslatorConfidence"
	NeedsClarification     Reason = "NeedsClarification"
	TurnCapExceeded        Reason = "TurnCapExceeded"
)

// Input is everything the scorer needs, gathered by the orchestrator over
// the course of one request (spec.md §4.10).
type Input struct {
	EvidenceRequired    bool
	PlannedProbes       uint32
	SucceededProbes     uint32
	TotalClaims         uint32
	VerifiedClaims      uint32
	AnswerGrounded      bool
	NoInvention         bool
	TranslatorConfident bool
	RouterClassUnknown  bool
	ClarificationNotNeeded bool
	// TurnCapExceeded is set when the orchestrator's iteration cap forced a
	// terminal refusal (spec.md §4.4 step 5). Not one of the scorer's
	// eight base rules in spec.md §4.10, but applies the same cap the
	// orchestrator's contract promises ("reliability is capped at 40").
	TurnCapExceeded bool
}

// Output is the scorer's result.
type Output struct {
	Score   uint8
	Reasons []Reason
}

// Score applies spec.md §4.10's ordered rule set. Every rule that fires is
// applied as either a cap (score = min(score, cap)) or a subtraction; the
// final score is clamped to [0,100] and rounded.
func Score(in Input) Output {
	score := 100.0
	var reasons []Reason

	capAt := func(c float64, r Reason) {
		if score > c {
			score = c
		}
		reasons = append(reasons, r)
	}
	sub := func(amount float64, r Reason) {
		score -= amount
		reasons = append(reasons, r)
	}

	if in.EvidenceRequired && in.SucceededProbes == 0 {
		capAt(40, EvidenceMissing)
	}
	if !in.NoInvention {
		capAt(40, InventionDetected)
	}
	if in.TurnCapExceeded {
		capAt(40, TurnCapExceeded)
	}
	if in.EvidenceRequired && in.TotalClaims > 0 && in.VerifiedClaims < in.TotalClaims {
		ratio := float64(in.VerifiedClaims) / float64(in.TotalClaims)
		sub(30*(1-ratio), PartialCoverage)
	}
	if in.PlannedProbes > 0 && in.SucceededProbes < in.PlannedProbes {
		ratio := float64(in.SucceededProbes) / float64(in.PlannedProbes)
		sub(20*(1-ratio), ProbePartialFailure)
	}
	if !in.TranslatorConfident && in.RouterClassUnknown {
		sub(10, LowTranslatorConfidence)
	}
	if !in.ClarificationNotNeeded {
		capAt(50, NeedsClarification)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return Output{Score: uint8(math.Round(score)), Reasons: reasons}
}
