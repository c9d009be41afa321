package reliability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScore_PerfectInput_Is100(t *testing.T) {
	out := Score(Input{
		EvidenceRequired:       true,
		PlannedProbes:          2,
		SucceededProbes:        2,
		TotalClaims:            3,
		VerifiedClaims:         3,
		AnswerGrounded:         true,
		NoInvention:            true,
		TranslatorConfident:    true,
		ClarificationNotNeeded: true,
	})
	require.Equal(t, uint8(100), out.Score)
	require.Empty(t, out.Reasons)
}

func TestScore_GoldenInvariant_EvidenceMissingImpliesNotPerfect(t *testing.T) {
	out := Score(Input{
		EvidenceRequired:       true,
		SucceededProbes:        0,
		TotalClaims:            2,
		NoInvention:            true,
		ClarificationNotNeeded: true,
	})
	require.Less(t, out.Score, uint8(100))
	require.Contains(t, out.Reasons, EvidenceMissing)
}

func TestScore_GoldenInvariant_InventionCapsAt40(t *testing.T) {
	out := Score(Input{
		EvidenceRequired:       false,
		NoInvention:            false,
		ClarificationNotNeeded: true,
	})
	require.LessOrEqual(t, out.Score, uint8(40))
}

func TestScore_GoldenInvariant_NoEvidenceNoClaimsGroundedIsHigh(t *testing.T) {
	out := Score(Input{
		EvidenceRequired:       false,
		TotalClaims:            0,
		AnswerGrounded:         true,
		NoInvention:            true,
		TranslatorConfident:    true,
		ClarificationNotNeeded: true,
	})
	require.GreaterOrEqual(t, out.Score, uint8(80))
}

func TestScore_GoldenInvariant_AllSucceededAllVerifiedIsHigh(t *testing.T) {
	out := Score(Input{
		EvidenceRequired:       true,
		PlannedProbes:          3,
		SucceededProbes:        3,
		TotalClaims:            4,
		VerifiedClaims:         4,
		AnswerGrounded:         true,
		NoInvention:            true,
		TranslatorConfident:    true,
		ClarificationNotNeeded: true,
	})
	require.GreaterOrEqual(t, out.Score, uint8(90))
}

func TestScore_PartialCoverage_Subtraction(t *testing.T) {
	out := Score(Input{
		EvidenceRequired:       true,
		PlannedProbes:          1,
		SucceededProbes:        1,
		TotalClaims:            4,
		VerifiedClaims:         2,
		NoInvention:            true,
		ClarificationNotNeeded: true,
	})
	// 100 - 30*(1-0.5) = 85
	require.Equal(t, uint8(85), out.Score)
	require.Contains(t, out.Reasons, PartialCoverage)
}

func TestScore_ProbePartialFailure_Subtraction(t *testing.T) {
	out := Score(Input{
		EvidenceRequired:       false,
		PlannedProbes:          4,
		SucceededProbes:        3,
		NoInvention:            true,
		ClarificationNotNeeded: true,
	})
	// 100 - 20*(1-0.75) = 95
	require.Equal(t, uint8(95), out.Score)
	require.Contains(t, out.Reasons, ProbePartialFailure)
}

func TestScore_LowTranslatorConfidence_OnlyWithUnknownClass(t *testing.T) {
	withUnknown := Score(Input{NoInvention: true, ClarificationNotNeeded: true, TranslatorConfident: false, RouterClassUnknown: true})
	require.Contains(t, withUnknown.Reasons, LowTranslatorConfidence)

	withoutUnknown := Score(Input{NoInvention: true, ClarificationNotNeeded: true, TranslatorConfident: false, RouterClassUnknown: false})
	require.NotContains(t, withoutUnknown.Reasons, LowTranslatorConfidence)
}

func TestScore_NeedsClarification_CapsAt50(t *testing.T) {
	out := Score(Input{NoInvention: true, ClarificationNotNeeded: false})
	require.LessOrEqual(t, out.Score, uint8(50))
	require.Contains(t, out.Reasons, NeedsClarification)
}

func TestScore_TurnCapExceeded_CapsAt40(t *testing.T) {
	out := Score(Input{NoInvention: true, ClarificationNotNeeded: true, TurnCapExceeded: true})
	require.LessOrEqual(t, out.Score, uint8(40))
}

func TestScore_NeverBelowZero(t *testing.T) {
	out := Score(Input{
		EvidenceRequired:       true,
		PlannedProbes:          10,
		SucceededProbes:        0,
		TotalClaims:            10,
		VerifiedClaims:         0,
		NoInvention:            false,
		TranslatorConfident:    false,
		RouterClassUnknown:     true,
		ClarificationNotNeeded: false,
		TurnCapExceeded:        true,
	})
	require.GreaterOrEqual(t, out.Score, uint8(0))
}
