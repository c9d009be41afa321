package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sysdesk/internal/probe"
)

type fakeCaller struct {
	response string
	err      error
	lastSys  string
	lastUser string
}

func (f *fakeCaller) Chat(ctx context.Context, model, system, user string) (string, error) {
	f.lastSys = system
	f.lastUser = user
	return f.response, f.err
}

func TestCall_Translator_OK(t *testing.T) {
	f := &fakeCaller{response: `{"intent":"Question","domain":"system","entities":["nginx"],"needs_probes":["systemctl"],"confidence":0.9}`}
	out, err := Call(context.Background(), Translator, f, "llama3", Input{Query: "is nginx running"})
	require.NoError(t, err)
	require.Equal(t, Translator, out.Tag)
	require.True(t, out.TranslatorTicket.Confident())
	require.Equal(t, IntentQuestion, out.TranslatorTicket.Intent)
}

func TestCall_Translator_BadIntent(t *testing.T) {
	f := &fakeCaller{response: `{"intent":"Bogus","confidence":0.5}`}
	_, err := Call(context.Background(), Translator, f, "llama3", Input{Query: "x"})
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestCall_Junior_RunProbe(t *testing.T) {
	f := &fakeCaller{response: `{"action":"run_probe","probe_id":"mem.info","reason":"need memory"}`}
	out, err := Call(context.Background(), Junior, f, "llama3", Input{
		Query:           "how much ram do I have",
		AvailableProbes: []probe.ID{probe.MemInfo},
	})
	require.NoError(t, err)
	require.Equal(t, ActionRunProbe, out.JuniorAction.Kind)
	require.Equal(t, probe.MemInfo, out.JuniorAction.ProbeID)
	require.Contains(t, f.lastUser, "mem.info")
}

func TestCall_Junior_ProposeAnswer_BadOverall(t *testing.T) {
	f := &fakeCaller{response: `{"action":"propose_answer","text":"you have 8GB","citations":["mem.info"],
		"scores":{"evidence":0.9,"reasoning":0.9,"coverage":0.9,"overall":0.5},"ready_for_user":true}`}
	_, err := Call(context.Background(), Junior, f, "llama3", Input{Query: "q"})
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestCall_Junior_UnknownAction(t *testing.T) {
	f := &fakeCaller{response: `{"action":"do_something_else"}`}
	_, err := Call(context.Background(), Junior, f, "llama3", Input{})
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestCall_Senior_Approve(t *testing.T) {
	f := &fakeCaller{response: `{"verdict":"approve","scores":{"evidence":0.9,"reasoning":0.9,"coverage":0.9,"overall":0.9}}`}
	out, err := Call(context.Background(), Senior, f, "llama3", Input{Draft: "draft text"})
	require.NoError(t, err)
	require.Equal(t, VerdictApprove, out.SeniorVerdict.Kind)
}

func TestCall_Senior_FixAndAccept_MissingFixedAnswer(t *testing.T) {
	f := &fakeCaller{response: `{"verdict":"fix_and_accept","scores":{"evidence":0.9,"reasoning":0.9,"coverage":0.9,"overall":0.9}}`}
	_, err := Call(context.Background(), Senior, f, "llama3", Input{})
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestCall_Senior_NeedsMoreProbes(t *testing.T) {
	f := &fakeCaller{response: `{"verdict":"needs_more_probes","probe_requests":["df"]}`}
	out, err := Call(context.Background(), Senior, f, "llama3", Input{})
	require.NoError(t, err)
	require.Equal(t, VerdictNeedsMoreProbes, out.SeniorVerdict.Kind)
	require.Equal(t, []probe.ID{probe.DF}, out.SeniorVerdict.ProbeRequests)
}

func TestCall_TransportError_Wrapped(t *testing.T) {
	f := &fakeCaller{err: context.DeadlineExceeded}
	_, err := Call(context.Background(), Junior, f, "llama3", Input{})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type sequenceCaller struct {
	responses []string
	i         int
}

func (s *sequenceCaller) Chat(ctx context.Context, model, system, user string) (string, error) {
	r := s.responses[s.i]
	if s.i < len(s.responses)-1 {
		s.i++
	}
	return r, nil
}

func TestCallWithRetry_RetriesOnSchemaViolationThenSucceeds(t *testing.T) {
	f := &sequenceCaller{responses: []string{
		`{"action":"bogus"}`,
		`{"action":"run_probe","probe_id":"mem.info","reason":"need memory"}`,
	}}
	out, err := CallWithRetry(context.Background(), Junior, f, "llama3", Input{AvailableProbes: []probe.ID{probe.MemInfo}})
	require.NoError(t, err)
	require.Equal(t, ActionRunProbe, out.JuniorAction.Kind)
}

func TestCallWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	f := &fakeCaller{response: `{"action":"bogus"}`}
	_, err := CallWithRetry(context.Background(), Junior, f, "llama3", Input{})
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestCallWithRetry_TransportErrorNotRetried(t *testing.T) {
	f := &fakeCaller{err: context.DeadlineExceeded}
	_, err := CallWithRetry(context.Background(), Junior, f, "llama3", Input{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValidateScores_OutOfRange(t *testing.T) {
	require.Error(t, validateScores(Scores{Evidence: 1.5, Reasoning: 0.5, Coverage: 0.5, Overall: 0.5}))
}
