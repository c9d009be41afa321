package fastpath

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sysdesk/internal/probe"
	"sysdesk/internal/router"
	"sysdesk/internal/snapshot"
)

func TestEligible_WhitelistOnly(t *testing.T) {
	require.True(t, Eligible(router.RAMInfo))
	require.False(t, Eligible(router.SystemHealthSummary), "SystemHealthSummary is explicitly not deterministic")
	require.False(t, Eligible(router.ServiceStatus))
}

func TestTry_RAMInfo_FreshSnapshot(t *testing.T) {
	store := snapshot.New()
	now := time.Now()
	store.Store(probe.MemInfo, probe.Result{}, probe.ParsedData{Kind: probe.KindMemory, Memory: probe.Memory{TotalKB: 16 * 1024 * 1024}}, probe.Static, now)

	res, ok := Try(store, router.RAMInfo, []probe.ID{probe.MemInfo}, time.Minute, false)
	require.True(t, ok)
	require.Contains(t, res.Answer, "16.0 GB")
	require.False(t, res.Stale)
	require.GreaterOrEqual(t, res.Reliability, uint8(80))
}

func TestTry_NoSnapshot_DeclinesWithoutForce(t *testing.T) {
	store := snapshot.New()
	_, ok := Try(store, router.RAMInfo, []probe.ID{probe.MemInfo}, time.Minute, false)
	require.False(t, ok)
}

func TestTry_StaleSnapshot_ForceComposesDisclaimer(t *testing.T) {
	store := snapshot.New()
	old := time.Now().Add(-24 * time.Hour)
	store.Store(probe.MemInfo, probe.Result{}, probe.ParsedData{Kind: probe.KindMemory, Memory: probe.Memory{TotalKB: 8 * 1024 * 1024}}, probe.Fast, old)

	_, ok := Try(store, router.RAMInfo, []probe.ID{probe.MemInfo}, time.Minute, false)
	require.False(t, ok, "stale entry must not satisfy the non-forced path")

	res, ok := Try(store, router.RAMInfo, []probe.ID{probe.MemInfo}, time.Minute, true)
	require.True(t, ok)
	require.Contains(t, res.Answer, "may be stale")
	require.True(t, res.Stale)
	require.Less(t, res.Reliability, uint8(80))
}

func TestTry_IneligibleClass_NeverAnswers(t *testing.T) {
	store := snapshot.New()
	_, ok := Try(store, router.SystemHealthSummary, nil, time.Minute, true)
	require.False(t, ok)
}

func TestTry_TopMemoryProcesses(t *testing.T) {
	store := snapshot.New()
	now := time.Now()
	store.Store(probe.TopMemory, probe.Result{}, probe.ParsedData{Kind: probe.KindProcesses, Processes: []probe.Process{
		{User: "root", PID: 1, CPUPct: 0.1, MemPct: 12.5, Command: "chromium"},
	}}, probe.Fast, now)

	res, ok := Try(store, router.TopMemoryProcesses, []probe.ID{probe.TopMemory}, time.Minute, false)
	require.True(t, ok)
	require.Contains(t, res.Answer, "chromium")
}
