package snapshot

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sysdesk/internal/probe"
)

func TestLookup_MissMissingEntry(t *testing.T) {
	s := New()
	_, _, ok := s.Lookup(probe.MemInfo, time.Now(), time.Minute)
	require.False(t, ok)
}

func TestStoreAndLookup_Fresh(t *testing.T) {
	s := New()
	now := time.Now()
	s.Store(probe.MemInfo, probe.Result{ExitCode: 0}, probe.ParsedData{Kind: probe.KindMemory}, probe.Fast, now)

	res, parsed, ok := s.Lookup(probe.MemInfo, now.Add(5*time.Second), time.Minute)
	require.True(t, ok)
	require.Equal(t, 0, res.ExitCode)
	require.Equal(t, probe.KindMemory, parsed.Kind)
}

func TestLookup_ExpiresAtTTLBoundary(t *testing.T) {
	s := New()
	now := time.Now()
	s.Store(probe.MemInfo, probe.Result{}, probe.ParsedData{}, probe.Fast, now)

	_, _, ok := s.Lookup(probe.MemInfo, now.Add(31*time.Second), time.Hour)
	require.False(t, ok, "fast TTL entry should expire after 30s")
}

func TestLookup_StaticNeverExpires(t *testing.T) {
	s := New()
	now := time.Now()
	s.Store(probe.CPUInfo, probe.Result{}, probe.ParsedData{}, probe.Static, now)

	_, _, ok := s.Lookup(probe.CPUInfo, now.Add(24*time.Hour), 365*24*time.Hour)
	require.True(t, ok)
}

func TestLookup_RespectsMaxAge(t *testing.T) {
	s := New()
	now := time.Now()
	s.Store(probe.CPUInfo, probe.Result{}, probe.ParsedData{}, probe.Static, now)

	_, _, ok := s.Lookup(probe.CPUInfo, now.Add(time.Hour), 10*time.Minute)
	require.False(t, ok, "max_age should bound even a never-expiring entry per invariant C1")
}

func TestGetOrRun_CacheHitSkipsRun(t *testing.T) {
	s := New()
	now := time.Now()
	s.Store(probe.Free, probe.Result{ExitCode: 0}, probe.ParsedData{}, probe.Fast, now)

	var calls int32
	_, _, err := s.GetOrRun(context.Background(), probe.Free, time.Minute, now, func(ctx context.Context) (probe.Result, probe.ParsedData, probe.TTLClass, error) {
		atomic.AddInt32(&calls, 1)
		return probe.Result{}, probe.ParsedData{}, probe.Fast, nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, calls)
}

func TestGetOrRun_ConcurrentMissesCollapseToOneRun(t *testing.T) {
	s := New()
	now := time.Now()

	var calls int32
	run := func(ctx context.Context) (probe.Result, probe.ParsedData, probe.TTLClass, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return probe.Result{ExitCode: 0}, probe.ParsedData{Kind: probe.KindMemory}, probe.Fast, nil
	}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			_, _, err := s.GetOrRun(context.Background(), probe.MemInfo, time.Minute, now, run)
			require.NoError(t, err)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	require.EqualValues(t, 1, calls)
}

func TestGetOrRun_PropagatesRunError(t *testing.T) {
	s := New()
	wantErr := probe.ErrSpawnFailure
	_, _, err := s.GetOrRun(context.Background(), probe.DF, time.Minute, time.Now(), func(ctx context.Context) (probe.Result, probe.ParsedData, probe.TTLClass, error) {
		return probe.Result{}, probe.ParsedData{}, probe.Fast, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestInvalidate_DropsMatchingPrefix(t *testing.T) {
	s := New()
	now := time.Now()
	s.Store(probe.ID("pkg.apt"), probe.Result{}, probe.ParsedData{}, probe.Slow, now)
	s.Store(probe.ID("pkg.snap"), probe.Result{}, probe.ParsedData{}, probe.Slow, now)
	s.Store(probe.MemInfo, probe.Result{}, probe.ParsedData{}, probe.Fast, now)

	n := s.Invalidate("pkg.")
	require.Equal(t, 2, n)
	require.Equal(t, 1, s.Len())
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	s := New()
	now := time.Now().UTC().Truncate(time.Second)
	s.Store(probe.MemInfo, probe.Result{ExitCode: 0, Stdout: "hi"}, probe.ParsedData{Kind: probe.KindMemory}, probe.Fast, now)
	require.NoError(t, s.SaveTo(path))

	loaded := New()
	require.NoError(t, loaded.LoadFrom(path))
	res, parsed, ok := loaded.Lookup(probe.MemInfo, now, time.Minute)
	require.True(t, ok)
	require.Equal(t, "hi", res.Stdout)
	require.Equal(t, probe.KindMemory, parsed.Kind)
}

func TestLoadFrom_MissingFileIsNoop(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadFrom(filepath.Join(t.TempDir(), "missing.json")))
	require.Equal(t, 0, s.Len())
}
