package probe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOverrides_MissingFileIsNoop(t *testing.T) {
	require.NoError(t, LoadOverrides(""))
	require.NoError(t, LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLoadOverrides_AppliesTTLAndTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	doc := "probes:\n  free:\n    ttl: static\n    timeout_seconds: 9\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	orig, _ := Lookup(Free)
	defer ApplyOverrides(map[ID]Override{Free: {TTL: &orig.TTL, Timeout: &orig.Timeout}})

	require.NoError(t, LoadOverrides(path))
	got, ok := Lookup(Free)
	require.True(t, ok)
	require.Equal(t, Static, got.TTL)
	require.Equal(t, 9*time.Second, got.Timeout)
}

func TestLoadOverrides_UnknownProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	doc := "probes:\n  not.a.probe:\n    ttl: fast\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	require.Error(t, LoadOverrides(path))
}
