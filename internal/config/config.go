// Package config loads the engine's runtime configuration from the
// environment, following the teacher's env-first convention: a single
// Load() reads os.Getenv, applies defaults, and returns a plain struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProbeTiming bounds how long a single probe may run before it is killed.
type ProbeTiming struct {
	Timeout time.Duration
}

// Config is the full set of knobs the engine reads at startup.
type Config struct {
	// SocketPath is the Unix-domain socket the IPC server listens on.
	SocketPath string
	// SocketGroup, if set, is used only for documentation/ops purposes;
	// the engine does not chown sockets itself (that is the installer's job).
	SocketGroup string

	// LLMBaseURL is the local chat endpoint, e.g. http://127.0.0.1:11434.
	LLMBaseURL string
	// LLMModel is the default model name passed to the transport.
	LLMModel string

	// RequestBudget is the whole-request budget (§5). It is loaded here but
	// no component applies it; only the per-call budgets below are used.
	RequestBudget time.Duration
	// TranslatorBudget, JuniorBudget, SeniorBudget bound individual LLM calls.
	TranslatorBudget time.Duration
	JuniorBudget     time.Duration
	SeniorBudget     time.Duration

	// TranslatorEnabled turns on the optional Translator stage (spec.md
	// §4.6: "optional, used when configured"). Off by default, since the
	// deterministic router already covers routing for any query it
	// recognizes confidently.
	TranslatorEnabled bool
	// ProbeBudget bounds a single probe invocation absent a per-probe override.
	ProbeBudget time.Duration

	// TurnCap is the default hard iteration cap for the orchestrator loop.
	TurnCap int

	// SnapshotMaxAge is the default freshness window for cached probe results.
	SnapshotMaxAge time.Duration
	// SnapshotPath, if non-empty, persists the snapshot cache to disk.
	SnapshotPath string

	// CatalogOverridePath, if non-empty, is a YAML file adjusting TTL
	// classes or timeouts for specific probe ids without a rebuild.
	CatalogOverridePath string

	// DebugTranscriptDir names a directory for per-request NDJSON transcript
	// dumps. It is loaded here but no component reads it, so no dump is
	// written.
	DebugTranscriptDir string

	LogPath  string
	LogLevel string
}

// Load reads configuration from the environment, applying defaults for
// anything unset. It never fails on missing optional values; it returns
// an error only when a set value cannot be parsed (e.g. a malformed
// duration), matching the teacher's "config errors are startup-fatal,
// everything else degrades" posture (spec.md §7).
func Load() (Config, error) {
	cfg := Config{
		SocketPath:       firstNonEmpty(os.Getenv("DESKD_SOCKET_PATH"), "/run/deskd/deskd.sock"),
		SocketGroup:      os.Getenv("DESKD_SOCKET_GROUP"),
		LLMBaseURL:       firstNonEmpty(os.Getenv("DESKD_LLM_BASE_URL"), "http://127.0.0.1:11434"),
		LLMModel:         firstNonEmpty(os.Getenv("DESKD_LLM_MODEL"), "llama3.1"),
		RequestBudget:    25 * time.Second,
		TranslatorBudget: 4 * time.Second,
		JuniorBudget:     8 * time.Second,
		SeniorBudget:     8 * time.Second,
		ProbeBudget:      5 * time.Second,
		TurnCap:          10,
		SnapshotMaxAge:   30 * time.Second,
		SnapshotPath:     os.Getenv("DESKD_SNAPSHOT_PATH"),
		CatalogOverridePath: os.Getenv("DESKD_CATALOG_OVERRIDE_PATH"),
		DebugTranscriptDir:  os.Getenv("DESKD_DEBUG_TRANSCRIPT_DIR"),
		LogPath:             os.Getenv("DESKD_LOG_PATH"),
		LogLevel:            firstNonEmpty(os.Getenv("DESKD_LOG_LEVEL"), "info"),
	}

	if v := strings.TrimSpace(os.Getenv("DESKD_TRANSLATOR_ENABLED")); v != "" {
		enabled, convErr := strconv.ParseBool(v)
		if convErr != nil {
			return cfg, fmt.Errorf("config: DESKD_TRANSLATOR_ENABLED: %w", convErr)
		}
		cfg.TranslatorEnabled = enabled
	}

	var err error
	if cfg.RequestBudget, err = durationEnv("DESKD_REQUEST_BUDGET", cfg.RequestBudget); err != nil {
		return cfg, err
	}
	if cfg.TranslatorBudget, err = durationEnv("DESKD_TRANSLATOR_BUDGET", cfg.TranslatorBudget); err != nil {
		return cfg, err
	}
	if cfg.JuniorBudget, err = durationEnv("DESKD_JUNIOR_BUDGET", cfg.JuniorBudget); err != nil {
		return cfg, err
	}
	if cfg.SeniorBudget, err = durationEnv("DESKD_SENIOR_BUDGET", cfg.SeniorBudget); err != nil {
		return cfg, err
	}
	if cfg.ProbeBudget, err = durationEnv("DESKD_PROBE_BUDGET", cfg.ProbeBudget); err != nil {
		return cfg, err
	}
	if cfg.SnapshotMaxAge, err = durationEnv("DESKD_SNAPSHOT_MAX_AGE", cfg.SnapshotMaxAge); err != nil {
		return cfg, err
	}
	if v := os.Getenv("DESKD_TURN_CAP"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return cfg, fmt.Errorf("config: DESKD_TURN_CAP: %w", convErr)
		}
		cfg.TurnCap = n
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
