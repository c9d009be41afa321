package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sysdesk/internal/probe"
)

// document is the on-disk shape of a persisted snapshot (spec.md §6.4).
type document struct {
	SavedAt time.Time              `json:"saved_at"`
	Entries map[probe.ID]diskEntry `json:"entries"`
}

type diskEntry struct {
	Result     probe.Result     `json:"result"`
	Parsed     probe.ParsedData `json:"parsed"`
	CapturedAt time.Time        `json:"captured_at"`
	ExpiresAt  time.Time        `json:"expires_at,omitempty"`
}

// SaveTo atomically persists the store's current entries to path: write to
// a temp file in the same directory, fsync it, rename over the destination,
// then fsync the directory so a crash never leaves readers observing a
// torn write (spec.md §4.3: "Directory sync is required for durability" —
// stricter than the teacher's plain write-then-rename, which this adapts).
func (s *Store) SaveTo(path string) error {
	s.mu.RLock()
	doc := document{SavedAt: time.Now().UTC(), Entries: make(map[probe.ID]diskEntry, len(s.entries))}
	for id, e := range s.entries {
		doc.Entries[id] = diskEntry{Result: e.result, Parsed: e.parsed, CapturedAt: e.capturedAt, ExpiresAt: e.expiresAt}
	}
	s.mu.RUnlock()

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal document: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: rename into place: %w", err)
	}
	return syncDir(dir)
}

// LoadFrom populates the store from a previously persisted document. A
// missing file is not an error; the store simply starts empty.
func (s *Store) LoadFrom(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, de := range doc.Entries {
		s.entries[id] = entry{result: de.Result, parsed: de.Parsed, capturedAt: de.CapturedAt, expiresAt: de.ExpiresAt}
	}
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("snapshot: open dir %s for fsync: %w", dir, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("snapshot: fsync dir %s: %w", dir, err)
	}
	return nil
}
