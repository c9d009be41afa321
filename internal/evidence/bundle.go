// Package evidence holds the per-request, append-only bundle of parsed
// probe results that ground every claim in a final answer (spec.md §3.2).
package evidence

import (
	"encoding/json"
	"time"

	"sysdesk/internal/probe"
)

// EntryStatus mirrors probe.Status but at the evidence-bundle granularity
// (spec.md §3.2: "status ∈ {Ok, TimedOut, Failed}").
type EntryStatus int

const (
	Ok EntryStatus = iota
	TimedOut
	Failed
)

// Entry is one probe's contribution to the bundle.
type Entry struct {
	ProbeID   probe.ID
	Parsed    probe.ParsedData
	Stdout    string
	Timestamp time.Time
	Status    EntryStatus
}

// StatusFromProbe maps a probe.Status to the coarser EntryStatus.
func StatusFromProbe(s probe.Status) EntryStatus {
	switch s {
	case probe.StatusOK, probe.StatusNonZeroExit:
		return Ok
	case probe.StatusTimeout:
		return TimedOut
	default:
		return Failed
	}
}

// Bundle is the ordered, append-only evidence list for one request. It is
// never shared across requests (spec.md §1 Non-goals: one request is
// single-tenant).
type Bundle struct {
	entries []Entry
}

// New returns an empty Bundle.
func New() *Bundle { return &Bundle{} }

// Append adds an entry to the bundle, preserving execution order.
func (b *Bundle) Append(e Entry) { b.entries = append(b.entries, e) }

// Entries returns the bundle's entries in execution order. The returned
// slice must not be mutated by callers.
func (b *Bundle) Entries() []Entry { return b.entries }

// HasProbe reports whether id has at least one entry in the bundle.
func (b *Bundle) HasProbe(id probe.ID) bool {
	for _, e := range b.entries {
		if e.ProbeID == id {
			return true
		}
	}
	return false
}

// ExecutedIDs returns the distinct set of probe ids present in the bundle,
// in first-seen order.
func (b *Bundle) ExecutedIDs() []probe.ID {
	seen := make(map[probe.ID]bool, len(b.entries))
	var out []probe.ID
	for _, e := range b.entries {
		if !seen[e.ProbeID] {
			seen[e.ProbeID] = true
			out = append(out, e.ProbeID)
		}
	}
	return out
}

// SucceededCount returns the number of entries with Status == Ok.
func (b *Bundle) SucceededCount() int {
	n := 0
	for _, e := range b.entries {
		if e.Status == Ok {
			n++
		}
	}
	return n
}

// MarshalJSON renders the bundle as its entry list, so a ServiceDeskResult
// carries readable evidence on the wire instead of an opaque struct.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	if b.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b.entries)
}
