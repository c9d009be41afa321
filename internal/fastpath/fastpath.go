// Package fastpath answers a whitelisted set of deterministic health
// queries straight from the snapshot cache, with no LLM call, per spec.md
// §4.9.
package fastpath

import (
	"fmt"
	"strings"
	"time"

	"sysdesk/internal/probe"
	"sysdesk/internal/router"
	"sysdesk/internal/snapshot"
)

// whitelist names the query classes the fast path is allowed to answer.
// Every entry is also CanAnswerDeterministically in the route table; this
// is neither re-derived nor checked at runtime, and the whitelist is a
// strict subset of the deterministic classes (spec.md's "short-circuit for
// a whitelisted set" language implies fast-path eligibility is narrower
// than deterministic-routing eligibility in general).
var whitelist = map[router.QueryClass]bool{
	router.RAMInfo:            true,
	router.CPUInfo:            true,
	router.CPUCores:           true,
	router.MemoryUsage:        true,
	router.DiskSpace:          true,
	router.NetworkInterfaces:  true,
	router.TopMemoryProcesses: true,
	router.TopCPUProcesses:    true,
}

// Eligible reports whether class may be served by the fast path at all.
func Eligible(class router.QueryClass) bool { return whitelist[class] }

// Result is what the fast path produces when it can answer.
type Result struct {
	Answer      string
	Reliability uint8
	Stale       bool
}

// Try composes a deterministic answer for class from the snapshot store. ok
// is false when the class isn't whitelisted, or no fresh snapshot exists
// for its required probes and force is false. When force is true (the
// degrade-on-LLM-timeout path of spec.md §4.4), stale snapshots are used
// anyway and the answer is annotated as possibly stale.
func Try(store *snapshot.Store, class router.QueryClass, probes []probe.ID, maxAge time.Duration, force bool) (Result, bool) {
	if !Eligible(class) {
		return Result{}, false
	}

	now := time.Now()
	entries := make(map[probe.ID]probe.ParsedData, len(probes))
	stale := false
	for _, id := range probes {
		parsed, ok := lookupAllowingStale(store, id, now, maxAge, force, &stale)
		if !ok {
			if !force {
				return Result{}, false
			}
			continue
		}
		entries[id] = parsed
	}

	text, ok := render(class, entries)
	if !ok {
		return Result{}, false
	}
	if stale {
		text += " (based on last cached snapshot, may be stale)"
	}

	reliability := uint8(90)
	if stale {
		reliability = 70
	}
	return Result{Answer: text, Reliability: reliability, Stale: stale}, true
}

func lookupAllowingStale(store *snapshot.Store, id probe.ID, now time.Time, maxAge time.Duration, force bool, stale *bool) (probe.ParsedData, bool) {
	_, parsed, ok := store.Lookup(id, now, maxAge)
	if ok {
		return parsed, true
	}
	if !force {
		return probe.ParsedData{}, false
	}
	// force=true: accept an arbitrarily old snapshot rather than none, as
	// long as one was ever captured.
	_, parsed, _, ok = store.LookupStale(id, now)
	if ok {
		*stale = true
		return parsed, true
	}
	return probe.ParsedData{}, false
}

func render(class router.QueryClass, entries map[probe.ID]probe.ParsedData) (string, bool) {
	switch class {
	case router.RAMInfo:
		m, ok := entries[probe.MemInfo]
		if !ok || m.Kind != probe.KindMemory {
			return "", false
		}
		return fmt.Sprintf("Total RAM: %.1f GB", float64(m.Memory.TotalKB)/1024/1024), true
	case router.MemoryUsage:
		m, ok := entries[probe.Free]
		if !ok || m.Kind != probe.KindMemory {
			return "", false
		}
		return fmt.Sprintf("Used: %.1f GB, available: %.1f GB of %.1f GB total",
			float64(m.Memory.UsedKB)/1024/1024, float64(m.Memory.AvailableKB)/1024/1024, float64(m.Memory.TotalKB)/1024/1024), true
	case router.CPUInfo, router.CPUCores:
		c, ok := entries[probe.CPUInfo]
		if !ok || c.Kind != probe.KindCPU {
			return "", false
		}
		return fmt.Sprintf("%s, %d socket(s), %d core(s), %d thread(s)", c.CPU.Model, c.CPU.Sockets, c.CPU.Cores, c.CPU.Threads), true
	case router.DiskSpace:
		d, ok := entries[probe.DF]
		if !ok || d.Kind != probe.KindDisks {
			return "", false
		}
		var b strings.Builder
		for _, disk := range d.Disks {
			fmt.Fprintf(&b, "%s (%s): %.1f GB used of %.1f GB; ", disk.Mountpoint, disk.Filesystem,
				float64(disk.UsedBytes)/1e9, float64(disk.SizeBytes)/1e9)
		}
		out := strings.TrimSuffix(b.String(), "; ")
		if out == "" {
			return "", false
		}
		return out, true
	case router.NetworkInterfaces:
		n, ok := entries[probe.NetInterface]
		if !ok {
			return "", false
		}
		if n.Raw == "" {
			return "", false
		}
		return "Network interfaces:\n" + n.Raw, true
	case router.TopMemoryProcesses, router.TopCPUProcesses:
		id := probe.TopMemory
		if class == router.TopCPUProcesses {
			id = probe.TopCPU
		}
		p, ok := entries[id]
		if !ok || p.Kind != probe.KindProcesses || len(p.Processes) == 0 {
			return "", false
		}
		top := p.Processes
		if len(top) > 5 {
			top = top[:5]
		}
		var b strings.Builder
		b.WriteString("Top processes:\n")
		for _, proc := range top {
			fmt.Fprintf(&b, "- %s (pid %d): cpu %.1f%%, mem %.1f%%\n", proc.Command, proc.PID, proc.CPUPct, proc.MemPct)
		}
		return strings.TrimSuffix(b.String(), "\n"), true
	default:
		return "", false
	}
}
