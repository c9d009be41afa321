package router

import (
	"regexp"
	"strings"
)

// rule is one ordered keyword-matching classifier. Rules are evaluated in
// table order; the first match wins, so more specific classes (e.g.
// CPUCores) must precede broader ones (e.g. CPUInfo) per spec.md §4.1 step 2.
type rule struct {
	class    QueryClass
	patterns []*regexp.Regexp
}

func kw(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`\b`+w+`\b`))
	}
	return out
}

// rules is ordered most-specific-first. Each entry's patterns are OR'd.
var rules = []rule{
	{SystemHealthSummary, kw("health", "overall status", "summary", "how('s| is) (the|this|my) (system|server|box|machine)", "is (the|this|my) (system|server|box|machine) ok(ay)?")},
	{SystemSlow, kw("slow", "sluggish", "lagging", "hanging", "unresponsive")},
	{TopMemoryProcesses, kw("top.*(memory|mem)", "(memory|mem).*(hog|consumer)", "using (the )?most (memory|ram)")},
	{TopCPUProcesses, kw("top.*cpu", "cpu.*(hog|consumer)", "using (the )?most cpu")},
	{CPUCores, kw("cores?", "sockets?", "threads?", "how many cpus?")},
	{CPUInfo, kw("cpu", "processor")},
	{MemoryUsage, kw("memory usage", "ram usage", "how much (memory|ram) (is|am) (used|free|available)", "free memory")},
	{RAMInfo, kw("ram", "memory")},
	{DiskUsage, kw("disk usage", "space left", "how full", "partitions?")},
	{DiskSpace, kw("disk( space)?", "storage", "filesystem", "mount")},
	{NetworkInterfaces, kw("network interfaces?", "ip address(es)?", "nics?", "ifconfig")},
	{ServiceStatus, kw("service", "systemctl", "daemon", "is .* running")},
	{Help, kw("help", "what can you do", "commands?")},
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalize lowercases and collapses whitespace without mutating the
// caller's string (spec.md §4.1: "routing must be deterministic across
// equivalent whitespace/case variants").
func normalize(query string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(query), " "))
}

// classify returns the QueryClass for a normalized query, or Unknown.
func classify(normalized string) QueryClass {
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(normalized) {
				return r.class
			}
		}
	}
	return Unknown
}

// Classify derives the deterministic Route for a raw user query. It is pure:
// the same input always yields the same Route, and the input string is
// never mutated (spec.md §4.1, invariant "routing is a pure function of the
// normalized query text").
func Classify(query string) Route {
	class := classify(normalize(query))
	return lookupRoute(class)
}

// ClassifyWithTicketOverride applies the translator-ticket override rule:
// when the deterministic classifier already produced a non-Unknown class,
// that classification takes precedence over any class the translator ticket
// itself proposes, per spec.md §4.1 ("deterministic routing takes
// precedence over translator-proposed routing whenever the router matched a
// non-Unknown class"). ticketClass is advisory only and is returned as-is
// when the deterministic pass yields Unknown.
func ClassifyWithTicketOverride(query string, ticketClass QueryClass) Route {
	r := Classify(query)
	if r.Class != Unknown {
		return r
	}
	if ticketClass == "" {
		return r
	}
	return lookupRoute(ticketClass)
}
