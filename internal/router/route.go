package router

import "sysdesk/internal/probe"

// EvidenceKind names a category of fact a route's capability promises it
// can produce deterministically from spine probes alone (spec.md §3.1 R1).
type EvidenceKind string

const (
	EvidenceMemory    EvidenceKind = "memory"
	EvidenceCPU       EvidenceKind = "cpu"
	EvidenceDisks     EvidenceKind = "disks"
	EvidenceBlockDevs EvidenceKind = "block_devices"
	EvidenceServices  EvidenceKind = "services"
	EvidenceProcesses EvidenceKind = "processes"
	EvidenceNetwork   EvidenceKind = "network"
)

// RouteCapability is the deterministic contract a Route promises, per
// spec.md §3.1.
type RouteCapability struct {
	CanAnswerDeterministically bool
	RequiredEvidence           []EvidenceKind
	SpineProbes                []probe.ID
	EvidenceRequired           bool
}

// Route is the deterministic derivation from a QueryClass to a probe plan,
// domain, and capability (spec.md §3.1).
type Route struct {
	Class      QueryClass
	Probes     []probe.ID
	Domain     SpecialistDomain
	Capability RouteCapability
}

// routeTable maps each QueryClass to its Route. The R1/R2 tests in
// classify_test.go check it: a CanAnswerDeterministically route with
// RequiredEvidence has non-empty SpineProbes, and EvidenceRequired implies
// SpineProbes is non-empty.
var routeTable = map[QueryClass]Route{
	CPUInfo: {
		Class:  CPUInfo,
		Probes: []probe.ID{probe.CPUInfo},
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceCPU},
			SpineProbes:                []probe.ID{probe.CPUInfo},
			EvidenceRequired:           true,
		},
	},
	CPUCores: {
		Class:  CPUCores,
		Probes: []probe.ID{probe.CPUInfo},
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceCPU},
			SpineProbes:                []probe.ID{probe.CPUInfo},
			EvidenceRequired:           true,
		},
	},
	RAMInfo: {
		Class:  RAMInfo,
		Probes: []probe.ID{probe.MemInfo},
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceMemory},
			SpineProbes:                []probe.ID{probe.MemInfo},
			EvidenceRequired:           true,
		},
	},
	MemoryUsage: {
		Class:  MemoryUsage,
		Probes: []probe.ID{probe.Free, probe.MemInfo},
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceMemory},
			SpineProbes:                []probe.ID{probe.Free},
			EvidenceRequired:           true,
		},
	},
	DiskSpace: {
		Class:  DiskSpace,
		Probes: []probe.ID{probe.DF},
		Domain: DomainStorage,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceDisks},
			SpineProbes:                []probe.ID{probe.DF},
			EvidenceRequired:           true,
		},
	},
	DiskUsage: {
		Class:  DiskUsage,
		Probes: []probe.ID{probe.DF, probe.Lsblk},
		Domain: DomainStorage,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceDisks, EvidenceBlockDevs},
			SpineProbes:                []probe.ID{probe.DF, probe.Lsblk},
			EvidenceRequired:           true,
		},
	},
	NetworkInterfaces: {
		Class:  NetworkInterfaces,
		Probes: []probe.ID{probe.NetInterface},
		Domain: DomainNetwork,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceNetwork},
			SpineProbes:                []probe.ID{probe.NetInterface},
			EvidenceRequired:           true,
		},
	},
	TopMemoryProcesses: {
		Class:  TopMemoryProcesses,
		Probes: []probe.ID{probe.TopMemory},
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceProcesses},
			SpineProbes:                []probe.ID{probe.TopMemory},
			EvidenceRequired:           true,
		},
	},
	TopCPUProcesses: {
		Class:  TopCPUProcesses,
		Probes: []probe.ID{probe.TopCPU},
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			RequiredEvidence:           []EvidenceKind{EvidenceProcesses},
			SpineProbes:                []probe.ID{probe.TopCPU},
			EvidenceRequired:           true,
		},
	},
	ServiceStatus: {
		Class:  ServiceStatus,
		Probes: []probe.ID{probe.Systemctl},
		Domain: DomainSystem,
		Capability: RouteCapability{
			// Deciding whether "is nginx running" is answered requires
			// interpreting free-text service names against the failed-unit
			// list, which spec.md treats as LLM-judged, not mechanical.
			CanAnswerDeterministically: false,
			RequiredEvidence:           []EvidenceKind{EvidenceServices},
			SpineProbes:                []probe.ID{probe.Systemctl},
			EvidenceRequired:           true,
		},
	},
	SystemSlow: {
		Class:  SystemSlow,
		Probes: []probe.ID{probe.TopCPU, probe.TopMemory},
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: false,
			RequiredEvidence:           []EvidenceKind{EvidenceProcesses},
			SpineProbes:                []probe.ID{probe.TopCPU, probe.TopMemory},
			EvidenceRequired:           true,
		},
	},
	SystemHealthSummary: {
		Class:  SystemHealthSummary,
		Probes: []probe.ID{probe.Free, probe.DF, probe.Systemctl, probe.TopCPU},
		Domain: DomainSystem,
		Capability: RouteCapability{
			// Explicitly NOT deterministic per spec.md §3.1: summarization
			// requires LLM judgment even though all evidence is mechanical.
			CanAnswerDeterministically: false,
			RequiredEvidence:           []EvidenceKind{EvidenceMemory, EvidenceDisks, EvidenceServices, EvidenceProcesses},
			SpineProbes:                []probe.ID{probe.Free, probe.DF, probe.Systemctl},
			EvidenceRequired:           true,
		},
	},
	Help: {
		Class:  Help,
		Probes: nil,
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: true,
			EvidenceRequired:           false,
		},
	},
	Unknown: {
		Class:  Unknown,
		Probes: nil,
		Domain: DomainSystem,
		Capability: RouteCapability{
			CanAnswerDeterministically: false,
			EvidenceRequired:           false,
		},
	},
}

// lookupRoute returns the table entry for class, auto-augmenting probes
// with the capability's spine set per spec.md §3.1 R2 ("Before execution
// begins, probes that are missing from a plan must be auto-augmented with
// the spine set").
func lookupRoute(class QueryClass) Route {
	r, ok := routeTable[class]
	if !ok {
		r = routeTable[Unknown]
	}
	r.Probes = unionProbes(r.Probes, r.Capability.SpineProbes)
	return r
}

func unionProbes(planned, spine []probe.ID) []probe.ID {
	seen := make(map[probe.ID]bool, len(planned))
	out := make([]probe.ID, 0, len(planned)+len(spine))
	for _, p := range planned {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range spine {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
