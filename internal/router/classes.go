// Package router classifies a raw user query into a closed QueryClass and
// derives the deterministic Route (required probes, domain, capability)
// for it, per spec.md §3.1 and §4.1. Classify is pure and side-effect free.
package router

// QueryClass is a closed, exhaustive tag for the kinds of question the
// engine understands. Adding a class requires a code change (spec.md §3.1).
type QueryClass string

const (
	CPUInfo             QueryClass = "cpu_info"
	CPUCores            QueryClass = "cpu_cores"
	RAMInfo             QueryClass = "ram_info"
	MemoryUsage         QueryClass = "memory_usage"
	DiskSpace           QueryClass = "disk_space"
	DiskUsage           QueryClass = "disk_usage"
	NetworkInterfaces   QueryClass = "network_interfaces"
	TopMemoryProcesses  QueryClass = "top_memory_processes"
	TopCPUProcesses     QueryClass = "top_cpu_processes"
	ServiceStatus       QueryClass = "service_status"
	SystemSlow          QueryClass = "system_slow"
	SystemHealthSummary QueryClass = "system_health_summary"
	Help                QueryClass = "help"
	Unknown             QueryClass = "unknown"
)

// SpecialistDomain is the coarse routing target for a query.
type SpecialistDomain string

const (
	DomainSystem   SpecialistDomain = "system"
	DomainNetwork  SpecialistDomain = "network"
	DomainStorage  SpecialistDomain = "storage"
	DomainSecurity SpecialistDomain = "security"
	DomainPackages SpecialistDomain = "packages"
)
