package probe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMemInfo(t *testing.T) {
	stdout := "MemTotal:       32879200 kB\nMemFree:         1000000 kB\nMemAvailable:   16000000 kB\n"
	got := parseMemInfo(stdout)
	require.Equal(t, KindMemory, got.Kind)
	require.Equal(t, uint64(32879200), got.Memory.TotalKB)
	require.Equal(t, uint64(16000000), got.Memory.AvailableKB)
	require.Equal(t, got.Memory.TotalKB-got.Memory.AvailableKB, got.Memory.UsedKB)
}

func TestParseMemInfo_MissingTotal(t *testing.T) {
	got := parseMemInfo("Nonsense: 1 kB\n")
	require.Equal(t, KindError, got.Kind)
}

func TestParseFree(t *testing.T) {
	stdout := "              total        used        free      shared  buff/cache   available\n" +
		"Mem:     34388992000  9000000000  1000000000   200000000 24388992000 25000000000\n"
	got := parseFree(stdout)
	require.Equal(t, KindMemory, got.Kind)
	require.Equal(t, uint64(34388992000/1024), got.Memory.TotalKB)
}

func TestParseCPUInfo(t *testing.T) {
	stdout := "Model name:          AMD Ryzen 9\nSocket(s):           1\nCore(s) per socket:  8\nCPU(s):              16\nCPU max MHz:         4500.0000\nFlags:               fpu vme de pse\n"
	got := parseCPUInfo(stdout)
	require.Equal(t, KindCPU, got.Kind)
	require.Equal(t, "AMD Ryzen 9", got.CPU.Model)
	require.Equal(t, 8, got.CPU.Cores)
	require.Equal(t, 16, got.CPU.Threads)
	require.Contains(t, got.CPU.Flags, "fpu")
}

func TestParseDF(t *testing.T) {
	stdout := "Filesystem      1B-blocks        Used    Available Use% Mounted on\n" +
		"/dev/sda1    500000000000 100000000000 400000000000  20% /\n"
	got := parseDF(stdout)
	require.Equal(t, KindDisks, got.Kind)
	require.Len(t, got.Disks, 1)
	require.Equal(t, "/", got.Disks[0].Mountpoint)
}

func TestParseLsblk(t *testing.T) {
	stdout := `{"blockdevices": [{"name":"sda","size":"500000000000","type":"disk","mountpoints":[null],
	  "children":[{"name":"sda1","size":"500000000000","type":"part","mountpoints":["/"]}]}]}`
	got := parseLsblk(stdout)
	require.Equal(t, KindBlockDevices, got.Kind)
	require.Len(t, got.BlockDevices, 2)
	require.Equal(t, "sda1", got.BlockDevices[1].Name)
	require.Equal(t, []string{"/"}, got.BlockDevices[1].Mountpoints)
}

func TestParseSystemctl_NoFailures(t *testing.T) {
	stdout := "0 loaded units listed.\n"
	got := parseSystemctl(stdout)
	require.Equal(t, KindServices, got.Kind)
	require.Empty(t, got.FailedUnits)
}

func TestParseSystemctl_WithFailures(t *testing.T) {
	stdout := "UNIT             LOAD   ACTIVE SUB    DESCRIPTION\n" +
		"● nginx.service  loaded failed failed A web server\n" +
		"\n1 loaded units listed.\n"
	got := parseSystemctl(stdout)
	require.Equal(t, KindServices, got.Kind)
	require.Equal(t, []string{"nginx.service"}, got.FailedUnits)
}

func TestParseProcessList(t *testing.T) {
	stdout := "USER PID %CPU %MEM VSZ RSS TTY STAT START TIME COMMAND\n" +
		"root 1234 12.5 3.1 100 200 ?  S 00:00 0:01 /usr/bin/nginx -g daemon off;\n"
	got := parseProcessList(stdout)
	require.Equal(t, KindProcesses, got.Kind)
	require.Len(t, got.Processes, 1)
	require.Equal(t, 1234, got.Processes[0].PID)
	require.Contains(t, got.Processes[0].Command, "nginx")
}

func TestTruncateLines(t *testing.T) {
	s := "l1\nl2\nl3\n"
	out, truncated := truncateLines(s, 2)
	require.True(t, truncated)
	require.Contains(t, out, "… (truncated)")

	out2, truncated2 := truncateLines("short", 50)
	require.False(t, truncated2)
	require.Equal(t, "short", out2)
}
