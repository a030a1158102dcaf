// Package diag provides the host/process/memory information backing the
// `ladderd status` CLI command and the supervisor's process-liveness
// cross-check. Trimmed down from a much larger host/disk/network/battery
// surface built on gopsutil/v3: nothing in this system names a use for
// disk, network, battery, port, or temperature info, so only the
// host/process/memory calls survive (see DESIGN.md).
package diag

import (
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostInfo is the subset of host facts the status command reports.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	KernelVersion string `json:"kernel_version"`
	Architecture  string `json:"architecture"`
	CPUCount      int    `json:"cpu_count"`
	Uptime        uint64 `json:"uptime_seconds"`
	BootTime      uint64 `json:"boot_time_unix"`
}

// MemoryInfo is system-wide virtual memory usage.
type MemoryInfo struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// ProcessInfo is the subset of a single process's facts the supervisor's
// liveness cross-check and the status command need.
type ProcessInfo struct {
	PID        int32     `json:"pid"`
	Running    bool      `json:"running"`
	CreateTime time.Time `json:"create_time"`
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
}

// GetHostInfo returns host facts for the status command.
func GetHostInfo() (HostInfo, error) {
	hInfo, err := host.Info()
	if err != nil {
		return HostInfo{}, fmt.Errorf("diag: host info: %w", err)
	}
	return HostInfo{
		Hostname:      hInfo.Hostname,
		OS:            hInfo.OS,
		Platform:      hInfo.Platform,
		KernelVersion: hInfo.KernelVersion,
		Architecture:  runtime.GOARCH,
		CPUCount:      runtime.NumCPU(),
		Uptime:        hInfo.Uptime,
		BootTime:      hInfo.BootTime,
	}, nil
}

// GetMemoryInfo returns system-wide memory usage.
func GetMemoryInfo() (MemoryInfo, error) {
	vMem, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("diag: memory info: %w", err)
	}
	return MemoryInfo{
		TotalBytes:     vMem.Total,
		UsedBytes:      vMem.Used,
		AvailableBytes: vMem.Available,
		UsedPercent:    vMem.UsedPercent,
	}, nil
}

// GetProcessInfo returns facts about pid, for the status command and the
// supervisor's liveness cross-check.
func GetProcessInfo(pid int32) (ProcessInfo, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return ProcessInfo{PID: pid, Running: false}, nil
	}

	running, _ := p.IsRunning()
	createMs, _ := p.CreateTime()
	info := ProcessInfo{
		PID:        pid,
		Running:    running,
		CreateTime: time.UnixMilli(createMs),
	}
	if memInfo, err := p.MemoryInfo(); err == nil && memInfo != nil {
		info.RSSBytes = memInfo.RSS
	}
	if cpuPct, err := p.CPUPercent(); err == nil {
		info.CPUPercent = cpuPct
	}
	return info, nil
}

// IsSameProcess reports whether pid is running and its recorded start time
// matches expectedStart within tolerance. Comparing start time in addition
// to liveness is what catches PID recycling (spec-extension §4.10): a
// crashed worker's PID can be reused by an unrelated process by the time
// the next poll runs.
func IsSameProcess(pid int32, expectedStart time.Time, tolerance time.Duration) bool {
	info, err := GetProcessInfo(pid)
	if err != nil || !info.Running {
		return false
	}
	delta := info.CreateTime.Sub(expectedStart)
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}
