package system

import (
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MemoryStats is a snapshot of process and host memory.
type MemoryStats struct {
	ProcessRSS      uint64
	SystemTotal     uint64
	SystemAvailable uint64
	SystemUsedPct   float64
}

// ReadMemoryStats collects what it can; missing values stay zero.
func ReadMemoryStats() (MemoryStats, error) {
	var s MemoryStats

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return s, err
	}
	if info, err := proc.MemoryInfo(); err == nil {
		s.ProcessRSS = info.RSS
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return s, err
	}
	s.SystemTotal = vm.Total
	s.SystemAvailable = vm.Available
	s.SystemUsedPct = vm.UsedPercent
	return s, nil
}

// MiB converts bytes to mebibytes for reports.
func MiB(b uint64) float64 {
	return float64(b) / (1 << 20)
}
