package system

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits raises the open file limit to want for the HTTP server.
func InitResourceLimits(want uint64) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}
	if rLimit.Cur >= want {
		return
	}

	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

// FindLatestPDF returns the most recently modified PDF in dir.
func FindLatestPDF(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".pdf") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено PDF-файлов", dir)
	}

	return latestFile, nil
}

// ErrLowMemory is returned when a raster would not fit in available memory.
var ErrLowMemory = errors.New("system: not enough available memory")

// Memory is a snapshot of host memory.
type Memory struct {
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

func (m Memory) String() string {
	return fmt.Sprintf("%s свободно из %s (%.1f%% занято)",
		formatBytes(m.AvailableBytes), formatBytes(m.TotalBytes), m.UsedPercent)
}

// ReadMemory reads the current host memory state.
func ReadMemory() (Memory, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return Memory{}, fmt.Errorf("system: read memory: %w", err)
	}
	return Memory{
		TotalBytes:     v.Total,
		AvailableBytes: v.Available,
		UsedPercent:    v.UsedPercent,
	}, nil
}

// RasterBytes is the memory an RGBA raster of pixels takes.
func RasterBytes(pixels int) uint64 {
	return uint64(pixels) * 4
}

// CheckHeadroom reports ErrLowMemory when concurrent rasters of pixels each
// would not fit in available memory.
func (m Memory) CheckHeadroom(pixels, concurrent int) error {
	if concurrent < 1 {
		concurrent = 1
	}
	need := RasterBytes(pixels) * uint64(concurrent)
	if need > m.AvailableBytes {
		return fmt.Errorf("%w: need %s, have %s", ErrLowMemory, formatBytes(need), formatBytes(m.AvailableBytes))
	}
	return nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
