// Package sysinfo reads the live telemetry reported in status beacons.
package sysinfo

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	cpuTempPath = "/sys/class/thermal/thermal_zone0/temp"
	cpuFreqPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq"
)

// Telemetry is one reading. A field is only meaningful when its Has flag is
// set; not every board exposes both.
type Telemetry struct {
	TempC   float64
	HasTemp bool

	FreqMHz float64
	HasFreq bool
}

func parseCPUTempC(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("cpu temp empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse cpu temp %q: %w", s, err)
	}
	// usually milli-degrees, some kernels report whole degrees
	if n > 1000 {
		return float64(n) / 1000.0, nil
	}
	return float64(n), nil
}

// parseFreqMHz parses a cpufreq value in kHz.
func parseFreqMHz(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("cpu freq empty")
	}
	khz, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cpu freq %q: %w", s, err)
	}
	return float64(khz) / 1000.0, nil
}

func readFromPaths(tempPath, freqPath string) Telemetry {
	var t Telemetry
	if b, err := os.ReadFile(tempPath); err == nil {
		if v, err := parseCPUTempC(string(b)); err == nil {
			t.TempC, t.HasTemp = v, true
		}
	}
	if b, err := os.ReadFile(freqPath); err == nil {
		if v, err := parseFreqMHz(string(b)); err == nil {
			t.FreqMHz, t.HasFreq = v, true
		}
	}
	return t
}

// Read returns the current CPU temperature and clock frequency.
func Read() Telemetry {
	return readFromPaths(cpuTempPath, cpuFreqPath)
}

// Summary renders the telemetry as "t:52.3C f:1500Mhz", leaving out
// unavailable fields.
func (t Telemetry) Summary() string {
	var parts []string
	if t.HasTemp {
		parts = append(parts, fmt.Sprintf("t:%.1fC", t.TempC))
	}
	if t.HasFreq {
		parts = append(parts, fmt.Sprintf("f:%.0fMhz", t.FreqMHz))
	}
	return strings.Join(parts, " ")
}
