//go:build !linux

package watchdog

import (
	"fmt"
	"time"
)

func OpenDevice(path string, timeout time.Duration) (Device, error) {
	return nil, fmt.Errorf("watchdog: hardware device unsupported on this platform")
}
