//go:build linux

package watchdog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// linuxDevice drives /dev/watchdog. Opening the device arms it.
type linuxDevice struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenDevice arms the kernel watchdog at path with the given timeout.
func OpenDevice(path string, timeout time.Duration) (Device, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", path, err)
	}

	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.WDIOC_SETTIMEOUT, secs); err != nil {
		f.Close()
		return nil, fmt.Errorf("set watchdog timeout on %s: %w", path, err)
	}
	return &linuxDevice{f: f, path: path}, nil
}

func (d *linuxDevice) Keepalive() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return fmt.Errorf("watchdog %s is closed", d.path)
	}
	return unix.IoctlWatchdogKeepalive(int(d.f.Fd()))
}

// Close does not write the magic 'V', so the timer stays armed.
func (d *linuxDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
