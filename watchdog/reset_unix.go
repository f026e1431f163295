//go:build unix

package watchdog

import (
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// ProcessResetter restarts the gateway from scratch by re-executing its own
// binary in place. No in-memory state survives. If exec fails the process
// exits so the service manager starts it again.
type ProcessResetter struct{}

func (ProcessResetter) Reset(reason string) {
	exe, err := os.Executable()
	if err == nil {
		err = unix.Exec(exe, os.Args, os.Environ())
	}
	slog.Error("re-exec failed, exiting", "err", err, "reason", reason)
	os.Exit(1)
}
