//go:build !unix

package watchdog

import (
	"log/slog"
	"os"
)

// ProcessResetter exits the process; the service manager restarts it.
type ProcessResetter struct{}

func (ProcessResetter) Reset(reason string) {
	slog.Error("exiting for reset", "reason", reason)
	os.Exit(1)
}
