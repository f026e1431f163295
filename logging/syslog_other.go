//go:build windows || plan9

package logging

import (
	"errors"
	"runtime"

	"loraigate/config"
)

func dialSyslog(config.SyslogConfig) (SyslogWriter, error) {
	return nil, errors.New("remote syslog is not supported on " + runtime.GOOS)
}
