//go:build !windows && !plan9

package logging

import (
	"log/syslog"

	"loraigate/config"
)

func dialSyslog(cfg config.SyslogConfig) (SyslogWriter, error) {
	return syslog.Dial("udp", cfg.Addr(), syslog.LOG_NOTICE|syslog.LOG_DAEMON, cfg.Tag)
}
