package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"loraigate/config"
)

const AppName = "loraigate"

// Open returns where logs go. With the monitor on, the terminal belongs to
// the dashboard, so logs go to [log] file or nowhere.
func Open(cfg config.LogConfig, monitor bool) (io.Writer, func() error, error) {
	nop := func() error { return nil }
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nop, fmt.Errorf("open log file: %w", err)
		}
		return f, f.Close, nil
	}
	if monitor {
		return io.Discard, nop, nil
	}
	return os.Stdout, nop, nil
}

// New builds the application logger writing to w. Records also go to every
// extra handler that accepts their level, such as the syslog reporter.
func New(w io.Writer, cfg config.Config, version string, extra ...slog.Handler) *slog.Logger {
	level, err := config.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	with := func(h slog.Handler, attrs ...any) *slog.Logger {
		if len(extra) > 0 {
			h = append(fanout{h}, extra...)
		}
		return slog.New(h).With(attrs...)
	}

	if cfg.Log.Format == "json" {
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: noticeLevel,
		})
		return with(h,
			"app", AppName,
			"version", version,
			"call", cfg.Station.Callsign,
		)
	}

	// colours only make sense on the console
	h := tint.NewHandler(w, &tint.Options{
		Level:       level,
		TimeFormat:  time.DateTime,
		NoColor:     w != os.Stdout,
		ReplaceAttr: noticeLevel,
	})
	return with(h, "app", AppName, "call", cfg.Station.Callsign)
}

func noticeLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok && l == LevelNotice {
			return slog.String(slog.LevelKey, "NOTICE")
		}
	}
	return a
}
