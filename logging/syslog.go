package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"loraigate/config"
)

// LevelNotice is reported to syslog as NOTICE.
const LevelNotice = config.LevelNotice

// SyslogWriter is the part of *syslog.Writer the reporter sends through.
type SyslogWriter interface {
	Err(m string) error
	Warning(m string) error
	Notice(m string) error
	Info(m string) error
	Debug(m string) error
	Close() error
}

// OpenSyslog dials the remote syslog described by cfg. It returns a nil
// handler when no host is configured.
func OpenSyslog(cfg config.SyslogConfig) (slog.Handler, func() error, error) {
	nop := func() error { return nil }
	if cfg.Host == "" {
		return nil, nop, nil
	}
	level, err := config.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, nop, err
	}
	w, err := dialSyslog(cfg)
	if err != nil {
		return nil, nop, fmt.Errorf("syslog %s: %w", cfg.Addr(), err)
	}
	return NewSyslogHandler(w, level), w.Close, nil
}

// syslogHandler sends one syslog message per record, the message text
// followed by its attributes in key=value form. Writes are synchronous.
type syslogHandler struct {
	w     SyslogWriter
	level slog.Leveler

	// shared by every handler derived through WithAttrs and WithGroup
	mu  *sync.Mutex
	buf *bytes.Buffer

	attrs slog.Handler
}

func NewSyslogHandler(w SyslogWriter, level slog.Leveler) slog.Handler {
	buf := &bytes.Buffer{}
	return &syslogHandler{
		w:     w,
		level: level,
		mu:    &sync.Mutex{},
		buf:   buf,
		attrs: slog.NewTextHandler(buf, &slog.HandlerOptions{
			Level:       slog.LevelDebug,
			ReplaceAttr: dropBuiltins,
		}),
	}
}

// the syslog header already carries time and severity
func dropBuiltins(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey, slog.LevelKey, slog.MessageKey:
		return slog.Attr{}
	}
	return a
}

func (h *syslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *syslogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.attrs.Handle(ctx, r); err != nil {
		return err
	}
	msg := r.Message
	if rest := strings.TrimSpace(h.buf.String()); rest != "" {
		msg += " " + rest
	}

	switch {
	case r.Level >= slog.LevelError:
		return h.w.Err(msg)
	case r.Level >= slog.LevelWarn:
		return h.w.Warning(msg)
	case r.Level >= LevelNotice:
		return h.w.Notice(msg)
	case r.Level >= slog.LevelInfo:
		return h.w.Info(msg)
	default:
		return h.w.Debug(msg)
	}
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = h.attrs.WithAttrs(attrs)
	return &c
}

func (h *syslogHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.attrs = h.attrs.WithGroup(name)
	return &c
}
