package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"loraigate/config"
)

type fakeSyslog struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (f *fakeSyslog) write(sev, m string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sev+" "+m)
	return f.err
}

func (f *fakeSyslog) Err(m string) error     { return f.write("err", m) }
func (f *fakeSyslog) Warning(m string) error { return f.write("warning", m) }
func (f *fakeSyslog) Notice(m string) error  { return f.write("notice", m) }
func (f *fakeSyslog) Info(m string) error    { return f.write("info", m) }
func (f *fakeSyslog) Debug(m string) error   { return f.write("debug", m) }
func (f *fakeSyslog) Close() error           { return nil }

func (f *fakeSyslog) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

func TestSyslogHandler_Severity(t *testing.T) {
	w := &fakeSyslog{}
	logger := slog.New(NewSyslogHandler(w, slog.LevelDebug))

	logger.Debug("polling")
	logger.Info("received", "packet", "N0CALL>APRS:>hi")
	logger.Log(context.Background(), LevelNotice, "Alive and kicking")
	logger.Warn("uplink lost")
	logger.Error("configuration error, gateway halted", "err", config.ErrMissingCallsign)

	want := []string{
		"debug polling",
		"info received packet=N0CALL>APRS:>hi",
		"notice Alive and kicking",
		"warning uplink lost",
		`err configuration error, gateway halted err="missing APRS-IS credentials: callsign is empty"`,
	}
	got := w.sent()
	if len(got) != len(want) {
		t.Fatalf("sent %q\nwant %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("msg[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

func TestSyslogHandler_LevelAndAttrs(t *testing.T) {
	w := &fakeSyslog{}
	logger := slog.New(NewSyslogHandler(w, LevelNotice)).With("call", "TEST-1").WithGroup("uplink")

	logger.Info("connected")
	logger.Error("send failed", "attempt", 2)

	got := w.sent()
	if len(got) != 1 {
		t.Fatalf("sent %q want only the error", got)
	}
	if got[0] != "err send failed call=TEST-1 uplink.attempt=2" {
		t.Fatalf("msg=%q", got[0])
	}
}

func TestSyslogHandler_WriteError(t *testing.T) {
	w := &fakeSyslog{err: errors.New("network unreachable")}
	h := NewSyslogHandler(w, slog.LevelInfo)
	logger := slog.New(h)
	logger.Error("boom")
	if len(w.sent()) != 1 {
		t.Fatalf("record not sent")
	}
}

func TestSyslogHandler_Concurrent(t *testing.T) {
	w := &fakeSyslog{}
	logger := slog.New(NewSyslogHandler(w, slog.LevelInfo))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.With("task", i).Info("tick", "n", i)
		}()
	}
	wg.Wait()

	got := w.sent()
	if len(got) != 20 {
		t.Fatalf("sent %d want 20", len(got))
	}
	for _, m := range got {
		if strings.Count(m, "tick") != 1 {
			t.Fatalf("interleaved message %q", m)
		}
	}
}

func TestNew_FansOutToSyslog(t *testing.T) {
	var buf bytes.Buffer
	w := &fakeSyslog{}
	cfg := config.Config{
		Station: config.StationConfig{Callsign: "TEST-1"},
		Log:     config.LogConfig{Level: "info", Format: "json"},
	}
	logger := New(&buf, cfg, "1.0", NewSyslogHandler(w, LevelNotice))

	logger.Info("received")
	logger.Log(context.Background(), LevelNotice, "Alive and kicking")

	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("console got %d records want 2: %s", n, buf.String())
	}
	if !strings.Contains(buf.String(), `"level":"NOTICE"`) {
		t.Fatalf("notice level not named: %s", buf.String())
	}
	got := w.sent()
	want := fmt.Sprintf("notice Alive and kicking app=%s version=1.0 call=TEST-1", AppName)
	if len(got) != 1 || got[0] != want {
		t.Fatalf("syslog got %q want [%q]", got, want)
	}
}

func TestOpenSyslog_Disabled(t *testing.T) {
	h, closeFn, err := OpenSyslog(config.SyslogConfig{Port: 514, Level: "notice"})
	if err != nil || h != nil {
		t.Fatalf("h=%v err=%v want nil handler", h, err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, _, err := OpenSyslog(config.SyslogConfig{Host: "loghost", Port: 514, Level: "loud"}); err == nil {
		t.Fatalf("expected error for bad level")
	}
}
