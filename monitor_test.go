package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"loraigate/config"
	"loraigate/gateway"
	"loraigate/ui/header"
	"loraigate/watchdog"
)

func testMonitor(t *testing.T) monitor {
	t.Helper()
	conf := config.Config{
		Station: config.StationConfig{Callsign: "TEST-1", Latitude: 50, Longitude: 4},
		Server:  config.ServerConfig{Host: "aprs.example", Port: 14580},
		Monitor: config.MonitorConfig{Zoom: 1},
	}
	m, err := newMonitor(conf, make(chan gateway.Event))
	if err != nil {
		t.Fatalf("newMonitor: %v", err)
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(monitor)
}

func send(m monitor, evs ...gateway.Event) monitor {
	for _, ev := range evs {
		if ev.Time.IsZero() {
			ev.Time = time.Date(2026, 10, 15, 9, 5, 0, 0, time.UTC)
		}
		next, _ := m.Update(ev)
		m = next.(monitor)
	}
	return m
}

func TestMonitor_AppliesEvents(t *testing.T) {
	m := testMonitor(t)
	m = send(m,
		gateway.Event{Kind: gateway.EventConnected, Line: "aprs.example:14580"},
		gateway.Event{Kind: gateway.EventRX, Line: "ON4ABC-7>APLRT1,WIDE1-1:!5030.00N/00400.00E>LoRa"},
		gateway.Event{Kind: gateway.EventForwarded, Line: "ON4ABC-7>APLRT1,WIDE1-1:!5030.00N/00400.00E>LoRa"},
		gateway.Event{Kind: gateway.EventRX, Line: "PD1XYZ>APRS:>on the air"},
		gateway.Event{Kind: gateway.EventRX, Line: "not a packet"},
		gateway.Event{Kind: gateway.EventDropped, Line: `"garbage"`},
		gateway.Event{Kind: gateway.EventStatus, Line: "TEST-1>APRFGI,TCPIP*:>Running"},
		gateway.Event{Kind: gateway.EventPosition, Line: "TEST-1>APRFGI,TCPIP*:@150905z..."},
		gateway.Event{Kind: gateway.EventReconnect, Err: errors.New("broken pipe")},
	)

	if m.headerModel.Uplink() != header.Online {
		t.Fatalf("uplink=%v want online", m.headerModel.Uplink())
	}
	c := m.sidebarModel.Counters()
	if c.Received != 3 || c.Forwarded != 1 || c.Dropped != 1 || c.Beacons != 1 {
		t.Fatalf("counters=%+v", c)
	}
	if got := m.sidebarModel.Stations(); len(got) != 2 || got[0] != "PD1XYZ" || got[1] != "ON4ABC-7" {
		t.Fatalf("heard=%q", got)
	}
	st := m.mapModel.Stations()
	if len(st) != 1 || st[0].Callsign != "ON4ABC-7" || st[0].Lat != 50.5 || st[0].Lon != 4 {
		t.Fatalf("map stations=%+v", st)
	}

	lines := m.msgbarModel.Lines()
	if last := lines[len(lines)-1]; !strings.Contains(last, "reconnect") || !strings.Contains(last, "broken pipe") {
		t.Fatalf("last log line=%q", last)
	}
	if view := m.View(); !strings.Contains(view, "TEST-1") || !strings.Contains(view, "PD1XYZ") {
		t.Fatalf("view misses station data:\n%s", view)
	}
}

func TestMonitor_UplinkStates(t *testing.T) {
	m := send(testMonitor(t), gateway.Event{Kind: gateway.EventConfigError, Err: config.ErrMissingPasscode})
	if m.headerModel.Uplink() != header.Halted {
		t.Fatalf("uplink=%v want halted", m.headerModel.Uplink())
	}
	m = send(testMonitor(t), gateway.Event{Kind: gateway.EventFatal, Err: gateway.ErrReset})
	if m.headerModel.Uplink() != header.Resetting {
		t.Fatalf("uplink=%v want resetting", m.headerModel.Uplink())
	}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestMonitor_Quit(t *testing.T) {
	m := testMonitor(t)
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); !isQuit(cmd) {
		t.Fatalf("q did not quit")
	}
	if _, cmd := m.Update(gatewayDoneMsg{}); !isQuit(cmd) {
		t.Fatalf("gateway stop did not quit")
	}
}

func TestExitError(t *testing.T) {
	if exitError(nil) != nil || exitError(fmt.Errorf("intake: %w", context.Canceled)) != nil {
		t.Fatalf("clean shutdown reported as failure")
	}
	if err := exitError(config.ErrMissingCallsign); !errors.Is(err, config.ErrCredentials) {
		t.Fatalf("exitError=%v", err)
	}
}

type orderedResetter struct{ order *[]string }

func (r orderedResetter) Reset(string) { *r.order = append(*r.order, "reset") }

func TestReleaseTerminalOnReset(t *testing.T) {
	var order []string
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wd := watchdog.New(watchdog.Options{Resetter: orderedResetter{&order}, Logger: logger})

	releaseTerminalOnReset(wd, func() error {
		order = append(order, "release")
		return errors.New("not a terminal")
	}, logger)

	if len(order) != 0 {
		t.Fatalf("terminal released before any reset: %q", order)
	}
	wd.Reset("watchdog expired")
	if want := []string{"release", "reset"}; !slices.Equal(order, want) {
		t.Fatalf("order=%q want %q", order, want)
	}
}
