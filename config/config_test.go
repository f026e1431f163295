package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `
[station]
callsign = "on0abc-10"
passcode = "12345"
latitude = 52.1517227
longitude = 3.7649157
altitude = 46
`)

	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if got.Station.Callsign != "ON0ABC-10" {
		t.Errorf("Callsign = %q, want %q", got.Station.Callsign, "ON0ABC-10")
	}
	if got.Station.Symbol != "R&" {
		t.Errorf("Symbol = %q, want %q", got.Station.Symbol, "R&")
	}
	if got.Server.Addr() != "belgium.aprs2.net:14580" {
		t.Errorf("Server.Addr() = %q", got.Server.Addr())
	}
	if got.BeaconInterval() != 900*time.Second {
		t.Errorf("BeaconInterval() = %v, want 900s", got.BeaconInterval())
	}
	if got.ReceiveTimeout() != 900*time.Second {
		t.Errorf("ReceiveTimeout() = %v, want 900s", got.ReceiveTimeout())
	}
	if got.WatchdogTimeout() != 5*time.Second {
		t.Errorf("WatchdogTimeout() = %v, want 5s", got.WatchdogTimeout())
	}
	if got.MaxUptime() != 604800*time.Second {
		t.Errorf("MaxUptime() = %v, want 604800s", got.MaxUptime())
	}
	if got.Radio.Type != "serial" || got.Radio.Baud != 9600 {
		t.Errorf("Radio = %+v, want serial at 9600", got.Radio)
	}
	if got.Syslog.Host != "" || got.Syslog.Addr() != ":514" || got.Syslog.Level != "notice" || got.Syslog.Tag != "APRSiGate" {
		t.Errorf("Syslog = %+v, want disabled with port 514 at notice", got.Syslog)
	}
	if got.MQTT.Topic != "igate/ON0ABC-10" {
		t.Errorf("MQTT.Topic = %q", got.MQTT.Topic)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestLoad_GridSquareFillsPosition(t *testing.T) {
	p := writeConfig(t, `
[station]
callsign = "N0CALL"
passcode = "13023"
gridsquare = "JO21"
`)

	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Station.Latitude != 51.5 || got.Station.Longitude != 5 {
		t.Errorf("position = %v,%v want 51.5,5", got.Station.Latitude, got.Station.Longitude)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatalf("Load() error = nil, want non-nil")
	}
}

func TestLoad_BadTOML(t *testing.T) {
	p := writeConfig(t, "[station\ncallsign=")
	if _, err := Load(p); err == nil {
		t.Fatalf("Load() error = nil, want non-nil")
	}
}

func TestValidate_Credentials(t *testing.T) {
	tests := []struct {
		name     string
		callsign string
		passcode string
		want     error
	}{
		{name: "missing callsign", callsign: "", passcode: "1", want: ErrMissingCallsign},
		{name: "missing passcode", callsign: "TEST-1", passcode: "", want: ErrMissingPasscode},
		{name: "both present", callsign: "TEST-1", passcode: "99999", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{}
			c.Station.Callsign = tt.callsign
			c.Station.Passcode = tt.passcode
			if err := c.applyDefaults(); err != nil {
				t.Fatalf("applyDefaults: %v", err)
			}

			err := c.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrCredentials) {
				t.Fatalf("Validate() error = %v, want wrapping ErrCredentials", err)
			}
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "symbol too long", mutate: func(c *Config) { c.Station.Symbol = "R&X" }},
		{name: "latitude", mutate: func(c *Config) { c.Station.Latitude = 91 }},
		{name: "longitude", mutate: func(c *Config) { c.Station.Longitude = -181 }},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 70000 }},
		{name: "radio type", mutate: func(c *Config) { c.Radio.Type = "spi" }},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
		{name: "watchdog timeout", mutate: func(c *Config) { c.Watchdog.Timeout = -5 }},
		{name: "syslog port", mutate: func(c *Config) { c.Syslog.Host = "loghost"; c.Syslog.Port = 0 }},
		{name: "syslog level", mutate: func(c *Config) { c.Syslog.Host = "loghost"; c.Syslog.Level = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{}
			c.Station.Callsign = "TEST-1"
			c.Station.Passcode = "99999"
			if err := c.applyDefaults(); err != nil {
				t.Fatalf("applyDefaults: %v", err)
			}
			tt.mutate(&c)

			err := c.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want non-nil")
			}
			if errors.Is(err, ErrCredentials) {
				t.Fatalf("Validate() error = %v, must not be a credential error", err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"notice", LevelNotice},
		{" warning ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLogLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoad_WatchdogTimeoutTunable(t *testing.T) {
	p := writeConfig(t, `
[station]
callsign = "TEST-1"
passcode = "99999"

[watchdog]
timeout = 16
`)
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.WatchdogTimeout() != 16*time.Second {
		t.Errorf("WatchdogTimeout() = %v, want 16s", got.WatchdogTimeout())
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestLoad_Syslog(t *testing.T) {
	p := writeConfig(t, `
[station]
callsign = "TEST-1"
passcode = "99999"

[syslog]
host = "192.168.1.10"
port = 5514
level = "warn"
`)
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Syslog.Addr() != "192.168.1.10:5514" || got.Syslog.Level != "warn" || got.Syslog.Tag != "APRSiGate" {
		t.Errorf("Syslog = %+v", got.Syslog)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}
