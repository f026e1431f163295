package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"loraigate/aprs"
)

// DefaultPath is used when no -config flag is given
const DefaultPath = "config.toml"

// Credential errors put the gateway into its configuration-error halt instead
// of aborting startup.
var (
	ErrCredentials     = errors.New("missing APRS-IS credentials")
	ErrMissingCallsign = fmt.Errorf("%w: callsign is empty", ErrCredentials)
	ErrMissingPasscode = fmt.Errorf("%w: passcode is empty", ErrCredentials)
)

// Config holds all application configuration
type Config struct {
	Station  StationConfig  `toml:"station"`
	Server   ServerConfig   `toml:"server"`
	Beacon   BeaconConfig   `toml:"beacon"`
	Radio    RadioConfig    `toml:"radio"`
	Watchdog WatchdogConfig `toml:"watchdog"`
	LED      LEDConfig      `toml:"led"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Syslog   SyslogConfig   `toml:"syslog"`
	Log      LogConfig      `toml:"log"`
	Monitor  MonitorConfig  `toml:"monitor"`
}

// StationConfig holds settings specific to the user's station
type StationConfig struct {
	Callsign   string  `toml:"callsign"`
	Passcode   string  `toml:"passcode"`
	GridSquare string  `toml:"gridsquare"`
	Latitude   float64 `toml:"latitude"`
	Longitude  float64 `toml:"longitude"`
	Altitude   float64 `toml:"altitude"` // meters
	Symbol     string  `toml:"symbol"`
	Comment    string  `toml:"comment"`
}

// ServerConfig is the APRS-IS uplink.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for dialing.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type BeaconConfig struct {
	Interval int `toml:"interval"` // seconds
}

// RadioConfig describes how the LoRa modem is attached.
type RadioConfig struct {
	Type    string `toml:"type"`   // "serial" or "tcp"
	Device  string `toml:"device"` // /dev/ttyUSB0 or host:port
	Baud    int    `toml:"baud"`
	Timeout int    `toml:"timeout"` // receive timeout base, seconds
}

type WatchdogConfig struct {
	Device    string `toml:"device"`
	Timeout   int    `toml:"timeout"`    // seconds
	MaxUptime int    `toml:"max_uptime"` // seconds
}

type LEDConfig struct {
	GPIO int `toml:"gpio"` // BCM pin, 0 disables the LED
}

// MQTTConfig enables the optional event mirror when Broker is set.
type MQTTConfig struct {
	Broker   string `toml:"broker"`
	Port     int    `toml:"port"`
	ClientID string `toml:"client_id"`
	Topic    string `toml:"topic"`
}

// SyslogConfig enables the remote syslog reporter when Host is set.
type SyslogConfig struct {
	Host  string `toml:"host"`
	Port  int    `toml:"port"`
	Level string `toml:"level"`
	Tag   string `toml:"tag"`
}

func (s SyslogConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type MonitorConfig struct {
	Shapefile string  `toml:"shapefile"`
	Zoom      float64 `toml:"zoom"`
}

// Load reads the configuration from the specified path and fills in defaults.
// Credentials are not checked here; see Validate.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	var conf Config

	data, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}

	if err := toml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := conf.applyDefaults(); err != nil {
		return conf, err
	}
	return conf, nil
}

func (c *Config) applyDefaults() error {
	c.Station.Callsign = strings.ToUpper(strings.TrimSpace(c.Station.Callsign))
	c.Station.Passcode = strings.TrimSpace(c.Station.Passcode)
	if c.Station.Symbol == "" {
		c.Station.Symbol = "R&"
	}
	if c.Station.Comment == "" {
		c.Station.Comment = "https://rf.guru"
	}
	if c.Station.Latitude == 0 && c.Station.Longitude == 0 && c.Station.GridSquare != "" {
		lon, lat, err := aprs.GridSquareToLatLon(c.Station.GridSquare)
		if err != nil {
			return fmt.Errorf("station gridsquare: %w", err)
		}
		c.Station.Latitude = lat
		c.Station.Longitude = lon
	}

	if c.Server.Host == "" {
		c.Server.Host = "belgium.aprs2.net"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 14580
	}
	if c.Beacon.Interval == 0 {
		c.Beacon.Interval = 900
	}

	if c.Radio.Type == "" {
		c.Radio.Type = "serial"
	}
	c.Radio.Type = strings.ToLower(c.Radio.Type)
	if c.Radio.Baud == 0 {
		c.Radio.Baud = 9600
	}
	if c.Radio.Timeout == 0 {
		c.Radio.Timeout = 900
	}

	if c.Watchdog.Timeout == 0 {
		c.Watchdog.Timeout = 5
	}
	if c.Watchdog.MaxUptime == 0 {
		c.Watchdog.MaxUptime = 604800
	}

	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "loraigate"
	}
	if c.MQTT.Topic == "" && c.Station.Callsign != "" {
		c.MQTT.Topic = "igate/" + c.Station.Callsign
	}

	if c.Syslog.Port == 0 {
		c.Syslog.Port = 514
	}
	if c.Syslog.Level == "" {
		c.Syslog.Level = "notice"
	}
	if c.Syslog.Tag == "" {
		c.Syslog.Tag = "APRSiGate"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Monitor.Zoom == 0 {
		c.Monitor.Zoom = 1
	}
	return nil
}

// Validate reports malformed settings. A missing callsign or passcode is
// reported with an error wrapping ErrCredentials, checked last so that other
// problems still abort startup.
func (c Config) Validate() error {
	if len(c.Station.Symbol) != 2 {
		return fmt.Errorf("station symbol must be 2 characters, got %q", c.Station.Symbol)
	}
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return fmt.Errorf("station latitude out of range: %v", c.Station.Latitude)
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return fmt.Errorf("station longitude out of range: %v", c.Station.Longitude)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Beacon.Interval < 0 {
		return fmt.Errorf("beacon interval must be positive, got %d", c.Beacon.Interval)
	}
	if c.Radio.Timeout < 0 {
		return fmt.Errorf("radio timeout must be positive, got %d", c.Radio.Timeout)
	}
	switch c.Radio.Type {
	case "serial", "tcp":
	default:
		return fmt.Errorf("unknown radio type %q (allowed: serial, tcp)", c.Radio.Type)
	}
	if c.Watchdog.Timeout < 0 {
		return fmt.Errorf("watchdog timeout must be positive, got %d", c.Watchdog.Timeout)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Syslog.Host != "" {
		if c.Syslog.Port <= 0 || c.Syslog.Port > 65535 {
			return fmt.Errorf("invalid syslog port %d", c.Syslog.Port)
		}
		if _, err := ParseLogLevel(c.Syslog.Level); err != nil {
			return fmt.Errorf("syslog: %w", err)
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (allowed: text, json)", c.Log.Format)
	}

	if c.Station.Callsign == "" {
		return ErrMissingCallsign
	}
	if c.Station.Passcode == "" {
		return ErrMissingPasscode
	}
	return nil
}

// BeaconInterval is the delay between beacon cycles.
func (c Config) BeaconInterval() time.Duration {
	return time.Duration(c.Beacon.Interval) * time.Second
}

// ReceiveTimeout is the base radio wait before jitter.
func (c Config) ReceiveTimeout() time.Duration {
	return time.Duration(c.Radio.Timeout) * time.Second
}

func (c Config) WatchdogTimeout() time.Duration {
	return time.Duration(c.Watchdog.Timeout) * time.Second
}

func (c Config) MaxUptime() time.Duration {
	return time.Duration(c.Watchdog.MaxUptime) * time.Second
}

// LevelNotice sits between info and warn. It marks lifecycle records such as
// the startup banner.
const LevelNotice = slog.Level(2)

// ParseLogLevel maps a level setting to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (allowed: debug, info, notice, warn, error)", s)
	}
}
