package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"loraigate/aprs"
	"loraigate/config"
	"loraigate/device/aprsis"
	"loraigate/device/kiss"
	"loraigate/device/led"
	"loraigate/gateway"
	"loraigate/logging"
	"loraigate/mqtt"
	"loraigate/watchdog"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the TOML configuration")
	withMonitor := flag.Bool("monitor", false, "show the terminal dashboard")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", *configPath, err)
	}

	out, closeLog, err := logging.Open(conf.Log, *withMonitor)
	if err != nil {
		log.Fatalf("Failed to open log: %v", err)
	}
	var extra []slog.Handler
	remote, closeSyslog, syslogErr := logging.OpenSyslog(conf.Syslog)
	if remote != nil {
		extra = append(extra, remote)
	}
	logger := logging.New(out, conf, aprsis.SoftwareRelease, extra...)
	slog.SetDefault(logger)
	if syslogErr != nil {
		logger.Warn("remote syslog unavailable", "err", syslogErr)
	}

	err = run(conf, *withMonitor, logger)
	_ = closeSyslog()
	_ = closeLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", logging.AppName, err)
		os.Exit(1)
	}
}

func run(conf config.Config, withMonitor bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log(ctx, logging.LevelNotice, "Alive and kicking",
		"software", aprsis.SoftwareName,
		"release", aprsis.SoftwareRelease,
		"server", conf.Server.Addr(),
	)

	// credential problems are left to the gateway, which halts on them
	confErr := conf.Validate()
	if confErr != nil && !errors.Is(confErr, config.ErrCredentials) {
		return confErr
	}
	if confErr == nil {
		if ok, err := aprs.CheckPasscode(conf.Station.Callsign, conf.Station.Passcode); err != nil {
			logger.Warn("cannot check passcode", "err", err)
		} else if !ok {
			logger.Warn("passcode does not match callsign, APRS-IS will treat the login as unverified")
		}
	}

	wdOpts := watchdog.Options{
		Timeout:   conf.WatchdogTimeout(),
		MaxUptime: conf.MaxUptime(),
		Logger:    logger.With("component", "watchdog"),
	}
	if conf.Watchdog.Device != "" {
		dev, err := watchdog.OpenDevice(conf.Watchdog.Device, conf.WatchdogTimeout())
		if err != nil {
			return fmt.Errorf("open watchdog: %w", err)
		}
		wdOpts.Device = dev
	}
	wd := watchdog.New(wdOpts)
	defer wd.Close()

	indicator, err := led.Open(conf.LED.GPIO)
	if err != nil {
		logger.Warn("status LED unavailable", "gpio", conf.LED.GPIO, "err", err)
		indicator = led.Nop{}
	}
	defer indicator.Close()

	hub := gateway.NewHub()

	if conf.MQTT.Broker != "" {
		mirror := mqtt.New(conf.MQTT, conf.Station.Callsign, logger.With("component", "mqtt"))
		hub.Add(mirror)
		wd.BeforeReset(func(string) { mirror.Flush(2 * time.Second) })
		go func() {
			if err := mirror.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("mqtt mirror stopped", "err", err)
			}
		}()
		defer mirror.Close()
	}

	session := aprsis.New(aprsis.Options{
		Addr:     conf.Server.Addr(),
		Callsign: conf.Station.Callsign,
		Passcode: conf.Station.Passcode,
		Feed:     wd.Feed,
		OnReconnect: func(cause error) {
			hub.Observe(gateway.Event{Kind: gateway.EventReconnect, Err: cause})
		},
		Logger: logger.With("component", "aprsis"),
	})

	var radio gateway.Radio
	if confErr == nil {
		client, err := kiss.Connect(conf.Radio)
		if err != nil {
			return fmt.Errorf("open radio: %w", err)
		}
		defer client.Close()
		radio = client
	}

	gw := gateway.New(gateway.Options{
		Config:   conf,
		Software: aprsis.SoftwareName,
		Release:  aprsis.SoftwareRelease,
		Session:  session,
		Radio:    radio,
		Watchdog: wd,
		LED:      indicator,
		Events:   hub,
		Logger:   logger,
	})

	if !withMonitor {
		return exitError(gw.Run(ctx))
	}
	return runMonitor(ctx, stop, conf, gw, wd, hub, logger)
}

// runMonitor runs the gateway under the dashboard. Quitting the dashboard
// stops the gateway and the other way round.
func runMonitor(ctx context.Context, stop context.CancelFunc, conf config.Config, gw *gateway.Gateway, wd *watchdog.Supervisor, hub *gateway.Hub, logger *slog.Logger) error {
	feed := gateway.NewChanObserver(256)
	hub.Add(feed)

	mon, err := newMonitor(conf, feed.C())
	if err != nil {
		logger.Warn("map outline unavailable", "shapefile", conf.Monitor.Shapefile, "err", err)
	}
	p := tea.NewProgram(mon, tea.WithAltScreen())
	releaseTerminalOnReset(wd, p.ReleaseTerminal, logger)

	done := make(chan error, 1)
	go func() {
		err := gw.Run(ctx)
		p.Send(gatewayDoneMsg{})
		done <- err
	}()

	if _, err := p.Run(); err != nil {
		logger.Error("monitor failed", "err", err)
	}
	stop()
	return exitError(<-done)
}

// releaseTerminalOnReset restores the terminal before a reset replaces the
// process.
func releaseTerminalOnReset(wd interface{ BeforeReset(func(string)) }, release func() error, logger *slog.Logger) {
	wd.BeforeReset(func(string) {
		if err := release(); err != nil {
			logger.Warn("cannot restore terminal", "err", err)
		}
	})
}

func exitError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
