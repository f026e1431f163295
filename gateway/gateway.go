// Package gateway runs the iGate engine: radio intake, per-packet forwarding
// and beaconing over one shared APRS-IS session, under the watchdog.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"loraigate/config"
	"loraigate/device/led"
	"loraigate/device/sysinfo"
	"loraigate/watchdog"
)

// ErrReset is returned by Run after a fatal error triggered the full reset.
var ErrReset = errors.New("gateway reset")

// Session is the APRS-IS uplink.
type Session interface {
	Sender
	Connect(ctx context.Context) error
	Close()
}

// Supervisor is the watchdog as seen by the engine.
type Supervisor interface {
	watchdog.Feeder
	Run(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
	Reset(reason string)
	DisableUptimeLimit()
}

type Options struct {
	Config   config.Config
	Software string
	Release  string

	Session  Session
	Radio    Radio
	Watchdog Supervisor
	LED      led.Indicator // optional

	Telemetry func() sysinfo.Telemetry // optional
	Jitter    func() time.Duration     // optional
	Events    Observer                 // optional
	Logger    *slog.Logger
}

type Gateway struct {
	conf    config.Config
	session Session
	wd      Supervisor
	led     led.Indicator
	events  Observer
	logger  *slog.Logger

	source   *Source
	beaconer *Beaconer

	forwards  sync.WaitGroup
	fatalOnce sync.Once
	runCtx    context.Context
	stop      context.CancelCauseFunc
}

func New(opts Options) *Gateway {
	if opts.LED == nil {
		opts.LED = led.Nop{}
	}
	if opts.Events == nil {
		opts.Events = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	g := &Gateway{
		conf:    opts.Config,
		session: opts.Session,
		wd:      opts.Watchdog,
		led:     opts.LED,
		events:  opts.Events,
		logger:  opts.Logger,
	}
	g.source = NewSource(opts.Radio, SourceOptions{
		Timeout: opts.Config.ReceiveTimeout(),
		Jitter:  opts.Jitter,
		Feed:    opts.Watchdog.Feed,
		OnDrop: func(frame []byte, reason error) {
			g.events.Observe(Event{Kind: EventDropped, Line: fmt.Sprintf("%q", frame), Err: reason})
		},
		Logger: opts.Logger.With("task", "intake"),
	})
	g.beaconer = NewBeaconer(opts.Session, BeaconOptions{
		Station:   opts.Config.Station,
		Software:  opts.Software,
		Release:   opts.Release,
		Interval:  opts.Config.BeaconInterval(),
		Telemetry: opts.Telemetry,
		Sleep:     opts.Watchdog.Sleep,
		Events:    opts.Events,
		Logger:    opts.Logger.With("task", "beacon"),
	})
	return g
}

// Run starts the engine and blocks until ctx ends or a fatal error has
// triggered the reset. With missing credentials it halts, feeding the
// watchdog, and returns the configuration error once ctx ends.
func (g *Gateway) Run(ctx context.Context) error {
	runCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	g.runCtx, g.stop = runCtx, stop

	confErr := g.conf.Validate()
	if confErr != nil && !errors.Is(confErr, config.ErrCredentials) {
		return confErr
	}
	if confErr != nil {
		// a scheduled restart would come back to the same halt
		g.wd.DisableUptimeLimit()
	}

	grp, gctx := errgroup.WithContext(runCtx)
	grp.Go(func() error { return g.wd.Run(gctx) })

	if confErr != nil {
		g.halt(gctx, confErr)
		_ = grp.Wait()
		return confErr
	}

	g.logger.Info("connecting to APRS-IS", "addr", g.conf.Server.Addr())
	if err := g.session.Connect(gctx); err != nil {
		g.fatal("connect", err)
		_ = grp.Wait()
		return g.result(nil)
	}
	g.events.Observe(Event{Kind: EventConnected, Line: g.conf.Server.Addr()})

	grp.Go(func() error { return g.intake(gctx) })
	grp.Go(func() error {
		if err := g.beaconer.Run(gctx); err != nil && gctx.Err() == nil {
			g.fatal("beacon", err)
			return err
		}
		return gctx.Err()
	})

	err := grp.Wait()
	g.forwards.Wait()
	g.session.Close()
	return g.result(err)
}

func (g *Gateway) result(err error) error {
	if cause := context.Cause(g.runCtx); errors.Is(cause, ErrReset) {
		return cause
	}
	return err
}

// halt parks the engine after a configuration error. The watchdog stays fed
// so the device does not reboot into the same error.
func (g *Gateway) halt(ctx context.Context, cause error) {
	g.logger.Error("configuration error, gateway halted", "err", cause)
	g.events.Observe(Event{Kind: EventConfigError, Err: cause})
	for {
		if err := g.wd.Sleep(ctx, time.Second); err != nil {
			return
		}
	}
}

func (g *Gateway) intake(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.wd.Feed()

		payload, ok, err := g.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.fatal("radio", err)
			return err
		}
		if !ok {
			continue
		}

		g.logger.Info("received", "packet", payload)
		g.events.Observe(Event{Kind: EventRX, Line: payload})
		g.forward(payload)
	}
}

// forward delivers payload on its own goroutine. Forwards are not cancelled
// by shutdown; Run waits for them.
func (g *Gateway) forward(payload string) {
	ctx := context.WithoutCancel(g.runCtx)
	g.led.Set(led.Receiving)
	g.forwards.Add(1)
	go func() {
		defer g.forwards.Done()
		defer g.led.Set(led.Idle)

		g.wd.Feed()
		if err := g.session.Send(ctx, payload); err != nil {
			g.fatal("forward", err)
			return
		}
		g.events.Observe(Event{Kind: EventForwarded, Line: payload})
	}()
}

// fatal triggers the reset and stops the engine; only the first call counts.
// Errors seen while shutting down are only logged.
func (g *Gateway) fatal(op string, err error) {
	if g.runCtx.Err() != nil {
		g.logger.Warn("error during shutdown", "op", op, "err", err)
		return
	}
	g.fatalOnce.Do(func() {
		ferr := fmt.Errorf("%w: %s: %w", ErrReset, op, err)
		g.logger.Error("fatal error", "op", op, "err", err)
		g.events.Observe(Event{Kind: EventFatal, Err: ferr})
		g.wd.Reset(ferr.Error())
		g.stop(ferr)
	})
}
