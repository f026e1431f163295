package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"loraigate/aprs"
	"loraigate/config"
	"loraigate/device/sysinfo"
)

// Sender writes one APRS-IS line. aprsis.Session implements it.
type Sender interface {
	Send(ctx context.Context, line string) error
}

type BeaconOptions struct {
	Station  config.StationConfig
	Software string
	Release  string
	Interval time.Duration

	Telemetry func() sysinfo.Telemetry
	Now       func() time.Time
	// Sleep waits between cycles. It should feed the watchdog while it waits.
	Sleep func(ctx context.Context, d time.Duration) error

	Events Observer
	Logger *slog.Logger
}

// Beaconer periodically announces the gateway's status and position.
type Beaconer struct {
	sender Sender
	opts   BeaconOptions
}

func NewBeaconer(sender Sender, opts BeaconOptions) *Beaconer {
	if opts.Interval <= 0 {
		opts.Interval = 900 * time.Second
	}
	if opts.Telemetry == nil {
		opts.Telemetry = sysinfo.Read
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
	if opts.Events == nil {
		opts.Events = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Beaconer{sender: sender, opts: opts}
}

// StatusLine renders the status beacon from the current telemetry.
func (b *Beaconer) StatusLine(t sysinfo.Telemetry) string {
	text := fmt.Sprintf("Running on %s/%s", runtime.GOOS, runtime.GOARCH)
	if s := t.Summary(); s != "" {
		text += " " + s
	}
	return aprs.StatusLine(b.opts.Station.Callsign, text)
}

// PositionLine renders the timestamped position beacon for now.
func (b *Beaconer) PositionLine(now time.Time) (string, error) {
	st := b.opts.Station
	pos, err := aprs.Position(st.Latitude, st.Longitude, st.Symbol)
	if err != nil {
		return "", err
	}
	ts, err := aprs.Timestamp('z', now)
	if err != nil {
		return "", err
	}
	comment := b.opts.Software + "." + b.opts.Release + " " + st.Comment + aprs.AltitudeTag(st.Altitude)
	return aprs.PositionLine(st.Callsign, ts, pos, comment), nil
}

// Run sends a status and a position beacon, then sleeps one interval, until
// ctx ends or a send fails. The first cycle starts immediately.
func (b *Beaconer) Run(ctx context.Context) error {
	for {
		if err := b.beacon(ctx); err != nil {
			return err
		}
		if err := b.opts.Sleep(ctx, b.opts.Interval); err != nil {
			return err
		}
	}
}

func (b *Beaconer) beacon(ctx context.Context) error {
	status := b.StatusLine(b.opts.Telemetry())
	if err := b.sender.Send(ctx, status); err != nil {
		return fmt.Errorf("status beacon: %w", err)
	}
	b.opts.Logger.Info("status beacon sent", "line", status)
	b.opts.Events.Observe(Event{Kind: EventStatus, Line: status})

	position, err := b.PositionLine(b.opts.Now().UTC())
	if err != nil {
		return fmt.Errorf("position beacon: %w", err)
	}
	if err := b.sender.Send(ctx, position); err != nil {
		return fmt.Errorf("position beacon: %w", err)
	}
	b.opts.Logger.Info("position beacon sent", "line", position)
	b.opts.Events.Observe(Event{Kind: EventPosition, Line: position})
	return nil
}
