// Package watchdog is the gateway's last line of defence against hangs. Every
// loop feeds the Supervisor at each suspension point; if feeding stops for
// longer than the timeout, or the process has been up longer than the
// maximum uptime, the Supervisor performs a full reset.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultMaxUptime = 604800 * time.Second
)

// ErrExpired is returned by Run after it has reset the process.
var ErrExpired = errors.New("watchdog expired")

// Device is a hardware watchdog that reboots the machine on its own if it is
// not kept alive.
type Device interface {
	Keepalive() error
	Close() error
}

// Resetter performs a full reset. In production it does not return.
type Resetter interface {
	Reset(reason string)
}

// ResetFunc adapts a function to Resetter.
type ResetFunc func(reason string)

func (f ResetFunc) Reset(reason string) { f(reason) }

// Feeder is the capability handed to every task.
type Feeder interface {
	Feed()
}

type Options struct {
	Timeout   time.Duration
	MaxUptime time.Duration

	// FeedInterval is how often Sleep feeds. Defaults to 1s, capped at half
	// the timeout.
	FeedInterval time.Duration

	Device   Device   // optional
	Resetter Resetter // defaults to ProcessResetter

	// Uptime is compared directly against MaxUptime. Defaults to time since
	// process start.
	Uptime func() time.Duration

	Logger *slog.Logger
}

var processStart = time.Now()

func monoNow() int64 {
	return int64(time.Since(processStart))
}

// ProcessUptime is the default uptime clock; its epoch is process start.
func ProcessUptime() time.Duration {
	return time.Since(processStart)
}

type Supervisor struct {
	timeout      time.Duration
	maxUptime    time.Duration
	feedInterval time.Duration
	device       Device
	resetter     Resetter
	uptime       func() time.Duration
	logger       *slog.Logger

	// monotonic nanos since processStart
	lastFeed atomic.Int64
	lastPet  atomic.Int64

	// set while the gateway is parked on a configuration error
	uptimeLimitOff atomic.Bool

	hooksMu sync.Mutex
	hooks   []func(reason string)

	resetOnce sync.Once
	resetting atomic.Bool
}

func New(opts Options) *Supervisor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxUptime <= 0 {
		opts.MaxUptime = DefaultMaxUptime
	}
	if opts.FeedInterval <= 0 {
		opts.FeedInterval = time.Second
	}
	if opts.FeedInterval > opts.Timeout/2 {
		opts.FeedInterval = opts.Timeout / 2
	}
	if opts.Resetter == nil {
		opts.Resetter = ProcessResetter{}
	}
	if opts.Uptime == nil {
		opts.Uptime = ProcessUptime
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Supervisor{
		timeout:      opts.Timeout,
		maxUptime:    opts.MaxUptime,
		feedInterval: opts.FeedInterval,
		device:       opts.Device,
		resetter:     opts.Resetter,
		uptime:       opts.Uptime,
		logger:       opts.Logger,
	}
	s.lastFeed.Store(monoNow())
	return s
}

// Feed acknowledges the watchdog. It is safe to call from any goroutine and
// never fails.
func (s *Supervisor) Feed() {
	now := monoNow()
	s.lastFeed.Store(now)

	if s.uptimeExceeded() {
		return
	}

	if s.device == nil {
		return
	}
	// rate-limit hardware writes; several tasks feed concurrently
	last := s.lastPet.Load()
	if now-last < int64(s.feedInterval) || !s.lastPet.CompareAndSwap(last, now) {
		return
	}
	if err := s.device.Keepalive(); err != nil {
		s.logger.Warn("watchdog keepalive failed", "err", err)
	}
}

// Run is the software expiry timer. It resets the process when no Feed has
// been seen within the timeout, then returns ErrExpired.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.timeout / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		since := time.Duration(monoNow() - s.lastFeed.Load())
		if since > s.timeout {
			s.Reset("watchdog expired: no feed for " + since.Truncate(time.Millisecond).String())
			return ErrExpired
		}
		if s.uptimeExceeded() {
			return ErrExpired
		}
	}
}

// uptimeExceeded triggers the scheduled restart once uptime passes the limit.
func (s *Supervisor) uptimeExceeded() bool {
	if s.uptimeLimitOff.Load() {
		return false
	}
	up := s.uptime()
	if up <= s.maxUptime {
		return false
	}
	s.Reset("scheduled restart: uptime " + up.Truncate(time.Second).String())
	return true
}

// DisableUptimeLimit turns off the scheduled restart for the rest of the
// process. Feeding and the expiry timer keep working.
func (s *Supervisor) DisableUptimeLimit() {
	s.uptimeLimitOff.Store(true)
}

// BeforeReset registers fn to run, in registration order, right before the
// resetter. Hooks must return promptly; the reset waits for them.
func (s *Supervisor) BeforeReset(fn func(reason string)) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

// Sleep waits for d, feeding at least every FeedInterval. It returns early
// with ctx.Err() when ctx ends.
func (s *Supervisor) Sleep(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		s.Feed()
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		step := min(remaining, s.feedInterval)

		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset performs the full reset once; later calls are ignored.
func (s *Supervisor) Reset(reason string) {
	s.resetOnce.Do(func() {
		s.resetting.Store(true)
		s.logger.Error("full reset", "reason", reason)

		s.hooksMu.Lock()
		hooks := append([]func(string){}, s.hooks...)
		s.hooksMu.Unlock()
		for _, fn := range hooks {
			fn(reason)
		}
		s.resetter.Reset(reason)
	})
}

// Resetting reports whether a reset has been triggered.
func (s *Supervisor) Resetting() bool {
	return s.resetting.Load()
}

// Close releases the hardware device. The kernel keeps its timer running
// unless the driver allows a clean stop, so a stuck shutdown still reboots.
func (s *Supervisor) Close() error {
	if s.device == nil {
		return nil
	}
	return s.device.Close()
}
