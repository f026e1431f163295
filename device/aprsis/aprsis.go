package aprsis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Software identification sent in the login line.
const (
	SoftwareName    = "APRSiGate"
	SoftwareRelease = "1.0"
)

const (
	DefaultDialTimeout  = 4 * time.Second
	DefaultWriteTimeout = 4 * time.Second
)

// ErrFatal marks a send that failed, reconnected, and failed again. The
// caller must reset; the session does not retry further.
var ErrFatal = errors.New("aprsis: uplink lost")

var errNotConnected = errors.New("not connected")

// State of the single APRS-IS connection.
type State int32

const (
	Disconnected State = iota
	Connected          // TCP up, login not yet written
	Authenticated
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Authenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Options struct {
	Addr     string // host:port
	Callsign string
	Passcode string
	Software string
	Release  string

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	Dialer Dialer
	Feed   func() // watchdog feed, called around blocking steps

	// OnReconnect is called after a send failure, before the reconnect.
	OnReconnect func(cause error)

	Logger *slog.Logger
}

// Session owns the one outbound APRS-IS socket. Every write goes through
// Send, which holds mu across the write and the whole reconnect-and-resend
// path so two sends never interleave on the socket.
type Session struct {
	opts Options

	mu   sync.Mutex
	conn net.Conn

	state      atomic.Int32
	verified   atomic.Bool
	reconnects atomic.Uint64
}

func New(opts Options) *Session {
	if opts.Software == "" {
		opts.Software = SoftwareName
	}
	if opts.Release == "" {
		opts.Release = SoftwareRelease
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}
	if opts.Feed == nil {
		opts.Feed = func() {}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{opts: opts}
}

// LoginLine is the authentication line, newline included.
func (s *Session) LoginLine() string {
	return fmt.Sprintf("user %s pass %s vers %s %s\n",
		s.opts.Callsign, s.opts.Passcode, s.opts.Software, s.opts.Release)
}

// Connect opens the socket and authenticates.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	s.closeLocked()

	dctx, cancel := context.WithTimeout(ctx, s.opts.DialTimeout)
	defer cancel()

	s.opts.Logger.Info("connecting to APRS-IS", "server", s.opts.Addr)
	conn, err := s.opts.Dialer.DialContext(dctx, "tcp", s.opts.Addr)
	s.opts.Feed()
	if err != nil {
		return fmt.Errorf("connect to APRS-IS %s: %w", s.opts.Addr, err)
	}
	s.conn = conn
	s.setState(Connected)

	if err := s.writeLocked([]byte(s.LoginLine())); err != nil {
		s.closeLocked()
		return fmt.Errorf("send login: %w", err)
	}
	s.setState(Authenticated)
	s.opts.Logger.Info("logged in to APRS-IS",
		"server", conn.RemoteAddr().String(),
		"login", fmt.Sprintf("user %s pass **** vers %s %s", s.opts.Callsign, s.opts.Software, s.opts.Release),
	)

	go s.readLoop(conn)
	return nil
}

// Send writes line plus a newline. On a write failure it reconnects,
// re-authenticates and resends the same bytes exactly once; if that fails the
// returned error wraps ErrFatal.
func (s *Session) Send(ctx context.Context, line string) error {
	data := []byte(line + "\n")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.Feed()
	err := s.writeLocked(data)
	if err == nil {
		return nil
	}

	s.opts.Logger.Warn("APRS-IS send failed, reconnecting", "server", s.opts.Addr, "err", err)
	s.reconnects.Add(1)
	if s.opts.OnReconnect != nil {
		s.opts.OnReconnect(err)
	}

	if err := s.connectLocked(ctx); err != nil {
		return fmt.Errorf("%w: reconnect: %w", ErrFatal, err)
	}
	if err := s.writeLocked(data); err != nil {
		s.closeLocked()
		return fmt.Errorf("%w: resend: %w", ErrFatal, err)
	}
	return nil
}

func (s *Session) writeLocked(data []byte) error {
	if s.conn == nil {
		return errNotConnected
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return err
	}
	_, err := s.conn.Write(data)
	return err
}

// readLoop drains server lines for one connection and records the login
// verdict. It never writes; it ends when the connection is closed.
func (s *Session) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "# logresp ") {
			s.opts.Logger.Debug("APRS-IS server", "line", line)
			continue
		}

		// # logresp <callsign> verified|unverified, server <id>
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		verdict := strings.TrimSuffix(parts[3], ",")
		if !strings.EqualFold(parts[2], s.opts.Callsign) {
			s.opts.Logger.Warn("login response callsign mismatch", "want", s.opts.Callsign, "got", parts[2])
			continue
		}
		if verdict == "verified" {
			s.verified.Store(true)
			s.opts.Logger.Info("APRS-IS login verified", "line", line)
		} else {
			s.verified.Store(false)
			s.opts.Logger.Warn("APRS-IS login not verified, packets will be dropped by the server", "status", verdict)
		}
	}
}

// State reports the connection state without waiting for an in-flight send.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Verified reports whether the server accepted the passcode.
func (s *Session) Verified() bool {
	return s.verified.Load()
}

// Reconnects counts send failures that led to a reconnect.
func (s *Session) Reconnects() uint64 {
	return s.reconnects.Load()
}

func (s *Session) closeLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.verified.Store(false)
	s.setState(Disconnected)
}

// Close disconnects the session
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.opts.Logger.Info("closing APRS-IS connection")
	}
	s.closeLocked()
}
