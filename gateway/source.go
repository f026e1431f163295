package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
	"unicode/utf8"
)

// FrameMarker prefixes every LoRa APRS frame.
var FrameMarker = []byte{'<', 0xFF, 0x01}

var (
	ErrRadioClosed = errors.New("radio link closed")

	errNoMarker = errors.New("frame has no LoRa APRS marker")
	errNotUTF8  = errors.New("frame payload is not valid UTF-8")
)

// Radio is the driver primitive: wait up to timeout for one frame. A nil
// frame with a nil error means the timeout passed.
type Radio interface {
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Decode returns the payload text of a LoRa APRS frame.
func Decode(frame []byte) (string, error) {
	if !bytes.HasPrefix(frame, FrameMarker) {
		return "", errNoMarker
	}
	payload := frame[len(FrameMarker):]
	if !utf8.Valid(payload) {
		return "", errNotUTF8
	}
	return string(payload), nil
}

type SourceOptions struct {
	Timeout time.Duration // base wait before jitter

	// Jitter is added to Timeout on every call. Defaults to 1..9 whole seconds.
	Jitter func() time.Duration

	// Poll bounds a single radio wait so the watchdog is fed in between.
	Poll time.Duration

	Feed   func()
	OnDrop func(frame []byte, reason error)
	Logger *slog.Logger
}

// Source turns radio frames into payloads for forwarding.
type Source struct {
	radio Radio
	opts  SourceOptions
}

func NewSource(radio Radio, opts SourceOptions) *Source {
	if opts.Timeout <= 0 {
		opts.Timeout = 900 * time.Second
	}
	if opts.Jitter == nil {
		opts.Jitter = func() time.Duration {
			return time.Duration(1+rand.IntN(9)) * time.Second
		}
	}
	if opts.Poll <= 0 {
		opts.Poll = time.Second
	}
	if opts.Feed == nil {
		opts.Feed = func() {}
	}
	if opts.OnDrop == nil {
		opts.OnDrop = func([]byte, error) {}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Source{radio: radio, opts: opts}
}

// Next waits up to Timeout plus jitter for a frame. ok is false when nothing
// usable arrived: a timeout or a discarded frame. err is only set when the
// radio itself fails or ctx ends.
func (s *Source) Next(ctx context.Context) (payload string, ok bool, err error) {
	wait := s.opts.Timeout + s.opts.Jitter()
	s.opts.Logger.Debug("waiting for LoRa APRS packet", "timeout", wait)
	deadline := time.Now().Add(wait)

	for {
		s.opts.Feed()
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}

		frame, err := s.radio.Receive(ctx, min(remaining, s.opts.Poll))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", false, ctxErr
			}
			return "", false, fmt.Errorf("%w: %w", ErrRadioClosed, err)
		}
		if frame == nil {
			continue
		}

		payload, err := Decode(frame)
		switch {
		case errors.Is(err, errNoMarker):
			// foreign or malformed frame, not ours to report
			s.opts.OnDrop(frame, err)
			return "", false, nil
		case err != nil:
			s.opts.Logger.Warn("lost packet, unable to decode, skipping", "err", err, "frame", fmt.Sprintf("%x", frame))
			s.opts.OnDrop(frame, err)
			return "", false, nil
		}
		return payload, true, nil
	}
}
