package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frame(payload string) []byte {
	return append(append([]byte(nil), FrameMarker...), payload...)
}

// fakeRadio delivers queued frames, then waits out each timeout.
type fakeRadio struct {
	frames chan []byte
	err    error
	calls  atomic.Int32
}

func newFakeRadio(frames ...[]byte) *fakeRadio {
	r := &fakeRadio{frames: make(chan []byte, len(frames))}
	for _, f := range frames {
		r.frames <- f
	}
	return r
}

func (r *fakeRadio) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-r.frames:
		return f, nil
	case <-t.C:
		return nil, nil
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		want    string
		wantErr error
	}{
		{"valid", frame("N0CALL>APLRT1:!hello"), "N0CALL>APLRT1:!hello", nil},
		{"utf8", frame("ON4ABC>APRS:>73 de Jörg"), "ON4ABC>APRS:>73 de Jörg", nil},
		{"empty payload", frame(""), "", nil},
		{"no marker", []byte("garbage"), "", errNoMarker},
		{"short", []byte{'<', 0xFF}, "", errNoMarker},
		{"bad utf8", append(frame("N0CALL>APRS:"), 0xC3, 0x28), "", errNotUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.frame)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err=%v want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("payload=%q want %q", got, tt.want)
			}
		})
	}
}

func TestSourceNext(t *testing.T) {
	radio := newFakeRadio(frame("HELLO"), []byte("garbage"), append(frame("X"), 0xFF), frame("WORLD"))
	var feeds, drops atomic.Int32
	src := NewSource(radio, SourceOptions{
		Timeout: 200 * time.Millisecond,
		Jitter:  func() time.Duration { return 0 },
		Poll:    50 * time.Millisecond,
		Feed:    func() { feeds.Add(1) },
		OnDrop:  func([]byte, error) { drops.Add(1) },
		Logger:  quietLogger(),
	})
	ctx := context.Background()

	want := []struct {
		payload string
		ok      bool
	}{
		{"HELLO", true},
		{"", false}, // no marker
		{"", false}, // bad UTF-8
		{"WORLD", true},
		{"", false}, // timeout
	}
	for i, w := range want {
		payload, ok, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("Next #%d err=%v", i, err)
		}
		if payload != w.payload || ok != w.ok {
			t.Fatalf("Next #%d = %q,%v want %q,%v", i, payload, ok, w.payload, w.ok)
		}
	}
	if drops.Load() != 2 {
		t.Fatalf("drops=%d want 2", drops.Load())
	}
	// the timeout wait is split into polls, each one fed
	if feeds.Load() < 4+4 {
		t.Fatalf("feeds=%d, watchdog not fed while waiting", feeds.Load())
	}
}

func TestSourceNext_RadioClosed(t *testing.T) {
	radio := newFakeRadio()
	radio.err = io.EOF
	src := NewSource(radio, SourceOptions{Timeout: time.Second, Jitter: func() time.Duration { return 0 }, Logger: quietLogger()})

	_, ok, err := src.Next(context.Background())
	if ok || !errors.Is(err, ErrRadioClosed) || !errors.Is(err, io.EOF) {
		t.Fatalf("ok=%v err=%v want ErrRadioClosed", ok, err)
	}
}

func TestSourceNext_Canceled(t *testing.T) {
	src := NewSource(newFakeRadio(), SourceOptions{Timeout: time.Minute, Jitter: func() time.Duration { return 0 }, Logger: quietLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := src.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestDefaultJitter(t *testing.T) {
	src := NewSource(newFakeRadio(), SourceOptions{})
	for i := 0; i < 200; i++ {
		j := src.opts.Jitter()
		if j < time.Second || j > 9*time.Second || j%time.Second != 0 {
			t.Fatalf("jitter=%v outside 1..9s", j)
		}
	}
}
