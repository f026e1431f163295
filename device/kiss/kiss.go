package kiss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"loraigate/config"
)

// ErrClosed is returned by Receive once the modem link is gone.
var ErrClosed = errors.New("kiss: link closed")

// Client is a receive-only connection to a KISS LoRa modem.
type Client struct {
	conn   io.ReadWriteCloser // serial port or TCP
	frames chan []byte
	done   chan struct{}

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// Connect opens the modem link described by conf and starts reading frames.
func Connect(conf config.RadioConfig) (*Client, error) {
	slog.Info("connecting to radio", "type", conf.Type, "device", conf.Device)

	var (
		conn io.ReadWriteCloser
		err  error
	)
	switch conf.Type {
	case "serial":
		conn, err = connectSerial(conf.Device, conf.Baud)
	case "tcp":
		conn, err = connectTCP(conf.Device)
	default:
		err = fmt.Errorf("unknown radio type: %s", conf.Type)
	}
	if err != nil {
		return nil, err
	}

	c := NewClient(conn)
	slog.Info("radio connected", "type", conf.Type, "device", conf.Device)
	return c, nil
}

// NewClient starts reading KISS frames from conn.
func NewClient(conn io.ReadWriteCloser) *Client {
	c := &Client{
		conn:   conn,
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.frames)
	decoder := NewDecoder(c.conn)

	for {
		frame, err := decoder.ReadFrame()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}

		// only data frames; the high nibble is the modem port
		if len(frame) < 1 || frame[0]&0x0F != CmdData {
			continue
		}

		data := make([]byte, len(frame)-1)
		copy(data, frame[1:])

		select {
		case c.frames <- data:
		case <-c.done:
			return
		}
	}
}

// Receive waits up to timeout for the next radio frame. It returns nil, nil
// when the timeout passes without a frame.
func (c *Client) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame, ok := <-c.frames:
		if !ok {
			return nil, c.linkErr()
		}
		return frame, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) linkErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil && !errors.Is(c.err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrClosed, c.err)
	}
	return ErrClosed
}

// Close disconnects the client
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
