package kiss

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// connectSerial opens a serial LoRa modem speaking KISS.
func connectSerial(devicePath string, baud int) (io.ReadWriteCloser, error) {
	if devicePath == "" {
		return nil, fmt.Errorf("no device path (e.g., /dev/ttyUSB0 or COM3) provided for serial radio")
	}
	if baud <= 0 {
		baud = 9600
	}

	port, err := serial.Open(devicePath, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", devicePath, err)
	}

	// Read must return periodically so Close is noticed.
	if err := port.SetReadTimeout(1 * time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &serialLink{port: port}, nil
}

// serialLink hides read timeouts from the decoder: go.bug.st/serial reports a
// timeout as a zero-length read, which bufio treats as no progress.
type serialLink struct {
	port   serial.Port
	closed atomic.Bool
}

func (s *serialLink) Read(p []byte) (int, error) {
	for {
		n, err := s.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		if s.closed.Load() {
			return 0, io.EOF
		}
	}
}

func (s *serialLink) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialLink) Close() error {
	s.closed.Store(true)
	return s.port.Close()
}
