package kiss

import (
	"bufio"
	"bytes"
	"io"
)

// KISS protocol constants
const (
	FEND  byte = 0xC0 // Frame End
	FESC  byte = 0xDB // Frame Escape
	TFEND byte = 0xDC // Transposed Frame End
	TFESC byte = 0xDD // Transposed Frame Escape

	CmdData byte = 0x00
)

// Decoder reads KISS frames from an io.Reader
type Decoder struct {
	r *bufio.Reader

	// a closing FEND also opens the next frame
	inFrame bool
}

// NewDecoder creates a new KISS frame decoder
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadFrame reads a single, complete KISS frame, command byte included.
// It handles FEND delimiters and FESC escaping.
func (d *Decoder) ReadFrame() ([]byte, error) {
	var frame bytes.Buffer

	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}

		switch b {
		case FEND:
			if d.inFrame && frame.Len() > 0 {
				return frame.Bytes(), nil
			}
			// start of frame, or FEND FEND
			d.inFrame = true
		case FESC:
			if !d.inFrame {
				continue
			}
			b, err = d.r.ReadByte()
			if err != nil {
				return nil, err
			}
			switch b {
			case TFEND:
				frame.WriteByte(FEND)
			case TFESC:
				frame.WriteByte(FESC)
			default:
				// protocol error, keep the byte
				frame.WriteByte(b)
			}
		default:
			if d.inFrame {
				frame.WriteByte(b)
			}
		}
	}
}

// Encode wraps data in a KISS data frame for the given port.
func Encode(port byte, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(FEND)
	buf.WriteByte(port<<4 | CmdData)
	for _, b := range data {
		switch b {
		case FEND:
			buf.Write([]byte{FESC, TFEND})
		case FESC:
			buf.Write([]byte{FESC, TFESC})
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(FEND)
	return buf.Bytes()
}
