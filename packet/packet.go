package packet

// PacketType defines the type of APRS data.
type PacketType int

const (
	TypeUnknown  PacketType = iota // not decoded; still forwarded
	TypePosition                   // a position report
	TypeMessage                    // a message
	TypeStatus                     // a '>' status report
)

func (t PacketType) String() string {
	switch t {
	case TypePosition:
		return "position"
	case TypeMessage:
		return "message"
	case TypeStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Packet is the display view of a TNC2 line heard on RF. The gateway never
// forwards this struct; it forwards Raw untouched.
type Packet struct {
	Raw      string
	Callsign string // source callsign
	Dest     string
	Path     []string
	Type     PacketType

	// TypePosition
	Lat float64
	Lon float64

	// TypeMessage
	MsgTo   string
	MsgBody string
	MsgID   string

	// TypeStatus
	Status string
}
