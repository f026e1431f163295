package aprs

import "fmt"

// Destination is the tocall used for lines the gateway originates.
const Destination = "APRFGI"

// StatusLine builds a '>' status report sent over APRS-IS.
func StatusLine(call, text string) string {
	return fmt.Sprintf("%s>%s,TCPIP*:>%s", call, Destination, text)
}

// PositionLine builds a timestamped '@' position report. timestamp and
// position come from Timestamp and Position.
func PositionLine(call, timestamp, position, comment string) string {
	return fmt.Sprintf("%s>%s,TCPIP*:@%s%s%s", call, Destination, timestamp, position, comment)
}
