package aprs

import (
	"fmt"
	"strings"

	"loraigate/packet"
)

// splitHeader splits a TNC2 line CALL>DEST,PATH:payload.
func splitHeader(line string) (src, dest string, path []string, payload string, err error) {
	sep := strings.IndexByte(line, ':')
	if sep == -1 {
		return "", "", nil, "", fmt.Errorf("no header separator ':' in %q", line)
	}
	header := line[:sep]
	payload = line[sep+1:]

	gt := strings.IndexByte(header, '>')
	if gt == -1 {
		return "", "", nil, "", fmt.Errorf("no source callsign separator '>' found in header: %s", header)
	}
	src = header[:gt]
	if len(src) == 0 || len(src) > 9 {
		return "", "", nil, "", fmt.Errorf("invalid source callsign format: %s", src)
	}

	hops := strings.Split(header[gt+1:], ",")
	dest = hops[0]
	if len(hops) > 1 {
		path = hops[1:]
	}
	return src, dest, path, payload, nil
}

// Parse decodes a TNC2 text line into a Packet for display. Packets the
// decoder does not understand come back as TypeUnknown, not as an error; an
// error means the line has no usable header at all.
func Parse(line string) (*packet.Packet, error) {
	line = strings.TrimRight(line, "\r\n")
	src, dest, path, payload, err := splitHeader(line)
	if err != nil {
		return nil, err
	}

	pkt := &packet.Packet{
		Raw:      line,
		Callsign: src,
		Dest:     dest,
		Path:     path,
		Type:     packet.TypeUnknown,
	}
	if len(payload) == 0 {
		return pkt, nil
	}

	switch payload[0] {
	case '!', '=', '/', '@':
		if lat, lon, err := parseNormal(payload); err == nil {
			pkt.Type = packet.TypePosition
			pkt.Lat, pkt.Lon = lat, lon
		}
	case ';':
		if lat, lon, err := parseObjectPosition(payload); err == nil {
			pkt.Type = packet.TypePosition
			pkt.Lat, pkt.Lon = lat, lon
		}
	case ':':
		if to, body, id, err := parseMessage(payload); err == nil {
			pkt.Type = packet.TypeMessage
			pkt.MsgTo, pkt.MsgBody, pkt.MsgID = to, body, id
		}
	case '>':
		pkt.Type = packet.TypeStatus
		pkt.Status = payload[1:]
	default:
		// position with a leading comment, as aprslib accepts
		if idx := strings.IndexByte(payload, '!'); idx > 0 && idx < 40 {
			if lat, lon, err := parseNormal(payload[idx:]); err == nil {
				pkt.Type = packet.TypePosition
				pkt.Lat, pkt.Lon = lat, lon
			}
		}
	}
	return pkt, nil
}
