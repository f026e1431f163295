package aprs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// feetPerMeter is the conversion used for the /A= altitude extension.
const feetPerMeter = 3.2808399

// Groups: lat deg, lat min, lat hemisphere, symbol table, lon deg, lon min,
// lon hemisphere, symbol code, comment.
var normalPosRegex = regexp.MustCompile(
	`^(\d{2})([0-9 ]{2}\.[0-9 ]{2})([NnSs])` +
		`([\/\\0-9A-Z])` +
		`(\d{3})([0-9 ]{2}\.[0-9 ]{2})([EeWw])` +
		`([\x21-\x7e])` +
		`(.*)$`,
)

// parseCoord converts DDMM.hh / DDDMM.hh parts to decimal degrees. Ambiguity
// spaces are centered.
func parseCoord(degStr, minStr, dirStr, neg, pos string) (float64, error) {
	minStr = strings.ReplaceAll(minStr, " ", "5")

	deg, err := strconv.ParseFloat(degStr, 64)
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(minStr, 64)
	if err != nil {
		return 0, err
	}

	dec := deg + min/60.0
	switch strings.ToUpper(dirStr) {
	case neg:
		dec = -dec
	case pos:
	default:
		return 0, fmt.Errorf("invalid hemisphere: %s", dirStr)
	}
	return dec, nil
}

// parseNormal handles uncompressed position reports ('!', '=', '/', '@').
func parseNormal(payload string) (float64, float64, error) {
	if len(payload) < 18 {
		return 0, 0, fmt.Errorf("packet too short")
	}

	body := payload[1:]
	if payload[0] == '/' || payload[0] == '@' {
		if len(body) < 7 {
			return 0, 0, fmt.Errorf("timestamped packet too short")
		}
		body = body[7:]
	}

	m := normalPosRegex.FindStringSubmatch(body)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid uncompressed position format")
	}

	lat, err := parseCoord(m[1], m[2], m[3], "S", "N")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lon, err := parseCoord(m[5], m[6], m[7], "W", "E")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse longitude: %w", err)
	}
	return lat, lon, nil
}

// parseObjectPosition handles ';' object reports:
// ;OBJECTNAME*DDHHMMzDDMM.hhN/DDDMM.hhW$...
func parseObjectPosition(payload string) (float64, float64, error) {
	if len(payload) < 18 || payload[0] != ';' {
		return 0, 0, fmt.Errorf("not an object report")
	}
	if payload[10] != '*' && payload[10] != '_' {
		return 0, 0, fmt.Errorf("invalid object marker: %c", payload[10])
	}
	return parseNormal("/" + payload[11:])
}

// splitDegrees returns whole degrees and hundredths of minutes, rounded so
// that minutes never print as 60.00.
func splitDegrees(v float64) (int, int) {
	total := int(math.Round(math.Abs(v) * 6000))
	return total / 6000, total % 6000
}

// FormatLatitude encodes a latitude as DDMM.hhN.
func FormatLatitude(lat float64) string {
	hemi := 'N'
	if lat < 0 {
		hemi = 'S'
	}
	deg, hmin := splitDegrees(lat)
	return fmt.Sprintf("%02d%02d.%02d%c", deg, hmin/100, hmin%100, hemi)
}

// FormatLongitude encodes a longitude as DDDMM.hhE.
func FormatLongitude(lon float64) string {
	hemi := 'E'
	if lon < 0 {
		hemi = 'W'
	}
	deg, hmin := splitDegrees(lon)
	return fmt.Sprintf("%03d%02d.%02d%c", deg, hmin/100, hmin%100, hemi)
}

// Position encodes an uncompressed position with its two-character symbol
// (table then code), e.g. "5209.10NR00345.89E&".
func Position(lat, lon float64, symbol string) (string, error) {
	if len(symbol) != 2 {
		return "", fmt.Errorf("symbol must be 2 characters: %q", symbol)
	}
	return FormatLatitude(lat) + symbol[:1] + FormatLongitude(lon) + symbol[1:], nil
}

// AltitudeFeet converts meters to whole feet, rounded.
func AltitudeFeet(meters float64) int {
	return int(math.Round(meters * feetPerMeter))
}

// AltitudeTag is the /A=ffffff comment extension.
func AltitudeTag(meters float64) string {
	return fmt.Sprintf("/A=%06d", AltitudeFeet(meters))
}

// Timestamp formats t in one of the APRS timestamp forms: 'z' (DDHHMMz,
// zulu), '/' (DDHHMM/, local) or 'h' (HHMMSSh, zulu).
func Timestamp(kind byte, t time.Time) (string, error) {
	switch kind {
	case 'z':
		t = t.UTC()
		return fmt.Sprintf("%02d%02d%02dz", t.Day(), t.Hour(), t.Minute()), nil
	case '/':
		return fmt.Sprintf("%02d%02d%02d/", t.Day(), t.Hour(), t.Minute()), nil
	case 'h':
		t = t.UTC()
		return fmt.Sprintf("%02d%02d%02dh", t.Hour(), t.Minute(), t.Second()), nil
	default:
		return "", fmt.Errorf("unknown timestamp kind %q", kind)
	}
}
