package aprs

import (
	"fmt"
	"strconv"
	"strings"
)

// CalculatePasscode generates the APRS-IS passcode for a given callsign.
// The SSID is ignored.
func CalculatePasscode(callsign string) (int, error) {
	call := strings.ToUpper(strings.Split(callsign, "-")[0])

	if len(call) > 6 || len(call) < 1 {
		return 0, fmt.Errorf("invalid callsign format for passcode: %s", callsign)
	}

	hash := 0x73e2
	high := true // even positions go into the high byte

	for _, char := range call {
		shift := 0
		if high {
			shift = 8
		}
		hash ^= int(char) << shift
		high = !high
	}

	return hash & 0x7fff, nil
}

// CheckPasscode reports whether passcode is the valid APRS-IS passcode for
// callsign. A non-numeric passcode never matches.
func CheckPasscode(callsign, passcode string) (bool, error) {
	want, err := CalculatePasscode(callsign)
	if err != nil {
		return false, err
	}
	got, err := strconv.Atoi(strings.TrimSpace(passcode))
	if err != nil {
		return false, nil
	}
	return got == want, nil
}
