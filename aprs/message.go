package aprs

import (
	"fmt"
	"strings"
)

// parseMessage parses a message packet (data type ':').
// Format: :ADDRESSEE:message body{id
func parseMessage(payload string) (to, body, id string, err error) {
	s := payload[1:]

	if len(s) < 11 {
		return "", "", "", fmt.Errorf("message packet too short")
	}

	// addressee is 9 chars, space padded
	to = strings.TrimSpace(s[0:9])
	if to == "" {
		return "", "", "", fmt.Errorf("message recipient is blank")
	}
	if s[9] != ':' {
		return "", "", "", fmt.Errorf("missing message body separator ':'")
	}

	bodyPart := s[10:]
	if i := strings.LastIndex(bodyPart, "{"); i > 0 {
		body = strings.TrimSpace(bodyPart[:i])
		id = strings.TrimSpace(bodyPart[i+1:])
	} else {
		body = strings.TrimSpace(bodyPart)
	}

	if body == "" {
		return "", "", "", fmt.Errorf("message body is blank")
	}
	return to, body, id, nil
}
