package companion

import (
	"errors"
	"strings"
)

// ErrInvalidAddress is returned when a Bluetooth address cannot be parsed.
var ErrInvalidAddress = errors.New("invalid Bluetooth address")

// addressLength is the length of a Bluetooth address string (with ':').
const addressLength = 17

// ParseAddress validates a Bluetooth address in 11:22:33:aa:bb:cc format
// (hyphens are accepted as separators) and returns it in the lower-case,
// colon-separated form the adapter uses as its primary key.
func ParseAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != addressLength {
		return "", ErrInvalidAddress
	}

	var sb strings.Builder
	sb.Grow(addressLength)

	for i := 0; i < len(s); i++ {
		c := s[i]

		// Every third character is a separator.
		if i%3 == 2 {
			if c != ':' && c != '-' {
				return "", ErrInvalidAddress
			}

			sb.WriteByte(':')
			continue
		}

		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
			c += 'a' - 'A'
		default:
			return "", ErrInvalidAddress
		}

		sb.WriteByte(c)
	}

	return sb.String(), nil
}
