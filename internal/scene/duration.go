package scene

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses a wait expression.
//
// Accepted forms: "1s", "500ms", "1.5s", "2m" and bare numbers, which are
// seconds ("2" and "0.25" both work). Negative values are rejected.
func ParseDuration(expr string) (time.Duration, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDuration, expr)
		}
		return Seconds(secs), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, expr)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDuration, expr)
	}
	return d, nil
}

// Seconds converts fractional seconds, as written in scene payloads, to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
