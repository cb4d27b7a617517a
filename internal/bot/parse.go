package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseURLArg extracts a single URL from a command argument string.
func ParseURLArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return "", fmt.Errorf("feed URL is required")
	}
	fields := strings.Fields(s)
	if len(fields) != 1 {
		return "", fmt.Errorf("expected a single URL, got %d arguments", len(fields))
	}
	u := fields[0]
	if !strings.Contains(u, ".") {
		return "", fmt.Errorf("%q does not look like a URL", u)
	}
	return u, nil
}

// ParseMinutesArg extracts a positive interval in minutes.
func ParseMinutesArg(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("interval is required")
	}
	mins, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	if mins < 1 {
		return 0, fmt.Errorf("interval must be positive")
	}
	return mins, nil
}
