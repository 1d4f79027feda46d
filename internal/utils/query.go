package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"geo-bknd/internal/models"
)

// OptionalString returns the trimmed value of key, or nil when key is absent.
// A present but empty value yields a pointer to "".
//
//	?description=        → ptr("")
//	(no description)     → nil
func OptionalString(q url.Values, key string) *string {
	values, ok := q[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

// OptionalDate parses key as YYYY-MM-DD, returning nil when key is absent or empty.
func OptionalDate(q url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &d.Time, nil
}

// IntOrDefault parses key as a base-10 int, returning def when key is absent.
func IntOrDefault(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return n, nil
}
