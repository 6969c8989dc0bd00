package utils

import (
	"net/http"
	"strconv"
	"time"
)

// QueryInt reads a non-negative integer query parameter. It returns 0 when
// the parameter is absent or malformed.
func QueryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// QueryDate reads a query parameter as an RFC 3339 timestamp or a
// YYYY-MM-DD date in UTC. The zero time is returned for an absent value.
func QueryDate(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}
