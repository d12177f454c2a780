package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// DateLayout is the wire format for plain dates.
const DateLayout = "2006-01-02"

// URLInt64 parses a chi URL parameter as a positive int64.
func URLInt64(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrValidation, name)
	}
	return id, nil
}

// QueryInt64 parses an optional int64 query parameter, returning 0 when absent.
func QueryInt64(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return id
}

// QueryDate parses an optional YYYY-MM-DD query parameter, falling back when
// absent. A present but malformed value is an error.
func QueryDate(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrValidation, name)
	}
	return t, nil
}

// ParseDate parses a required YYYY-MM-DD body field.
func ParseDate(name, raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrValidation, name)
	}
	return t, nil
}
