package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// decodeBody reads a JSON object into a value of type T. Bodies that are not
// JSON decode to the zero value, the same as "{}". A field of the wrong type
// is left at its zero value while the remaining fields are kept.
func decodeBody[T any](r *http.Request) T {
	var zero T
	if r.Body == nil {
		return zero
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return zero
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return v
		}
		return zero
	}
	return v
}

// flexInt is an optional integer that accepts a JSON number or a numeric
// string. Anything else leaves it unset.
type flexInt struct {
	Value int
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = flexInt{}
	n, ok := parseNumber(data)
	if !ok || n > math.MaxInt32 || n < math.MinInt32 {
		return nil
	}
	f.Value, f.Set = int(n), true
	return nil
}

// flexFloat is the float counterpart of flexInt.
type flexFloat struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = flexFloat{}
	if n, ok := parseNumber(data); ok {
		f.Value, f.Set = n, true
	}
	return nil
}

// Ptr returns the value as a pointer, nil when unset.
func (f flexFloat) Ptr() *float64 {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

func parseNumber(data []byte) (float64, bool) {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return 0, false
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(str)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// requireMethod writes a 405 and returns false when r does not use method.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	return false
}
