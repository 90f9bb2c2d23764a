// Package httputil centralizes JSON response helpers so every handler emits
// the same envelopes.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "hive/pkg/domain-errors"
)

type errorEnvelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates a domain error into an HTTP response. Internal errors
// deliberately omit the description so storage details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	envelope := errorEnvelope{Error: string(code)}
	if code != dErrors.CodeInternal {
		envelope.ErrorDescription = dErrors.MessageOf(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// Decode parses the request body into T. On malformed input it writes a
// bad_request response and returns false.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var payload T
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		var zero T
		return zero, false
	}
	return payload, true
}

// WriteJSON writes a JSON payload with the given status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
