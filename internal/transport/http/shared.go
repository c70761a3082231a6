// Package httpapi is the thin HTTP layer. Handlers delegate to domain
// services and translate coded errors into status codes; no business logic
// lives here.
package httpapi

import (
	"encoding/json"
	"net/http"

	dErrors "attester/pkg/domain-errors"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError centralizes domain error translation so every endpoint emits the
// same JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error": string(code),
	})
}
