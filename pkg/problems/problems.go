// Package problems writes API error bodies of the form
// {"code", "message", "details", "type"}.
package problems

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
)

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/problems)
// 2. BASE_PUBLIC_URL + "/problems" (if set)
// 3. https://example.com/problems (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("BASE_PUBLIC_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }

type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Write sends status with a JSON problem body.
func Write(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Code: code, Message: message, Details: details, Type: Type(code)})
}

// Validation sends 422 with the failing fields under details.fields.
func Validation(w http.ResponseWriter, message string, fields []apierr.FieldError) {
	Write(w, http.StatusUnprocessableEntity, "validation_error", message, map[string]any{"fields": fields})
}
