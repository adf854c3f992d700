// Package httpx holds the JSON response and decoding helpers shared by every
// HTTP handler. Errors go out as RFC 7807 problem documents.
package httpx

import (
	"encoding/json"
	"net/http"
)

const maxBodyBytes = 1 << 20

// ProblemDetail is the RFC 7807 error body.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Problem writes an RFC 7807 problem response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{Title: title, Status: status, Detail: detail})
}

// DecodeJSON reads the request body into v, capping it at 1 MiB.
func DecodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	return json.NewDecoder(body).Decode(v)
}
