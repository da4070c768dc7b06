// Package httpx is the JSON vocabulary shared by every handler: RFC 7807
// problem documents for failures, a thin encoder for success payloads, and a
// bounded request-body decoder.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
)

// Request bodies larger than this are rejected mid-decode.
const maxBodyBytes = 1 << 20

// ProblemDetail is the RFC 7807 error document returned on every failure.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem writes an RFC 7807 problem document.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes the request body into target, capped at one megabyte.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target)
}
