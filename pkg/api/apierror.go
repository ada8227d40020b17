// Package api exposes the certification engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/engine"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/store/ledger"
)

const problemTypeBase = "https://trustmesh.dev/errors/"

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 response enriched with the request path and id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:     problemTypeBase + strconv.Itoa(status),
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		TraceID:  w.Header().Get(RequestIDHeader),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

func WriteBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	WriteError(w, r, http.StatusBadRequest, "Bad Request", detail)
}

func WriteNotFound(w http.ResponseWriter, r *http.Request, detail string) {
	WriteError(w, r, http.StatusNotFound, "Not Found", detail)
}

// WriteTooManyRequests writes a 429 error response with Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	WriteError(w, r, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded. Retry after the specified interval.")
}

// WriteInternal writes a 500 error response. err is logged, never exposed.
func WriteInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal server error", "error", err, "path", r.URL.Path)
	WriteError(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
}

// writeEngineError maps engine and ledger failures to problem responses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		WriteBadRequest(w, r, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		WriteNotFound(w, r, "No certificate has been issued yet")
	case errors.Is(err, engine.ErrAttestationDisabled):
		WriteNotFound(w, r, "Attestation is not enabled on this node")
	case errors.Is(err, ledger.ErrStorageUnavailable):
		slog.WarnContext(r.Context(), "ledger unavailable", "error", err, "path", r.URL.Path)
		WriteError(w, r, http.StatusServiceUnavailable, "Service Unavailable", "The certificate ledger is temporarily unavailable")
	case errors.Is(err, ledger.ErrStorageCorrupt):
		slog.ErrorContext(r.Context(), "ledger corrupt", "error", err, "path", r.URL.Path)
		WriteError(w, r, http.StatusInternalServerError, "Ledger Corrupt", "The certificate ledger could not be read and requires operator attention")
	default:
		WriteInternal(w, r, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
