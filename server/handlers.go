// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ngscoder/chatfleet/hub"
)

// maxBodyBytes caps request bodies; credential and message files are small
// line-oriented text.
const maxBodyBytes = 1 << 20

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	hub *hub.Hub
	ctx context.Context
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, h *hub.Hub) *Handlers {
	return &Handlers{hub: h, ctx: ctx}
}

// readBody drains a size-capped request body. A false return means the
// response has already been written.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// decodeJSON decodes a size-capped JSON body into dst. A false return means
// the response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
