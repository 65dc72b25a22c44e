// Package handler exposes the synchronizing repositories over JSON HTTP.
// Every mutating request waits for its operation to finish and maps the
// terminal event to a status code.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/repository"
)

// maxJSONBytes bounds request bodies other than photo uploads.
const maxJSONBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// wait blocks until op finishes or the client goes away. On NoResult or
// Failed it writes the error response and returns false. A departed client
// does not stop the operation.
func wait(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op *repository.Operation) (event.Event, bool) {
	e, err := op.Wait(r.Context())
	if err != nil {
		logger.Debug("client left before operation finished", "op", op.Op().String())
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return nil, false
	}

	switch e := e.(type) {
	case event.NoResult:
		writeError(w, http.StatusNotFound, "not found")
		return nil, false
	case event.Failed:
		logger.Error("operation failed", "op", e.Op.String(), "error", e.Message)
		writeError(w, http.StatusBadGateway, "remote store error")
		return nil, false
	}
	return e, true
}

// respond waits for op and writes render's body with status on success.
func respond(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op *repository.Operation, status int, render func(event.Event) any) {
	e, ok := wait(w, r, logger, op)
	if !ok {
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, render(e))
}
