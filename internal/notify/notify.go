// Package notify turns wake payloads sent by other devices into
// RemoteChanged events, and builds the payloads this device sends.
//
// Payloads are untrusted. Anything malformed or unrecognized is dropped
// without an event or an error.
package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/mapper"
	"github.com/dukerupert/shelflife/internal/record"
)

// maxPayload bounds the body accepted by ServeHTTP.
const maxPayload = 4 << 10

// Wake is the payload exchanged between devices.
type Wake struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Key      string `json:"key"`
	Parent   string `json:"parent,omitempty"`
}

// envelope is the web push form of a Wake.
type envelope struct {
	Wake *Wake `json:"wake"`
}

// Encode renders w in the envelope form accepted by Parse.
func Encode(w Wake) ([]byte, error) {
	return json.Marshal(envelope{Wake: &w})
}

// Parse decodes a bare or enveloped wake payload. ok is false when the
// payload should be ignored.
func Parse(data []byte) (event.RemoteChanged, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return event.RemoteChanged{}, false
	}
	w := env.Wake
	if w == nil {
		w = new(Wake)
		if err := json.Unmarshal(data, w); err != nil {
			return event.RemoteChanged{}, false
		}
	}
	return w.event()
}

func (w Wake) event() (event.RemoteChanged, bool) {
	var e event.RemoteChanged
	switch a := event.Action(w.Action); a {
	case event.ActionCreated, event.ActionUpdated, event.ActionDeleted:
		e.Action = a
	default:
		return e, false
	}

	key := record.Key(w.Key)
	parent := record.Key(w.Parent)
	var ok bool
	switch c := event.Category(w.Category); c {
	case event.CategoryItem:
		_, ok = mapper.ItemIDFromKey(key)
		ok = ok && validParent(parent, mapper.ListIDFromKey)
	case event.CategoryList:
		_, ok = mapper.ListIDFromKey(key)
		ok = ok && parent == ""
	case event.CategoryPhoto:
		_, ok = mapper.PhotoIDFromKey(key)
		ok = ok && validParent(parent, mapper.ItemIDFromKey)
	}
	if !ok {
		return e, false
	}
	e.Category = event.Category(w.Category)
	e.Key = key
	e.Parent = parent
	return e, true
}

func validParent[T any](parent record.Key, parse func(record.Key) (T, bool)) bool {
	if parent == "" {
		return true
	}
	_, ok := parse(parent)
	return ok
}

// Router publishes RemoteChanged events for inbound wake payloads.
type Router struct {
	bus    *event.Bus
	logger *slog.Logger
}

func NewRouter(bus *event.Bus, logger *slog.Logger) *Router {
	return &Router{bus: bus, logger: logger.With("component", "notify")}
}

// Route publishes the event for data and reports whether it was accepted.
func (r *Router) Route(data []byte) bool {
	e, ok := Parse(data)
	if !ok {
		r.logger.Debug("dropped wake payload", "size", len(data))
		return false
	}
	r.bus.Publish(e)
	return true
}

// ServeHTTP always answers 204 so callers learn nothing about payload validity.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxPayload))
	if err == nil {
		r.Route(data)
	}
	w.WriteHeader(http.StatusNoContent)
}
