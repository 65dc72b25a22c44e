package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/repository"
)

type ListHandler struct {
	lists  *repository.Lists
	now    func() time.Time
	logger *slog.Logger
}

func NewListHandler(lists *repository.Lists, logger *slog.Logger) *ListHandler {
	return &ListHandler{lists: lists, now: time.Now, logger: logger}
}

type listRequest struct {
	ID   model.ListID `json:"id"`
	Name string       `json:"name"`
}

// List handles GET /lists
func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	respond(w, r, h.logger, h.lists.FetchAll(r.Context()), http.StatusOK, func(e event.Event) any {
		lists := e.(event.ListsFetched).Lists
		if lists == nil {
			lists = []model.List{}
		}
		return lists
	})
}

// Get handles GET /lists/{id}
func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.ListID(r.PathValue("id"))
	respond(w, r, h.logger, h.lists.Fetch(r.Context(), id), http.StatusOK, func(e event.Event) any {
		return e.(event.ListFetched).List
	})
}

// Create handles POST /lists. Clients may supply their own id.
func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ID == "" {
		req.ID = model.NewListID()
	}

	list := model.List{ID: req.ID, Name: req.Name, UpdatedAt: h.now().UTC()}
	respond(w, r, h.logger, h.lists.Add(r.Context(), list), http.StatusCreated, func(e event.Event) any {
		return e.(event.ListAdded).List
	})
}

// Rename handles PUT /lists/{id}
func (h *ListHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	list := model.List{ID: model.ListID(r.PathValue("id")), Name: req.Name, UpdatedAt: h.now().UTC()}
	respond(w, r, h.logger, h.lists.Update(r.Context(), list), http.StatusOK, func(e event.Event) any {
		return e.(event.ListUpdated).List
	})
}

// Delete handles DELETE /lists/{id}. The list's items are removed by the
// cascade listener.
func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	list := model.List{ID: model.ListID(r.PathValue("id"))}
	respond(w, r, h.logger, h.lists.Remove(r.Context(), list), http.StatusNoContent, nil)
}
