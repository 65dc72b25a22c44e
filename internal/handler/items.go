package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/repository"
)

type ItemHandler struct {
	items  *repository.Items
	logger *slog.Logger
}

func NewItemHandler(items *repository.Items, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{items: items, logger: logger}
}

type itemRequest struct {
	ID         model.ItemID     `json:"id"`
	Name       string           `json:"name"`
	Notes      string           `json:"notes"`
	Expiration model.Expiration `json:"expiration"`
	ListID     model.ListID     `json:"list_id"`
	Alert      string           `json:"alert"`
	Photos     []model.PhotoID  `json:"photos"`
}

// item validates req and builds the item it describes.
func (req itemRequest) item() (model.Item, string) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Item{}, "name is required"
	}
	if req.ListID == "" {
		return model.Item{}, "list_id is required"
	}
	alert, err := model.ParseAlertOption(req.Alert)
	if err != nil {
		return model.Item{}, err.Error()
	}
	return model.Item{
		ID:         req.ID,
		Name:       name,
		Notes:      req.Notes,
		Expiration: req.Expiration,
		ListID:     req.ListID,
		Alert:      alert,
		Photos:     req.Photos,
	}, ""
}

func renderItems(items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	return items
}

// List handles GET /items. With ?list_id= the result is scoped to one list;
// with ?ids=a,b only the named items are returned.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	if ids := r.URL.Query().Get("ids"); ids != "" {
		var itemIDs []model.ItemID
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				itemIDs = append(itemIDs, model.ItemID(id))
			}
		}
		respond(w, r, h.logger, h.items.FetchMany(r.Context(), itemIDs), http.StatusOK, func(e event.Event) any {
			return renderItems(e.(event.ItemsFetched).Items)
		})
		return
	}

	listID := model.ListID(r.URL.Query().Get("list_id"))
	respond(w, r, h.logger, h.items.FetchAll(r.Context(), listID), http.StatusOK, func(e event.Event) any {
		return renderItems(e.(event.ItemsFetched).Items)
	})
}

// Get handles GET /items/{id}
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.ItemID(r.PathValue("id"))
	respond(w, r, h.logger, h.items.Fetch(r.Context(), id), http.StatusOK, func(e event.Event) any {
		return e.(event.ItemFetched).Item
	})
}

// Create handles POST /items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = model.NewItemID()
	}
	item, msg := req.item()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	respond(w, r, h.logger, h.items.Add(r.Context(), item), http.StatusCreated, func(e event.Event) any {
		return e.(event.ItemAdded).Item
	})
}

// Update handles PUT /items/{id}. The body replaces every item field;
// fields of the stored record this server does not know are kept. The list
// cannot change here: relocating goes through POST /items/{id}/move so both
// lists see the move.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = model.ItemID(r.PathValue("id"))
	item, msg := req.item()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	current, ok := h.fetch(w, r)
	if !ok {
		return
	}
	if current.ListID != item.ListID {
		writeError(w, http.StatusConflict, "list_id cannot change on update, use POST /items/{id}/move")
		return
	}
	respond(w, r, h.logger, h.items.Update(r.Context(), item), http.StatusOK, func(e event.Event) any {
		return e.(event.ItemUpdated).Item
	})
}

type moveRequest struct {
	To model.ListID `json:"to"`
}

// Move handles POST /items/{id}/move
func (h *ItemHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	current, ok := h.fetch(w, r)
	if !ok {
		return
	}
	respond(w, r, h.logger, h.items.Move(r.Context(), current, req.To), http.StatusOK, func(e event.Event) any {
		m := e.(event.ItemMoved)
		return map[string]any{"item": m.Item, "from": m.From, "to": m.To}
	})
}

// Delete handles DELETE /items/{id}. The item is read first so list
// listeners learn which list lost it.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	current, ok := h.fetch(w, r)
	if !ok {
		return
	}
	respond(w, r, h.logger, h.items.Remove(r.Context(), current), http.StatusNoContent, nil)
}

func (h *ItemHandler) fetch(w http.ResponseWriter, r *http.Request) (model.Item, bool) {
	e, ok := wait(w, r, h.logger, h.items.Fetch(r.Context(), model.ItemID(r.PathValue("id"))))
	if !ok {
		return model.Item{}, false
	}
	return e.(event.ItemFetched).Item, true
}
