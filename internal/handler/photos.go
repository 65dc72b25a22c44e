package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/repository"
	"github.com/dukerupert/shelflife/internal/thumbnail"
)

type PhotoHandler struct {
	photos *repository.Photos
	items  *repository.Items
	logger *slog.Logger
}

func NewPhotoHandler(photos *repository.Photos, items *repository.Items, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{photos: photos, items: items, logger: logger}
}

// photoInfo describes a photo without its full-size data.
type photoInfo struct {
	ID        model.PhotoID `json:"id"`
	ItemID    model.ItemID  `json:"item_id"`
	Width     int           `json:"width,omitempty"`
	Height    int           `json:"height,omitempty"`
	Thumbnail []byte        `json:"thumbnail"`
}

func describe(p model.Photo) photoInfo {
	info := photoInfo{ID: p.ID, ItemID: p.ItemID, Thumbnail: p.Thumbnail}
	if w, h, err := thumbnail.Dimensions(p.Data); err == nil {
		info.Width, info.Height = w, h
	}
	return info
}

// List handles GET /items/{id}/photos
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	itemID := model.ItemID(r.PathValue("id"))
	respond(w, r, h.logger, h.photos.FetchAll(r.Context(), itemID), http.StatusOK, func(e event.Event) any {
		photos := e.(event.PhotosFetched).Photos
		infos := make([]photoInfo, 0, len(photos))
		for _, p := range photos {
			infos = append(infos, describe(p))
		}
		return infos
	})
}

// Get handles GET /items/{id}/photos/{photo_id}
func (h *PhotoHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(p model.Photo) []byte { return p.Data })
}

// Thumbnail handles GET /items/{id}/photos/{photo_id}/thumbnail
func (h *PhotoHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(p model.Photo) []byte { return p.Thumbnail })
}

func (h *PhotoHandler) serve(w http.ResponseWriter, r *http.Request, pick func(model.Photo) []byte) {
	itemID := model.ItemID(r.PathValue("id"))
	photoID := model.PhotoID(r.PathValue("photo_id"))

	e, ok := wait(w, r, h.logger, h.photos.FetchAll(r.Context(), itemID))
	if !ok {
		return
	}
	photos := e.(event.PhotosFetched).Photos
	i := slices.IndexFunc(photos, func(p model.Photo) bool { return p.ID == photoID })
	if i < 0 {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}

	data := pick(photos[i])
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Upload handles POST /items/{id}/photos. The body is the raw image. The
// photo is saved first, then the item's photo list is updated to name it.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	item, ok := h.item(w, r)
	if !ok {
		return
	}

	photo, err := thumbnail.Prepare(r.Body)
	if err != nil {
		if errors.Is(err, thumbnail.ErrTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
			return
		}
		h.logger.Warn("rejected photo upload", "item", item.ID, "error", err)
		writeError(w, http.StatusBadRequest, "unreadable image")
		return
	}

	cs := model.NewPhotosChangeset(item.ID)
	cs.Save(photo)
	e, ok := wait(w, r, h.logger, h.photos.Apply(r.Context(), cs))
	if !ok {
		return
	}
	changed := e.(event.PhotosChanged)

	ids := append(slices.Clone(item.Photos), photo.ID)
	if _, ok := wait(w, r, h.logger, h.items.Update(r.Context(), item.WithPhotos(ids))); !ok {
		return
	}

	if len(changed.Saved) == 0 {
		writeError(w, http.StatusBadGateway, "photo was not stored")
		return
	}
	writeJSON(w, http.StatusCreated, describe(changed.Saved[0]))
}

// Delete handles DELETE /items/{id}/photos/{photo_id}
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	item, ok := h.item(w, r)
	if !ok {
		return
	}
	photoID := model.PhotoID(r.PathValue("photo_id"))

	cs := model.NewPhotosChangeset(item.ID)
	cs.Delete(photoID)
	if _, ok := wait(w, r, h.logger, h.photos.Apply(r.Context(), cs)); !ok {
		return
	}

	if slices.Contains(item.Photos, photoID) {
		ids := slices.DeleteFunc(slices.Clone(item.Photos), func(id model.PhotoID) bool { return id == photoID })
		if _, ok := wait(w, r, h.logger, h.items.Update(r.Context(), item.WithPhotos(ids))); !ok {
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PhotoHandler) item(w http.ResponseWriter, r *http.Request) (model.Item, bool) {
	e, ok := wait(w, r, h.logger, h.items.Fetch(r.Context(), model.ItemID(r.PathValue("id"))))
	if !ok {
		return model.Item{}, false
	}
	return e.(event.ItemFetched).Item, true
}
