package repository

import (
	"context"
	"log/slog"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/mapper"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/record"
)

type Photos struct {
	base
}

func NewPhotos(store record.Store, bus *event.Bus, logger *slog.Logger) *Photos {
	r := &Photos{}
	r.init("photos", record.TypePhoto, store, bus, logger)
	return r
}

// FetchAll loads the photos attached to itemID.
func (r *Photos) FetchAll(ctx context.Context, itemID model.ItemID) *Operation {
	pred := record.Equal(mapper.FieldItem, mapper.ItemRef(itemID))
	return r.run(ctx, event.OpFetchAll, false, func(ctx context.Context) event.Event {
		records, err := r.query(ctx, pred)
		if err != nil {
			return r.failed(event.OpFetchAll, err)
		}
		return event.PhotosFetched{ItemID: itemID, Photos: mapper.PhotosFromRecords(records)}
	})
}

// Apply persists a changeset in one atomic modify call. Photo records are
// owned entirely by this repository, so saves overwrite all fields.
func (r *Photos) Apply(ctx context.Context, cs *model.PhotosChangeset) *Operation {
	if cs == nil || cs.IsEmpty() {
		return r.resolved(event.OpApply, r.noResult(event.OpApply))
	}
	itemID := cs.ItemID
	var save []*record.Record
	for _, p := range cs.ToSave() {
		save = append(save, mapper.NewPhotoRecord(p, itemID))
	}
	var del []record.Key
	for _, id := range cs.ToDelete() {
		del = append(del, mapper.PhotoKey(id))
	}

	return r.run(ctx, event.OpApply, true, func(ctx context.Context) event.Event {
		saved, deleted, err := r.store.Modify(ctx, save, del, record.SaveAllKeys)
		if err != nil {
			return r.failed(event.OpApply, err)
		}
		r.remember(saved...)
		r.forget(deleted...)

		changed := event.PhotosChanged{ItemID: itemID, Saved: mapper.PhotosFromRecords(saved)}
		for _, k := range deleted {
			if id, ok := mapper.PhotoIDFromKey(k); ok {
				changed.Deleted = append(changed.Deleted, id)
			}
		}
		if len(changed.Saved) == 0 && len(changed.Deleted) == 0 {
			return r.noResult(event.OpApply)
		}
		return changed
	})
}

func (r *Photos) RemoveAll(ctx context.Context, photos []model.Photo) *Operation {
	if len(photos) == 0 {
		return r.resolved(event.OpRemove, r.noResult(event.OpRemove))
	}
	keys := make([]record.Key, len(photos))
	for i, p := range photos {
		keys[i] = mapper.PhotoKey(p.ID)
	}
	return r.run(ctx, event.OpRemove, true, func(ctx context.Context) event.Event {
		deleted, terminal := r.remove(ctx, event.OpRemove, keys)
		if terminal != nil {
			return terminal
		}
		var removed []model.Photo
		for i, p := range photos {
			if deleted[keys[i]] {
				removed = append(removed, p)
			}
		}
		return event.PhotosRemoved{Photos: removed}
	})
}

// RemoveForItems deletes the photos of every item in itemIDs.
func (r *Photos) RemoveForItems(ctx context.Context, itemIDs []model.ItemID) *Operation {
	if len(itemIDs) == 0 {
		return r.resolved(event.OpRemove, r.noResult(event.OpRemove))
	}
	preds := make([]record.Predicate, len(itemIDs))
	for i, id := range itemIDs {
		preds[i] = record.Equal(mapper.FieldItem, mapper.ItemRef(id))
	}
	return r.run(ctx, event.OpRemove, true, func(ctx context.Context) event.Event {
		var records []*record.Record
		for _, pred := range preds {
			found, err := r.store.Query(ctx, record.TypePhoto, pred)
			if err != nil {
				return r.failed(event.OpRemove, err)
			}
			records = append(records, found...)
		}
		if len(records) == 0 {
			return r.noResult(event.OpRemove)
		}
		deleted, terminal := r.remove(ctx, event.OpRemove, record.Keys(records))
		if terminal != nil {
			return terminal
		}
		var removed []model.Photo
		for _, p := range mapper.PhotosFromRecords(records) {
			if deleted[mapper.PhotoKey(p.ID)] {
				removed = append(removed, p)
			}
		}
		return event.PhotosRemoved{Photos: removed}
	})
}
