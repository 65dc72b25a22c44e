package repository

import (
	"context"
	"log/slog"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/mapper"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/record"
)

type Items struct {
	base
}

func NewItems(store record.Store, bus *event.Bus, logger *slog.Logger) *Items {
	r := &Items{}
	r.init("items", record.TypeItem, store, bus, logger)
	return r
}

// FetchAll loads every item of listID, or every item at all when listID is
// empty, and publishes ItemsFetched.
func (r *Items) FetchAll(ctx context.Context, listID model.ListID) *Operation {
	pred := record.All()
	if listID != "" {
		pred = record.Equal(mapper.FieldList, mapper.ListRef(listID))
	}
	return r.run(ctx, event.OpFetchAll, false, func(ctx context.Context) event.Event {
		records, err := r.query(ctx, pred)
		if err != nil {
			return r.failed(event.OpFetchAll, err)
		}
		items := mapper.ItemsFromRecords(records)
		model.SortItems(items)
		return event.ItemsFetched{ListID: listID, Items: items}
	})
}

func (r *Items) Fetch(ctx context.Context, id model.ItemID) *Operation {
	key := mapper.ItemKey(id)
	return r.run(ctx, event.OpFetch, false, func(ctx context.Context) event.Event {
		rec, err := r.fetchOne(ctx, key)
		if err != nil {
			return r.failed(event.OpFetch, err)
		}
		item, ok := mapper.ItemFromRecord(rec)
		if !ok {
			return r.noResult(event.OpFetch)
		}
		return event.ItemFetched{Item: item}
	})
}

// FetchMany resolves ids from the cache and fetches whichever are missing.
// Items that no longer exist are left out of the ItemsFetched result.
func (r *Items) FetchMany(ctx context.Context, ids []model.ItemID) *Operation {
	if len(ids) == 0 {
		return r.resolved(event.OpFetch, r.noResult(event.OpFetch))
	}
	keys := make([]record.Key, len(ids))
	for i, id := range ids {
		keys[i] = mapper.ItemKey(id)
	}
	return r.run(ctx, event.OpFetch, false, func(ctx context.Context) event.Event {
		records, err := r.fetchMany(ctx, keys)
		if err != nil {
			return r.failed(event.OpFetch, err)
		}
		items := mapper.ItemsFromRecords(records)
		if len(items) == 0 {
			return r.noResult(event.OpFetch)
		}
		model.SortItems(items)
		return event.ItemsFetched{Items: items}
	})
}

// Add creates item. The published item is rebuilt from the stored record.
func (r *Items) Add(ctx context.Context, item model.Item) *Operation {
	rec := mapper.NewItemRecord(item)
	return r.run(ctx, event.OpAdd, true, func(ctx context.Context) event.Event {
		saved, terminal := r.create(ctx, event.OpAdd, rec)
		if terminal != nil {
			return terminal
		}
		added, ok := mapper.ItemFromRecord(saved)
		if !ok {
			return r.noResult(event.OpAdd)
		}
		return event.ItemAdded{Item: added}
	})
}

func (r *Items) Update(ctx context.Context, item model.Item) *Operation {
	key := mapper.ItemKey(item.ID)
	if item.ListID == "" {
		panic("repository: item without a list")
	}
	return r.run(ctx, event.OpUpdate, true, func(ctx context.Context) event.Event {
		saved, terminal := r.update(ctx, event.OpUpdate, key, func(fetched *record.Record) *record.Record {
			return mapper.UpdateItemRecord(fetched, item)
		})
		if terminal != nil {
			return terminal
		}
		updated, ok := mapper.ItemFromRecord(saved)
		if !ok {
			return r.noResult(event.OpUpdate)
		}
		return event.ItemUpdated{Item: updated}
	})
}

// Move is an update of the owning list. It publishes ItemMoved so
// subscribers can tell a relocation from an edit.
func (r *Items) Move(ctx context.Context, item model.Item, to model.ListID) *Operation {
	key := mapper.ItemKey(item.ID)
	if to == "" {
		panic("repository: move to an empty list id")
	}
	moved := item.WithList(to)
	return r.run(ctx, event.OpMove, true, func(ctx context.Context) event.Event {
		from := item.ListID
		saved, terminal := r.update(ctx, event.OpMove, key, func(fetched *record.Record) *record.Record {
			if ref, ok := fetched.Ref(mapper.FieldList); ok {
				if id, ok := mapper.ListIDFromKey(ref.Key); ok {
					from = id
				}
			}
			return mapper.UpdateItemRecord(fetched, moved)
		})
		if terminal != nil {
			return terminal
		}
		updated, ok := mapper.ItemFromRecord(saved)
		if !ok {
			return r.noResult(event.OpMove)
		}
		return event.ItemMoved{Item: updated, From: from, To: to}
	})
}

func (r *Items) Remove(ctx context.Context, item model.Item) *Operation {
	return r.RemoveAll(ctx, []model.Item{item})
}

// RemoveAll deletes items and publishes ItemsRemoved with only those the
// store actually deleted.
func (r *Items) RemoveAll(ctx context.Context, items []model.Item) *Operation {
	if len(items) == 0 {
		return r.resolved(event.OpRemove, r.noResult(event.OpRemove))
	}
	keys := make([]record.Key, len(items))
	for i, item := range items {
		keys[i] = mapper.ItemKey(item.ID)
	}
	return r.run(ctx, event.OpRemove, true, func(ctx context.Context) event.Event {
		deleted, terminal := r.remove(ctx, event.OpRemove, keys)
		if terminal != nil {
			return terminal
		}
		var removed []model.Item
		for i, item := range items {
			if deleted[keys[i]] {
				removed = append(removed, item)
			}
		}
		return event.ItemsRemoved{Items: removed}
	})
}

// RemoveByList deletes every item that belongs to listID. It is used to
// clean up after a list has been removed.
func (r *Items) RemoveByList(ctx context.Context, listID model.ListID) *Operation {
	pred := record.Equal(mapper.FieldList, mapper.ListRef(listID))
	return r.run(ctx, event.OpRemove, true, func(ctx context.Context) event.Event {
		records, err := r.store.Query(ctx, record.TypeItem, pred)
		if err != nil {
			return r.failed(event.OpRemove, err)
		}
		if len(records) == 0 {
			return r.noResult(event.OpRemove)
		}
		deleted, terminal := r.remove(ctx, event.OpRemove, record.Keys(records))
		if terminal != nil {
			return terminal
		}
		var removed []model.Item
		for _, item := range mapper.ItemsFromRecords(records) {
			if deleted[mapper.ItemKey(item.ID)] {
				removed = append(removed, item)
			}
		}
		return event.ItemsRemoved{Items: removed}
	})
}
