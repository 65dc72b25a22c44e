package repository

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/mapper"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/record"
)

type Lists struct {
	base
}

func NewLists(store record.Store, bus *event.Bus, logger *slog.Logger) *Lists {
	r := &Lists{}
	r.init("lists", record.TypeList, store, bus, logger)
	return r
}

func (r *Lists) FetchAll(ctx context.Context) *Operation {
	return r.run(ctx, event.OpFetchAll, false, func(ctx context.Context) event.Event {
		records, err := r.query(ctx, record.All())
		if err != nil {
			return r.failed(event.OpFetchAll, err)
		}
		lists := mapper.ListsFromRecords(records)
		slices.SortFunc(lists, func(a, b model.List) int {
			return cmp.Or(
				cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
				cmp.Compare(a.ID, b.ID),
			)
		})
		return event.ListsFetched{Lists: lists}
	})
}

func (r *Lists) Fetch(ctx context.Context, id model.ListID) *Operation {
	key := mapper.ListKey(id)
	return r.run(ctx, event.OpFetch, false, func(ctx context.Context) event.Event {
		rec, err := r.fetchOne(ctx, key)
		if err != nil {
			return r.failed(event.OpFetch, err)
		}
		list, ok := mapper.ListFromRecord(rec)
		if !ok {
			return r.noResult(event.OpFetch)
		}
		return event.ListFetched{List: list}
	})
}

func (r *Lists) Add(ctx context.Context, list model.List) *Operation {
	rec := mapper.NewListRecord(list)
	return r.run(ctx, event.OpAdd, true, func(ctx context.Context) event.Event {
		saved, terminal := r.create(ctx, event.OpAdd, rec)
		if terminal != nil {
			return terminal
		}
		added, ok := mapper.ListFromRecord(saved)
		if !ok {
			return r.noResult(event.OpAdd)
		}
		return event.ListAdded{List: added}
	})
}

func (r *Lists) Update(ctx context.Context, list model.List) *Operation {
	key := mapper.ListKey(list.ID)
	return r.run(ctx, event.OpUpdate, true, func(ctx context.Context) event.Event {
		saved, terminal := r.update(ctx, event.OpUpdate, key, func(fetched *record.Record) *record.Record {
			return mapper.UpdateListRecord(fetched, list)
		})
		if terminal != nil {
			return terminal
		}
		updated, ok := mapper.ListFromRecord(saved)
		if !ok {
			return r.noResult(event.OpUpdate)
		}
		return event.ListUpdated{List: updated}
	})
}

// Touch records that the contents of list id changed at the given time.
func (r *Lists) Touch(ctx context.Context, id model.ListID, at time.Time) *Operation {
	key := mapper.ListKey(id)
	return r.run(ctx, event.OpTouch, true, func(ctx context.Context) event.Event {
		saved, terminal := r.update(ctx, event.OpTouch, key, func(fetched *record.Record) *record.Record {
			return mapper.TouchListRecord(fetched, at)
		})
		if terminal != nil {
			return terminal
		}
		touched, ok := mapper.ListFromRecord(saved)
		if !ok {
			return r.noResult(event.OpTouch)
		}
		return event.ListUpdated{List: touched}
	})
}

func (r *Lists) Remove(ctx context.Context, list model.List) *Operation {
	return r.RemoveAll(ctx, []model.List{list})
}

func (r *Lists) RemoveAll(ctx context.Context, lists []model.List) *Operation {
	if len(lists) == 0 {
		return r.resolved(event.OpRemove, r.noResult(event.OpRemove))
	}
	keys := make([]record.Key, len(lists))
	for i, l := range lists {
		keys[i] = mapper.ListKey(l.ID)
	}
	return r.run(ctx, event.OpRemove, true, func(ctx context.Context) event.Event {
		deleted, terminal := r.remove(ctx, event.OpRemove, keys)
		if terminal != nil {
			return terminal
		}
		var removed []model.List
		for i, l := range lists {
			if deleted[keys[i]] {
				removed = append(removed, l)
			}
		}
		return event.ListsRemoved{Lists: removed}
	})
}
