// Package listener holds bus subscribers that keep entities consistent with
// each other: list timestamps follow item edits, removals cascade, and
// remote changes trigger refreshes.
package listener

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/mapper"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/repository"
)

// run feeds events from sub to handle until ctx ends or sub is closed.
func run(ctx context.Context, sub *event.Subscription, handle func(context.Context, event.Event)) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			handle(ctx, e)
		}
	}
}

// ListTouch bumps a list's last-update time whenever one of its items is
// added, edited, moved or removed. A move touches both lists.
type ListTouch struct {
	lists  *repository.Lists
	now    func() time.Time
	logger *slog.Logger
}

func NewListTouch(lists *repository.Lists, logger *slog.Logger) *ListTouch {
	return &ListTouch{lists: lists, now: time.Now, logger: logger.With("component", "list_touch")}
}

func (l *ListTouch) Run(ctx context.Context, sub *event.Subscription) {
	run(ctx, sub, l.Handle)
}

// Handle starts one touch per affected list and returns without waiting.
func (l *ListTouch) Handle(ctx context.Context, e event.Event) {
	var ids []model.ListID
	switch e := e.(type) {
	case event.ItemAdded:
		ids = append(ids, e.Item.ListID)
	case event.ItemUpdated:
		ids = append(ids, e.Item.ListID)
	case event.ItemMoved:
		ids = append(ids, e.From, e.To)
	case event.ItemsRemoved:
		for _, it := range e.Items {
			ids = append(ids, it.ListID)
		}
	default:
		return
	}

	at := l.now()
	seen := make(map[model.ListID]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		l.logger.Debug("touching list", "list", id)
		l.lists.Touch(ctx, id, at)
	}
}

// Cascade removes the items of removed lists and the photos of removed items.
type Cascade struct {
	items  *repository.Items
	photos *repository.Photos
	logger *slog.Logger
}

func NewCascade(items *repository.Items, photos *repository.Photos, logger *slog.Logger) *Cascade {
	return &Cascade{items: items, photos: photos, logger: logger.With("component", "cascade")}
}

func (c *Cascade) Run(ctx context.Context, sub *event.Subscription) {
	run(ctx, sub, c.Handle)
}

func (c *Cascade) Handle(ctx context.Context, e event.Event) {
	switch e := e.(type) {
	case event.ListsRemoved:
		for _, l := range e.Lists {
			c.logger.Debug("removing items of list", "list", l.ID)
			c.items.RemoveByList(ctx, l.ID)
		}
	case event.ItemsRemoved:
		ids := make([]model.ItemID, 0, len(e.Items))
		for _, it := range e.Items {
			ids = append(ids, it.ID)
		}
		if len(ids) > 0 {
			c.photos.RemoveForItems(ctx, ids)
		}
	}
}

// RemoteRefresh refetches whatever another device reported as changed.
type RemoteRefresh struct {
	items  *repository.Items
	lists  *repository.Lists
	photos *repository.Photos
	logger *slog.Logger
}

func NewRemoteRefresh(items *repository.Items, lists *repository.Lists, photos *repository.Photos, logger *slog.Logger) *RemoteRefresh {
	return &RemoteRefresh{items: items, lists: lists, photos: photos, logger: logger.With("component", "remote_refresh")}
}

func (r *RemoteRefresh) Run(ctx context.Context, sub *event.Subscription) {
	run(ctx, sub, r.Handle)
}

func (r *RemoteRefresh) Handle(ctx context.Context, e event.Event) {
	rc, ok := e.(event.RemoteChanged)
	if !ok {
		return
	}
	r.logger.Debug("remote change", "category", rc.Category, "action", rc.Action, "key", rc.Key)

	switch rc.Category {
	case event.CategoryItem:
		// Without a parent the whole collection is refreshed.
		listID, _ := mapper.ListIDFromKey(rc.Parent)
		r.items.FetchAll(ctx, listID)
	case event.CategoryList:
		r.lists.FetchAll(ctx)
	case event.CategoryPhoto:
		if itemID, ok := mapper.ItemIDFromKey(rc.Parent); ok {
			r.photos.FetchAll(ctx, itemID)
		}
	}
}
