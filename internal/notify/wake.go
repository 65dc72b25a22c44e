package notify

import (
	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/mapper"
	"github.com/dukerupert/shelflife/internal/model"
)

// WakesFor lists the payloads other devices need to hear about a local
// change. Fetches and terminal non-success events produce none, as do
// RemoteChanged events so wakes are never echoed.
func WakesFor(e event.Event) []Wake {
	switch e := e.(type) {
	case event.ItemAdded:
		return []Wake{itemWake(e.Item, event.ActionCreated)}
	case event.ItemUpdated:
		return []Wake{itemWake(e.Item, event.ActionUpdated)}
	case event.ItemMoved:
		return []Wake{itemWake(e.Item, event.ActionUpdated)}
	case event.ItemsRemoved:
		wakes := make([]Wake, 0, len(e.Items))
		for _, it := range e.Items {
			wakes = append(wakes, itemWake(it, event.ActionDeleted))
		}
		return wakes
	case event.ListAdded:
		return []Wake{listWake(e.List, event.ActionCreated)}
	case event.ListUpdated:
		return []Wake{listWake(e.List, event.ActionUpdated)}
	case event.ListsRemoved:
		wakes := make([]Wake, 0, len(e.Lists))
		for _, l := range e.Lists {
			wakes = append(wakes, listWake(l, event.ActionDeleted))
		}
		return wakes
	case event.PhotosChanged:
		wakes := make([]Wake, 0, len(e.Saved)+len(e.Deleted))
		for _, p := range e.Saved {
			wakes = append(wakes, photoWake(p.ID, e.ItemID, event.ActionUpdated))
		}
		for _, id := range e.Deleted {
			wakes = append(wakes, photoWake(id, e.ItemID, event.ActionDeleted))
		}
		return wakes
	case event.PhotosRemoved:
		wakes := make([]Wake, 0, len(e.Photos))
		for _, p := range e.Photos {
			wakes = append(wakes, photoWake(p.ID, p.ItemID, event.ActionDeleted))
		}
		return wakes
	default:
		return nil
	}
}

func itemWake(it model.Item, a event.Action) Wake {
	w := Wake{Category: string(event.CategoryItem), Action: string(a), Key: string(mapper.ItemKey(it.ID))}
	if it.ListID != "" {
		w.Parent = string(mapper.ListKey(it.ListID))
	}
	return w
}

func listWake(l model.List, a event.Action) Wake {
	return Wake{Category: string(event.CategoryList), Action: string(a), Key: string(mapper.ListKey(l.ID))}
}

func photoWake(id model.PhotoID, itemID model.ItemID, a event.Action) Wake {
	w := Wake{Category: string(event.CategoryPhoto), Action: string(a), Key: string(mapper.PhotoKey(id))}
	if itemID != "" {
		w.Parent = string(mapper.ItemKey(itemID))
	}
	return w
}
