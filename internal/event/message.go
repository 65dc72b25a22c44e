package event

import (
	"fmt"

	"github.com/dukerupert/shelflife/internal/model"
)

// Message is the flat, JSON-friendly description of an event sent to
// websocket clients and written to logs.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Describe converts any event into a Message.
func Describe(e Event) Message {
	switch e := e.(type) {
	case ItemsFetched:
		return NewMessage("item", "fetched", string(e.ListID), map[string]any{"items": e.Items})
	case ItemFetched:
		return NewMessage("item", "fetched", string(e.Item.ID), map[string]any{"item": e.Item})
	case ItemAdded:
		return NewMessage("item", "added", string(e.Item.ID), map[string]any{"item": e.Item})
	case ItemUpdated:
		return NewMessage("item", "updated", string(e.Item.ID), map[string]any{"item": e.Item})
	case ItemMoved:
		return NewMessage("item", "moved", string(e.Item.ID), map[string]any{"item": e.Item, "from": e.From, "to": e.To})
	case ItemsRemoved:
		return NewMessage("item", "removed", "", map[string]any{"ids": itemIDs(e.Items)})
	case ListsFetched:
		return NewMessage("list", "fetched", "", map[string]any{"lists": e.Lists})
	case ListFetched:
		return NewMessage("list", "fetched", string(e.List.ID), map[string]any{"list": e.List})
	case ListAdded:
		return NewMessage("list", "added", string(e.List.ID), map[string]any{"list": e.List})
	case ListUpdated:
		return NewMessage("list", "updated", string(e.List.ID), map[string]any{"list": e.List})
	case ListsRemoved:
		ids := make([]model.ListID, 0, len(e.Lists))
		for _, l := range e.Lists {
			ids = append(ids, l.ID)
		}
		return NewMessage("list", "removed", "", map[string]any{"ids": ids})
	case PhotosFetched:
		return NewMessage("photo", "fetched", string(e.ItemID), map[string]any{"count": len(e.Photos)})
	case PhotosChanged:
		return NewMessage("photo", "changed", string(e.ItemID), map[string]any{"saved": photoIDs(e.Saved), "deleted": e.Deleted})
	case PhotosRemoved:
		return NewMessage("photo", "removed", "", map[string]any{"ids": photoIDs(e.Photos)})
	case NoResult:
		return NewMessage("operation", "no_result", "", map[string]any{"op": e.Op.String()})
	case Failed:
		return NewMessage("operation", "failed", "", map[string]any{"op": e.Op.String(), "error": e.Message})
	case RemoteChanged:
		extra := map[string]any{"origin": "remote", "remote_action": string(e.Action)}
		if e.Parent != "" {
			extra["parent"] = string(e.Parent)
		}
		return NewMessage(string(e.Category), "remote_changed", string(e.Key), extra)
	default:
		panic(fmt.Sprintf("event: unhandled event %T", e))
	}
}

func itemIDs(items []model.Item) []model.ItemID {
	ids := make([]model.ItemID, 0, len(items))
	for _, i := range items {
		ids = append(ids, i.ID)
	}
	return ids
}

func photoIDs(photos []model.Photo) []model.PhotoID {
	ids := make([]model.PhotoID, 0, len(photos))
	for _, p := range photos {
		ids = append(ids, p.ID)
	}
	return ids
}
