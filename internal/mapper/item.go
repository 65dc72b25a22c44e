package mapper

import (
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/record"
)

func ItemKey(id model.ItemID) record.Key {
	return key(itemPrefix, string(id))
}

func ItemIDFromKey(k record.Key) (model.ItemID, bool) {
	id, ok := idFromKey(itemPrefix, k)
	return model.ItemID(id), ok
}

// NewItemRecord builds a fresh record for an item that has never been saved.
// The item must belong to a list.
func NewItemRecord(item model.Item) *record.Record {
	r := record.New(record.TypeItem, ItemKey(item.ID))
	overlayItem(r, item)
	return r
}

// UpdateItemRecord overlays item onto a clone of a fetched record.
func UpdateItemRecord(fetched *record.Record, item model.Item) *record.Record {
	mustBeType(fetched, record.TypeItem)
	if fetched.Key != ItemKey(item.ID) {
		panic("mapper: item record key does not match item id")
	}
	r := fetched.Clone()
	overlayItem(r, item)
	return r
}

// overlayItem assigns every field the item owns. The basis may be a stale
// cached copy, so equal values are still marked changed.
func overlayItem(r *record.Record, item model.Item) {
	r.Assign(FieldName, record.String(item.Name))
	r.Assign(FieldNotes, record.String(item.Notes))
	if d, ok := item.Expiration.Date(); ok {
		r.Assign(FieldExpiration, record.Time(d))
	} else {
		r.Clear(FieldExpiration)
	}
	r.Assign(FieldList, ListRef(item.ListID))
	alert := item.Alert
	if alert == "" {
		alert = model.AlertNone
	}
	r.Assign(FieldAlert, record.String(string(alert)))

	photos := make([]string, 0, len(item.Photos))
	for _, p := range item.Photos {
		photos = append(photos, string(p))
	}
	r.Assign(FieldPhotos, record.Strings(photos))
}

// ItemFromRecord returns false when r is not a well-formed item record.
func ItemFromRecord(r *record.Record) (model.Item, bool) {
	if r == nil || r.Type != record.TypeItem {
		return model.Item{}, false
	}
	id, ok := ItemIDFromKey(r.Key)
	if !ok {
		return model.Item{}, false
	}
	name, ok := r.String(FieldName)
	if !ok || name == "" {
		return model.Item{}, false
	}
	ref, ok := r.Ref(FieldList)
	if !ok {
		return model.Item{}, false
	}
	listID, ok := ListIDFromKey(ref.Key)
	if !ok {
		return model.Item{}, false
	}

	item := model.Item{
		ID:     id,
		Name:   name,
		ListID: listID,
		Alert:  model.AlertNone,
	}
	item.Notes, _ = r.String(FieldNotes)
	if d, ok := r.Time(FieldExpiration); ok {
		item.Expiration = model.ExpiresOn(d)
	}
	if s, ok := r.String(FieldAlert); ok {
		if a, err := model.ParseAlertOption(s); err == nil {
			item.Alert = a
		}
	}
	if ps, ok := r.Strings(FieldPhotos); ok {
		for _, p := range ps {
			item.Photos = append(item.Photos, model.PhotoID(p))
		}
	}
	return item, true
}

// ItemsFromRecords maps records, silently dropping malformed ones.
func ItemsFromRecords(records []*record.Record) []model.Item {
	items := make([]model.Item, 0, len(records))
	for _, r := range records {
		if item, ok := ItemFromRecord(r); ok {
			items = append(items, item)
		}
	}
	return items
}
