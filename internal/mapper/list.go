package mapper

import (
	"time"

	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/record"
)

func ListKey(id model.ListID) record.Key {
	return key(listPrefix, string(id))
}

func ListIDFromKey(k record.Key) (model.ListID, bool) {
	id, ok := idFromKey(listPrefix, k)
	return model.ListID(id), ok
}

// ListRef is the reference value item records use to point at their list.
func ListRef(id model.ListID) record.Value {
	return record.Ref(record.TypeList, ListKey(id))
}

func NewListRecord(list model.List) *record.Record {
	r := record.New(record.TypeList, ListKey(list.ID))
	overlayList(r, list)
	return r
}

func UpdateListRecord(fetched *record.Record, list model.List) *record.Record {
	mustBeType(fetched, record.TypeList)
	if fetched.Key != ListKey(list.ID) {
		panic("mapper: list record key does not match list id")
	}
	r := fetched.Clone()
	overlayList(r, list)
	return r
}

// TouchListRecord sets only the last-update timestamp on a clone of fetched.
func TouchListRecord(fetched *record.Record, at time.Time) *record.Record {
	mustBeType(fetched, record.TypeList)
	r := fetched.Clone()
	r.Assign(FieldUpdatedAt, record.Time(at))
	return r
}

func overlayList(r *record.Record, list model.List) {
	r.Assign(FieldName, record.String(list.Name))
	if !list.UpdatedAt.IsZero() {
		r.Assign(FieldUpdatedAt, record.Time(list.UpdatedAt))
	}
}

func ListFromRecord(r *record.Record) (model.List, bool) {
	if r == nil || r.Type != record.TypeList {
		return model.List{}, false
	}
	id, ok := ListIDFromKey(r.Key)
	if !ok {
		return model.List{}, false
	}
	name, ok := r.String(FieldName)
	if !ok || name == "" {
		return model.List{}, false
	}
	list := model.List{ID: id, Name: name}
	if t, ok := r.Time(FieldUpdatedAt); ok {
		list.UpdatedAt = t
	} else {
		list.UpdatedAt = r.ModifiedAt
	}
	return list, true
}

func ListsFromRecords(records []*record.Record) []model.List {
	lists := make([]model.List, 0, len(records))
	for _, r := range records {
		if l, ok := ListFromRecord(r); ok {
			lists = append(lists, l)
		}
	}
	return lists
}
