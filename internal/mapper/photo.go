package mapper

import (
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/record"
)

func PhotoKey(id model.PhotoID) record.Key {
	return key(photoPrefix, string(id))
}

func PhotoIDFromKey(k record.Key) (model.PhotoID, bool) {
	id, ok := idFromKey(photoPrefix, k)
	return model.PhotoID(id), ok
}

// ItemRef is the reference value photo records use to point at their item.
func ItemRef(id model.ItemID) record.Value {
	return record.Ref(record.TypeItem, ItemKey(id))
}

// NewPhotoRecord builds the record for a photo belonging to itemID.
func NewPhotoRecord(p model.PhotoToSave, itemID model.ItemID) *record.Record {
	if len(p.Data) == 0 {
		panic("mapper: photo without data")
	}
	r := record.New(record.TypePhoto, PhotoKey(p.ID))
	r.Set(FieldItem, ItemRef(itemID))
	r.Set(FieldData, record.Bytes(p.Data))
	if len(p.Thumbnail) > 0 {
		r.Set(FieldThumbnail, record.Bytes(p.Thumbnail))
	}
	return r
}

func PhotoFromRecord(r *record.Record) (model.Photo, bool) {
	if r == nil || r.Type != record.TypePhoto {
		return model.Photo{}, false
	}
	id, ok := PhotoIDFromKey(r.Key)
	if !ok {
		return model.Photo{}, false
	}
	ref, ok := r.Ref(FieldItem)
	if !ok {
		return model.Photo{}, false
	}
	itemID, ok := ItemIDFromKey(ref.Key)
	if !ok {
		return model.Photo{}, false
	}
	data, ok := r.Bytes(FieldData)
	if !ok || len(data) == 0 {
		return model.Photo{}, false
	}
	thumb, _ := r.Bytes(FieldThumbnail)
	return model.Photo{ID: id, ItemID: itemID, Data: data, Thumbnail: thumb}, true
}

func PhotosFromRecords(records []*record.Record) []model.Photo {
	photos := make([]model.Photo, 0, len(records))
	for _, r := range records {
		if p, ok := PhotoFromRecord(r); ok {
			photos = append(photos, p)
		}
	}
	return photos
}
