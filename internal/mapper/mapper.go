// Package mapper translates between domain entities and remote records.
//
// Every function is pure. Update* overlays are the only sanctioned way to
// build an update payload: they start from a previously fetched record so
// system metadata and fields this package does not own survive the save.
package mapper

import (
	"fmt"
	"strings"

	"github.com/dukerupert/shelflife/internal/record"
)

const (
	itemPrefix  = "item_"
	listPrefix  = "list_"
	photoPrefix = "photo_"
)

// Field names owned by this package.
const (
	FieldName       = "name"
	FieldNotes      = "notes"
	FieldExpiration = "expiration"
	FieldList       = "list"
	FieldAlert      = "alert"
	FieldPhotos     = "photos"
	FieldUpdatedAt  = "updated_at"
	FieldItem       = "item"
	FieldData       = "data"
	FieldThumbnail  = "thumbnail"
)

func key(prefix, id string) record.Key {
	if id == "" {
		panic("mapper: empty entity id")
	}
	return record.Key(prefix + id)
}

func idFromKey(prefix string, k record.Key) (string, bool) {
	id, ok := strings.CutPrefix(string(k), prefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func mustBeType(r *record.Record, t record.Type) {
	if r == nil {
		panic(fmt.Sprintf("mapper: nil %s record", t))
	}
	if r.Type != t {
		panic(fmt.Sprintf("mapper: expected %s record, got %s (%s)", t, r.Type, r.Key))
	}
}
