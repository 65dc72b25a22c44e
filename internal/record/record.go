// Package record defines the remote-side representation of entities and the
// contract a remote record store must satisfy.
package record

import (
	"maps"
	"slices"
	"time"
)

// Type groups records, e.g. "Item".
type Type string

// Key addresses a record within a zone.
type Key string

const (
	TypeItem  Type = "Item"
	TypeList  Type = "List"
	TypePhoto Type = "Photo"
)

// Record is an opaque persisted entity. ChangeTag, CreatedAt and ModifiedAt
// are owned by the store and must survive every round-trip.
type Record struct {
	Type       Type
	Key        Key
	Fields     map[string]Value
	ChangeTag  string
	CreatedAt  time.Time
	ModifiedAt time.Time

	changed map[string]struct{}
}

// New returns an empty, never-saved record.
func New(t Type, key Key) *Record {
	return &Record{
		Type:   t,
		Key:    key,
		Fields: make(map[string]Value),
	}
}

// Get returns the named field.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

func (r *Record) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// Set stores v under name. The field only counts as changed when the stored
// value actually differs.
func (r *Record) Set(name string, v Value) {
	if r.Fields == nil {
		r.Fields = make(map[string]Value)
	}
	if cur, ok := r.Fields[name]; ok && cur.Equal(v) {
		return
	}
	r.Fields[name] = v
	r.markChanged(name)
}

// Unset removes name. Optional fields are represented by absence.
func (r *Record) Unset(name string) {
	if _, ok := r.Fields[name]; !ok {
		return
	}
	delete(r.Fields, name)
	r.markChanged(name)
}

// Assign stores v under name and always marks it changed, so a changed-keys
// save writes it even when the basis record already held the same value.
func (r *Record) Assign(name string, v Value) {
	if r.Fields == nil {
		r.Fields = make(map[string]Value)
	}
	r.Fields[name] = v
	r.markChanged(name)
}

// Clear removes name and always marks it changed.
func (r *Record) Clear(name string) {
	delete(r.Fields, name)
	r.markChanged(name)
}

func (r *Record) markChanged(name string) {
	if r.changed == nil {
		r.changed = make(map[string]struct{})
	}
	r.changed[name] = struct{}{}
}

// ChangedKeys lists the fields modified since the record was fetched or
// created, sorted for determinism.
func (r *Record) ChangedKeys() []string {
	return slices.Sorted(maps.Keys(r.changed))
}

// ClearChanges forgets change tracking; stores call it on returned records.
func (r *Record) ClearChanges() {
	r.changed = nil
}

// Clone deep-copies the record including system metadata and change tracking.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Fields = make(map[string]Value, len(r.Fields))
	for k, v := range r.Fields {
		c.Fields[k] = v.clone()
	}
	c.changed = maps.Clone(r.changed)
	return &c
}

func (r *Record) String(name string) (string, bool) {
	v, ok := r.Fields[name]
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

func (r *Record) Int(name string) (int64, bool) {
	v, ok := r.Fields[name]
	if !ok || v.Kind != KindInt {
		return 0, false
	}
	return v.Int, true
}

func (r *Record) Time(name string) (time.Time, bool) {
	v, ok := r.Fields[name]
	if !ok || v.Kind != KindTime || v.Time == nil {
		return time.Time{}, false
	}
	return *v.Time, true
}

func (r *Record) Bytes(name string) ([]byte, bool) {
	v, ok := r.Fields[name]
	if !ok || v.Kind != KindBytes {
		return nil, false
	}
	return v.Bytes, true
}

func (r *Record) Strings(name string) ([]string, bool) {
	v, ok := r.Fields[name]
	if !ok || v.Kind != KindStrings {
		return nil, false
	}
	return v.Strings, true
}

func (r *Record) Ref(name string) (Reference, bool) {
	v, ok := r.Fields[name]
	if !ok || v.Kind != KindRef || v.Ref == nil {
		return Reference{}, false
	}
	return *v.Ref, true
}

// Keys returns the keys of records in order.
func Keys(records []*Record) []Key {
	keys := make([]Key, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	return keys
}
