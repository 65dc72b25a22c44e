package record

import (
	"context"
	"errors"
)

var (
	// ErrConflict is returned when a SaveIfUnchanged write finds a different
	// change tag (or an existing record when creating).
	ErrConflict = errors.New("record changed on server")
	// ErrNotFound is returned by stores for missing records where a nil result
	// cannot express it.
	ErrNotFound = errors.New("record not found")
)

// SavePolicy selects how Save merges with the stored record.
type SavePolicy int

const (
	// SaveIfUnchanged fails with ErrConflict unless the stored change tag
	// matches. A record without a change tag must not exist yet.
	SaveIfUnchanged SavePolicy = iota
	// SaveChangedKeys writes only the record's changed keys and leaves every
	// other stored field alone.
	SaveChangedKeys
	// SaveAllKeys overwrites the stored fields with the record's fields.
	SaveAllKeys
)

func (p SavePolicy) String() string {
	switch p {
	case SaveIfUnchanged:
		return "if_unchanged"
	case SaveChangedKeys:
		return "changed_keys"
	case SaveAllKeys:
		return "all_keys"
	default:
		return "unknown"
	}
}

// Predicate filters a query. The zero value matches everything.
type Predicate struct {
	Field string
	Value Value
}

func All() Predicate {
	return Predicate{}
}

func Equal(field string, v Value) Predicate {
	return Predicate{Field: field, Value: v}
}

func (p Predicate) IsAll() bool {
	return p.Field == ""
}

func (p Predicate) Match(r *Record) bool {
	if p.IsAll() {
		return true
	}
	v, ok := r.Fields[p.Field]
	return ok && v.Equal(p.Value)
}

// Store is a remote record store scoped to one zone. Implementations must be
// safe for concurrent use. Returned records are owned by the caller.
type Store interface {
	// Query returns every record of type t matching p.
	Query(ctx context.Context, t Type, p Predicate) ([]*Record, error)
	// FetchByKey returns nil, nil when the key does not exist.
	FetchByKey(ctx context.Context, key Key) (*Record, error)
	// FetchByKeys returns the subset of keys that exist.
	FetchByKeys(ctx context.Context, keys []Key) ([]*Record, error)
	// Save writes records under policy and returns the stored versions.
	Save(ctx context.Context, records []*Record, policy SavePolicy) ([]*Record, error)
	// Delete removes keys and returns only those that existed.
	Delete(ctx context.Context, keys []Key) ([]Key, error)
	// Modify saves and deletes in one batch, atomically when the backend allows.
	Modify(ctx context.Context, save []*Record, del []Key, policy SavePolicy) ([]*Record, []Key, error)
}
