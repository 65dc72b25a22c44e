package record

import "fmt"

// Merge computes the record a store should persist when incoming is saved
// over stored (nil when absent) under policy. The result carries stored's
// system metadata; the caller assigns a fresh change tag and timestamps.
func Merge(stored, incoming *Record, policy SavePolicy) (*Record, error) {
	if stored == nil {
		// A change tag means the record was fetched earlier and has since
		// been deleted; recreating it would resurrect a removed entity.
		if incoming.ChangeTag != "" {
			return nil, fmt.Errorf("save %s: %w", incoming.Key, ErrNotFound)
		}
		out := incoming.Clone()
		out.ChangeTag = ""
		out.ClearChanges()
		return out, nil
	}
	if stored.Type != incoming.Type {
		return nil, fmt.Errorf("save %s: type %s does not match stored %s: %w", incoming.Key, incoming.Type, stored.Type, ErrConflict)
	}

	switch policy {
	case SaveIfUnchanged:
		if incoming.ChangeTag == "" || incoming.ChangeTag != stored.ChangeTag {
			return nil, fmt.Errorf("save %s: %w", incoming.Key, ErrConflict)
		}
		out := incoming.Clone()
		out.CreatedAt = stored.CreatedAt
		out.ClearChanges()
		return out, nil
	case SaveChangedKeys:
		out := stored.Clone()
		for _, name := range incoming.ChangedKeys() {
			if v, ok := incoming.Fields[name]; ok {
				out.Fields[name] = v.clone()
			} else {
				delete(out.Fields, name)
			}
		}
		out.ClearChanges()
		return out, nil
	case SaveAllKeys:
		out := incoming.Clone()
		out.ChangeTag = stored.ChangeTag
		out.CreatedAt = stored.CreatedAt
		out.ClearChanges()
		return out, nil
	default:
		return nil, fmt.Errorf("save %s: unknown policy %d", incoming.Key, policy)
	}
}
