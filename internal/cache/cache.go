// Package cache holds records fetched during a session of related
// repository operations so targeted follow-ups can skip a remote round-trip.
//
// A Cache is not safe for concurrent use; its owning repository serializes
// access.
package cache

import "github.com/dukerupert/shelflife/internal/record"

type Cache struct {
	records map[record.Key]*record.Record
}

func New() *Cache {
	return &Cache{records: make(map[record.Key]*record.Record)}
}

// Set stores records, replacing any entry with the same key.
func (c *Cache) Set(records ...*record.Record) {
	for _, r := range records {
		if r == nil {
			continue
		}
		c.records[r.Key] = r
	}
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	clear(c.records)
}

func (c *Cache) FindByID(key record.Key) *record.Record {
	return c.records[key]
}

// FindByIDs returns the cached subset of keys in request order. Callers
// compare the length against len(keys) to decide whether to go remote.
func (c *Cache) FindByIDs(keys []record.Key) []*record.Record {
	var found []*record.Record
	for _, k := range keys {
		if r, ok := c.records[k]; ok {
			found = append(found, r)
		}
	}
	return found
}

func (c *Cache) RemoveByID(key record.Key) {
	delete(c.records, key)
}

func (c *Cache) RemoveByIDs(keys []record.Key) {
	for _, k := range keys {
		delete(c.records, k)
	}
}

func (c *Cache) Len() int {
	return len(c.records)
}
