package repository

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/shelflife/internal/cache"
	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/record"
)

// base holds what every repository shares: the store, the bus, a session
// cache guarded by mu, and the in-flight table of mutations.
//
// A mutation started under a kind that is already in flight queues behind
// the running one and starts when it completes. Nothing is ever cancelled,
// so each queued call still ends with its own terminal event. Reads are not
// queued.
type base struct {
	name   string
	typ    record.Type
	store  record.Store
	bus    *event.Bus
	logger *slog.Logger

	mu       sync.Mutex
	cache    *cache.Cache
	inflight map[string]*Operation
}

func (b *base) init(name string, typ record.Type, store record.Store, bus *event.Bus, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	b.name = name
	b.typ = typ
	b.store = store
	b.bus = bus
	b.logger = logger.With("component", name)
	b.cache = cache.New()
	b.inflight = make(map[string]*Operation)
}

// InFlight reports whether a mutation of the given kind is running or queued.
func (b *base) InFlight(kind string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.inflight[kind]
	return ok
}

func (b *base) op(kind string) event.Op {
	return event.Op{Repository: b.name, Kind: kind}
}

// run executes fn in the background and publishes its result as the
// operation's single terminal event. The caller's ctx contributes values
// only: once started an operation always runs to completion.
func (b *base) run(ctx context.Context, kind string, mutation bool, fn func(ctx context.Context) event.Event) *Operation {
	op := newOperation(b.op(kind))
	ctx = context.WithoutCancel(ctx)

	var prev *Operation
	if mutation {
		b.mu.Lock()
		prev = b.inflight[kind]
		b.inflight[kind] = op
		b.mu.Unlock()
	}

	go func() {
		if prev != nil {
			<-prev.Done()
		}
		e := fn(ctx)
		if mutation {
			b.mu.Lock()
			if b.inflight[kind] == op {
				delete(b.inflight, kind)
			}
			b.mu.Unlock()
		}
		op.resolve(b.bus, e)
	}()
	return op
}

// resolved returns an already completed operation, for calls with nothing to do.
func (b *base) resolved(kind string, e event.Event) *Operation {
	op := newOperation(b.op(kind))
	op.resolve(b.bus, e)
	return op
}

func (b *base) failed(kind string, err error) event.Event {
	b.logger.Warn("remote operation failed", "op", b.op(kind).String(), "error", err)
	return event.Failed{Op: b.op(kind), Message: err.Error()}
}

func (b *base) noResult(kind string) event.Event {
	return event.NoResult{Op: b.op(kind)}
}

// outcome maps a store error: a record that vanished on the server is a
// no-result, anything else a failure.
func (b *base) outcome(kind string, err error) event.Event {
	if errors.Is(err, record.ErrNotFound) {
		return b.noResult(kind)
	}
	return b.failed(kind, err)
}

func (b *base) cached(key record.Key) *record.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.FindByID(key)
}

func (b *base) cachedMany(keys []record.Key) []*record.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.FindByIDs(keys)
}

func (b *base) remember(records ...*record.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Set(records...)
}

// replace invalidates the cache before repopulating it so records removed
// by other clients are not served again.
func (b *base) replace(records []*record.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Invalidate()
	b.cache.Set(records...)
}

func (b *base) forget(keys ...record.Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.RemoveByIDs(keys)
}

// fetchOne returns the cached record for key or fetches it remotely.
func (b *base) fetchOne(ctx context.Context, key record.Key) (*record.Record, error) {
	if r := b.cached(key); r != nil {
		return r, nil
	}
	r, err := b.store.FetchByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if r != nil {
		b.remember(r)
	}
	return r, nil
}

// fetchMany satisfies keys from the cache and fetches whatever is missing.
func (b *base) fetchMany(ctx context.Context, keys []record.Key) ([]*record.Record, error) {
	found := b.cachedMany(keys)
	if len(found) == len(keys) {
		return found, nil
	}

	have := make(map[record.Key]bool, len(found))
	for _, r := range found {
		have[r.Key] = true
	}
	var missing []record.Key
	for _, k := range keys {
		if !have[k] {
			missing = append(missing, k)
		}
	}

	fetched, err := b.store.FetchByKeys(ctx, missing)
	if err != nil {
		return nil, err
	}
	b.remember(fetched...)
	return append(found, fetched...), nil
}

// query runs a remote query for the repository's type and replaces the
// cache with the result. A failed query leaves the cache untouched.
func (b *base) query(ctx context.Context, pred record.Predicate) ([]*record.Record, error) {
	records, err := b.store.Query(ctx, b.typ, pred)
	if err != nil {
		return nil, err
	}
	b.replace(records)
	return records, nil
}

// update is the read-before-write protocol: the basis record comes from the
// cache or the store, the overlay is applied to it and only changed fields
// are saved. It returns either the saved record or the terminal event.
func (b *base) update(ctx context.Context, kind string, key record.Key, overlay func(fetched *record.Record) *record.Record) (*record.Record, event.Event) {
	fetched, err := b.fetchOne(ctx, key)
	if err != nil {
		return nil, b.failed(kind, err)
	}
	if fetched == nil || fetched.Type != b.typ {
		return nil, b.noResult(kind)
	}

	saved, err := b.store.Save(ctx, []*record.Record{overlay(fetched)}, record.SaveChangedKeys)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			b.forget(key)
		}
		return nil, b.outcome(kind, err)
	}
	r := savedRecord(saved, key)
	if r == nil {
		return nil, b.noResult(kind)
	}
	b.remember(r)
	return r, nil
}

// create saves a brand new record. The change-tag check makes the save fail
// rather than overwrite an existing record with the same key.
func (b *base) create(ctx context.Context, kind string, rec *record.Record) (*record.Record, event.Event) {
	saved, err := b.store.Save(ctx, []*record.Record{rec}, record.SaveIfUnchanged)
	if err != nil {
		return nil, b.failed(kind, err)
	}
	r := savedRecord(saved, rec.Key)
	if r == nil {
		return nil, b.noResult(kind)
	}
	b.remember(r)
	return r, nil
}

// remove deletes keys and returns the subset that actually existed.
func (b *base) remove(ctx context.Context, kind string, keys []record.Key) (map[record.Key]bool, event.Event) {
	deleted, err := b.store.Delete(ctx, keys)
	if err != nil {
		return nil, b.failed(kind, err)
	}
	b.forget(deleted...)
	if len(deleted) == 0 {
		return nil, b.noResult(kind)
	}
	return keySet(deleted), nil
}

// savedRecord picks the stored version of key out of a save result.
func savedRecord(saved []*record.Record, key record.Key) *record.Record {
	for _, r := range saved {
		if r != nil && r.Key == key {
			return r
		}
	}
	return nil
}

func keySet(keys []record.Key) map[record.Key]bool {
	set := make(map[record.Key]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
