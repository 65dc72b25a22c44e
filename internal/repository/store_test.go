package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/shelflife/internal/record"
)

// fakeStore is an in-memory record.Store with failure injection.
type fakeStore struct {
	mu      sync.Mutex
	records map[record.Key]*record.Record
	seq     int

	failQuery  error
	failFetch  error
	failSave   error
	failDelete error
	failModify error

	// keep lists keys whose deletion is silently ignored.
	keep map[record.Key]bool

	// When gate is set, Save signals entered and blocks until gate yields.
	entered chan struct{}
	gate    chan struct{}

	fetchByKey  int
	fetchByKeys [][]record.Key
	saves       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[record.Key]*record.Record),
		keep:    make(map[record.Key]bool),
	}
}

func (s *fakeStore) put(r *record.Record) *record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(r)
}

func (s *fakeStore) putLocked(r *record.Record) *record.Record {
	s.seq++
	out := r.Clone()
	out.ClearChanges()
	out.ChangeTag = fmt.Sprintf("tag-%d", s.seq)
	now := time.Date(2026, 1, 1, 0, 0, s.seq, 0, time.UTC)
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.ModifiedAt = now
	s.records[out.Key] = out
	return out.Clone()
}

func (s *fakeStore) get(key record.Key) *record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		return r.Clone()
	}
	return nil
}

func (s *fakeStore) drop(key record.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

func (s *fakeStore) Query(ctx context.Context, t record.Type, pred record.Predicate) ([]*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failQuery != nil {
		return nil, s.failQuery
	}
	var out []*record.Record
	for _, r := range s.records {
		if r.Type == t && pred.Match(r) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *record.Record) int {
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *fakeStore) FetchByKey(ctx context.Context, key record.Key) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchByKey++
	if s.failFetch != nil {
		return nil, s.failFetch
	}
	if r, ok := s.records[key]; ok {
		return r.Clone(), nil
	}
	return nil, nil
}

func (s *fakeStore) FetchByKeys(ctx context.Context, keys []record.Key) ([]*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchByKeys = append(s.fetchByKeys, slices.Clone(keys))
	if s.failFetch != nil {
		return nil, s.failFetch
	}
	var out []*record.Record
	for _, k := range keys {
		if r, ok := s.records[k]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *fakeStore) Save(ctx context.Context, records []*record.Record, policy record.SavePolicy) ([]*record.Record, error) {
	if s.gate != nil {
		s.entered <- struct{}{}
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failSave != nil {
		return nil, s.failSave
	}
	return s.saveLocked(records, policy)
}

func (s *fakeStore) saveLocked(records []*record.Record, policy record.SavePolicy) ([]*record.Record, error) {
	merged := make([]*record.Record, len(records))
	for i, r := range records {
		m, err := record.Merge(s.records[r.Key], r, policy)
		if err != nil {
			return nil, err
		}
		merged[i] = m
	}
	out := make([]*record.Record, len(merged))
	for i, m := range merged {
		out[i] = s.putLocked(m)
	}
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, keys []record.Key) ([]record.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return nil, s.failDelete
	}
	return s.deleteLocked(keys), nil
}

func (s *fakeStore) deleteLocked(keys []record.Key) []record.Key {
	var deleted []record.Key
	for _, k := range keys {
		if _, ok := s.records[k]; ok && !s.keep[k] {
			delete(s.records, k)
			deleted = append(deleted, k)
		}
	}
	return deleted
}

func (s *fakeStore) Modify(ctx context.Context, save []*record.Record, del []record.Key, policy record.SavePolicy) ([]*record.Record, []record.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failModify != nil {
		return nil, nil, s.failModify
	}
	saved, err := s.saveLocked(save, policy)
	if err != nil {
		return nil, nil, err
	}
	return saved, s.deleteLocked(del), nil
}
