package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/shelflife/internal/database"
	"github.com/dukerupert/shelflife/internal/record"
)

func setupRecordTestDB(t *testing.T, zone string) *RecordStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRecordStore(db, database.SQLite, zone)
}

func setupRecordFileDB(t *testing.T, zone string) *RecordStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "shelflife.db"))
	if err != nil {
		t.Fatalf("open file db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRecordStore(db, database.SQLite, zone)
}

func itemRecord(key, name, list string) *record.Record {
	r := record.New(record.TypeItem, record.Key(key))
	r.Set("name", record.String(name))
	r.Set("list", record.Ref(record.TypeList, record.Key(list)))
	return r
}

func saveOne(t *testing.T, s *RecordStore, r *record.Record, policy record.SavePolicy) *record.Record {
	t.Helper()
	saved, err := s.Save(context.Background(), []*record.Record{r}, policy)
	if err != nil {
		t.Fatalf("save %s: %v", r.Key, err)
	}
	if len(saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(saved))
	}
	return saved[0]
}

func TestSaveAssignsMetadata(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	fixed := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	saved := saveOne(t, s, itemRecord("item_1", "Milk", "list_a"), record.SaveIfUnchanged)
	if saved.ChangeTag == "" {
		t.Error("expected a change tag")
	}
	if !saved.CreatedAt.Equal(fixed) || !saved.ModifiedAt.Equal(fixed) {
		t.Errorf("timestamps = %v / %v", saved.CreatedAt, saved.ModifiedAt)
	}

	got, err := s.FetchByKey(context.Background(), "item_1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.ChangeTag != saved.ChangeTag {
		t.Errorf("tag = %q, want %q", got.ChangeTag, saved.ChangeTag)
	}
	if name, _ := got.String("name"); name != "Milk" {
		t.Errorf("name = %q", name)
	}
	ref, ok := got.Ref("list")
	if !ok || ref.Key != "list_a" {
		t.Errorf("list ref = %+v", ref)
	}
}

func TestFetchByKeyMissing(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	got, err := s.FetchByKey(context.Background(), "item_nope")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSaveIfUnchangedRejectsStaleTag(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	ctx := context.Background()
	first := saveOne(t, s, itemRecord("item_1", "Milk", "list_a"), record.SaveIfUnchanged)

	stale := first.Clone()
	stale.ChangeTag = "old"
	stale.Set("name", record.String("Cream"))
	_, err := s.Save(ctx, []*record.Record{stale}, record.SaveIfUnchanged)
	if !errors.Is(err, record.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// A duplicate create conflicts too.
	if _, err := s.Save(ctx, []*record.Record{itemRecord("item_1", "Milk", "list_a")}, record.SaveIfUnchanged); !errors.Is(err, record.ErrConflict) {
		t.Errorf("duplicate create err = %v, want ErrConflict", err)
	}
}

func TestSaveChangedKeysMergesFields(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	ctx := context.Background()
	base := itemRecord("item_1", "Milk", "list_a")
	base.Set("barcode", record.String("123"))
	saved := saveOne(t, s, base, record.SaveIfUnchanged)

	// Another client changes the barcode after our read.
	other := saved.Clone()
	other.Set("barcode", record.String("456"))
	saveOne(t, s, other, record.SaveChangedKeys)

	mine := saved.Clone()
	mine.Set("name", record.String("Oat milk"))
	saveOne(t, s, mine, record.SaveChangedKeys)

	got, _ := s.FetchByKey(ctx, "item_1")
	if name, _ := got.String("name"); name != "Oat milk" {
		t.Errorf("name = %q", name)
	}
	if code, _ := got.String("barcode"); code != "456" {
		t.Errorf("barcode = %q, want the concurrent write kept", code)
	}
}

func TestSaveRollsBackBatchOnConflict(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	ctx := context.Background()
	saveOne(t, s, itemRecord("item_1", "Milk", "list_a"), record.SaveIfUnchanged)

	batch := []*record.Record{
		itemRecord("item_2", "Eggs", "list_a"),
		itemRecord("item_1", "Milk", "list_a"),
	}
	if _, err := s.Save(ctx, batch, record.SaveIfUnchanged); err == nil {
		t.Fatal("expected conflict")
	}
	if got, _ := s.FetchByKey(ctx, "item_2"); got != nil {
		t.Error("partial batch was committed")
	}
}

func TestQueryFiltersByTypeZoneAndPredicate(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	ctx := context.Background()
	saveOne(t, s, itemRecord("item_1", "Milk", "list_a"), record.SaveIfUnchanged)
	saveOne(t, s, itemRecord("item_2", "Rice", "list_b"), record.SaveIfUnchanged)
	list := record.New(record.TypeList, "list_a")
	list.Set("name", record.String("Fridge"))
	saveOne(t, s, list, record.SaveIfUnchanged)

	other := NewRecordStore(s.db, database.SQLite, "cabin")
	saveOne(t, other, itemRecord("item_3", "Beans", "list_a"), record.SaveIfUnchanged)

	all, err := s.Query(ctx, record.TypeItem, record.All())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("items = %d, want 2", len(all))
	}

	scoped, err := s.Query(ctx, record.TypeItem, record.Equal("list", record.Ref(record.TypeList, "list_a")))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Key != "item_1" {
		t.Errorf("scoped = %v", record.Keys(scoped))
	}
}

func TestFetchByKeysKeepsRequestOrder(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	saveOne(t, s, itemRecord("item_1", "Milk", "list_a"), record.SaveIfUnchanged)
	saveOne(t, s, itemRecord("item_2", "Eggs", "list_a"), record.SaveIfUnchanged)

	got, err := s.FetchByKeys(context.Background(), []record.Key{"item_2", "item_9", "item_1"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	keys := record.Keys(got)
	if len(keys) != 2 || keys[0] != "item_2" || keys[1] != "item_1" {
		t.Errorf("keys = %v", keys)
	}
}

func TestDeleteReportsExistingKeys(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	saveOne(t, s, itemRecord("item_1", "Milk", "list_a"), record.SaveIfUnchanged)

	deleted, err := s.Delete(context.Background(), []record.Key{"item_1", "item_2"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "item_1" {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestModifySavesAndDeletesTogether(t *testing.T) {
	s := setupRecordTestDB(t, "home")
	ctx := context.Background()
	photo := func(key string) *record.Record {
		r := record.New(record.TypePhoto, record.Key(key))
		r.Set("data", record.Bytes([]byte{0xff, 0xd8}))
		return r
	}
	saveOne(t, s, photo("photo_old"), record.SaveAllKeys)

	saved, deleted, err := s.Modify(ctx, []*record.Record{photo("photo_new")}, []record.Key{"photo_old"}, record.SaveAllKeys)
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if len(saved) != 1 || len(deleted) != 1 {
		t.Fatalf("saved %d, deleted %d", len(saved), len(deleted))
	}
	got, _ := s.FetchByKey(ctx, "photo_new")
	if data, _ := got.Bytes("data"); len(data) != 2 {
		t.Errorf("data = %v", data)
	}
}

func TestBindPostgres(t *testing.T) {
	got := bind(database.Postgres, `SELECT * FROM records WHERE zone = ? AND record_key IN (?, ?)`)
	want := `SELECT * FROM records WHERE zone = $1 AND record_key IN ($2, $3)`
	if got != want {
		t.Errorf("bind = %q, want %q", got, want)
	}
	if q := bind(database.SQLite, "a = ?"); q != "a = ?" {
		t.Errorf("sqlite query rewritten: %q", q)
	}
}

func TestConcurrentChangedKeySavesAllLand(t *testing.T) {
	s := setupRecordFileDB(t, "home")
	base := saveOne(t, s, itemRecord("item_1", "Milk", "list_a"), record.SaveIfUnchanged)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := base.Clone()
			r.Set(fmt.Sprintf("field_%d", i), record.Int(int64(i)))
			if _, err := s.Save(context.Background(), []*record.Record{r}, record.SaveChangedKeys); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("save: %v", err)
	}

	got, err := s.FetchByKey(context.Background(), "item_1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for i := 0; i < writers; i++ {
		if v, ok := got.Int(fmt.Sprintf("field_%d", i)); !ok || v != int64(i) {
			t.Errorf("field_%d = %d, %v", i, v, ok)
		}
	}
	if name, _ := got.String("name"); name != "Milk" {
		t.Errorf("name = %q, want Milk", name)
	}
}

func TestConcurrentCreatesOfDistinctRecords(t *testing.T) {
	s := setupRecordFileDB(t, "home")

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := itemRecord(fmt.Sprintf("item_%d", i), "Milk", "list_a")
			if _, err := s.Save(context.Background(), []*record.Record{r}, record.SaveIfUnchanged); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("create: %v", err)
	}

	all, err := s.Query(context.Background(), record.TypeItem, record.All())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("got %d records, want 4", len(all))
	}
}
