package listener

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/shelflife/internal/database"
	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/repository"
	"github.com/dukerupert/shelflife/internal/store"
)

type fixture struct {
	bus    *event.Bus
	sub    *event.Subscription
	items  *repository.Items
	lists  *repository.Lists
	photos *repository.Photos
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rs := store.NewRecordStore(db, database.SQLite, "home")
	bus := event.NewBus(slog.Default())
	sub := bus.Subscribe()
	t.Cleanup(sub.Close)
	return &fixture{
		bus:    bus,
		sub:    sub,
		items:  repository.NewItems(rs, bus, slog.Default()),
		lists:  repository.NewLists(rs, bus, slog.Default()),
		photos: repository.NewPhotos(rs, bus, slog.Default()),
	}
}

// waitFor skips events until one of type T arrives.
func waitFor[T event.Event](t *testing.T, sub *event.Subscription) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-sub.C():
			if v, ok := e.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("timeout waiting for %T", zero)
			return zero
		}
	}
}

func mustDo(t *testing.T, op *repository.Operation) event.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e, err := op.Wait(ctx)
	if err != nil {
		t.Fatalf("%s: %v", op.Op(), err)
	}
	if f, ok := e.(event.Failed); ok {
		t.Fatalf("%s failed: %s", op.Op(), f.Message)
	}
	return e
}

func TestListTouchOnItemMove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mustDo(t, f.lists.Add(ctx, model.List{ID: "fridge", Name: "Fridge"}))
	mustDo(t, f.lists.Add(ctx, model.List{ID: "freezer", Name: "Freezer"}))

	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	touch := NewListTouch(f.lists, slog.Default())
	touch.now = func() time.Time { return at }

	touch.Handle(ctx, event.ItemMoved{Item: model.Item{ID: "1", ListID: "freezer"}, From: "fridge", To: "freezer"})

	got := map[model.ListID]bool{}
	for len(got) < 2 {
		u := waitFor[event.ListUpdated](t, f.sub)
		if !u.List.UpdatedAt.Equal(at) {
			t.Errorf("list %s updated at %v, want %v", u.List.ID, u.List.UpdatedAt, at)
		}
		if u.List.Name == "" {
			t.Errorf("list %s lost its name", u.List.ID)
		}
		got[u.List.ID] = true
	}
	if !got["fridge"] || !got["freezer"] {
		t.Errorf("touched = %v", got)
	}
}

func TestListTouchIgnoresOtherEvents(t *testing.T) {
	f := setup(t)
	touch := NewListTouch(f.lists, slog.Default())

	touch.Handle(context.Background(), event.ListUpdated{List: model.List{ID: "fridge"}})
	if f.lists.InFlight(event.OpTouch) {
		t.Error("list event started a touch")
	}
}

func TestCascadeRemovesItemsAndPhotos(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mustDo(t, f.lists.Add(ctx, model.List{ID: "fridge", Name: "Fridge"}))
	mustDo(t, f.items.Add(ctx, model.Item{ID: "1", Name: "Milk", ListID: "fridge"}))
	mustDo(t, f.items.Add(ctx, model.Item{ID: "2", Name: "Rice", ListID: "pantry"}))
	cs := model.NewPhotosChangeset("1")
	cs.Save(model.PhotoToSave{ID: "p1", Data: []byte("jpeg")})
	mustDo(t, f.photos.Apply(ctx, cs))

	cascade := NewCascade(f.items, f.photos, slog.Default())
	cascade.Handle(ctx, event.ListsRemoved{Lists: []model.List{{ID: "fridge"}}})

	removed := waitFor[event.ItemsRemoved](t, f.sub)
	if len(removed.Items) != 1 || removed.Items[0].ID != "1" {
		t.Fatalf("removed items = %+v", removed.Items)
	}

	cascade.Handle(ctx, removed)
	photos := waitFor[event.PhotosRemoved](t, f.sub)
	if len(photos.Photos) != 1 || photos.Photos[0].ID != "p1" {
		t.Errorf("removed photos = %+v", photos.Photos)
	}
}

func TestRemoteRefreshFetchesParentList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mustDo(t, f.items.Add(ctx, model.Item{ID: "1", Name: "Milk", ListID: "fridge"}))
	mustDo(t, f.items.Add(ctx, model.Item{ID: "2", Name: "Rice", ListID: "pantry"}))

	refresh := NewRemoteRefresh(f.items, f.lists, f.photos, slog.Default())
	refresh.Handle(ctx, event.RemoteChanged{
		Category: event.CategoryItem,
		Action:   event.ActionUpdated,
		Key:      "item_1",
		Parent:   "list_fridge",
	})

	fetched := waitFor[event.ItemsFetched](t, f.sub)
	if fetched.ListID != "fridge" || len(fetched.Items) != 1 {
		t.Errorf("fetched = %+v", fetched)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewCascade(f.items, f.photos, slog.Default()).Run(ctx, f.bus.Subscribe())
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
