package notify

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ok      bool
		want    event.RemoteChanged
	}{
		{
			name:    "bare item",
			payload: `{"category":"item","action":"updated","key":"item_1","parent":"list_a"}`,
			ok:      true,
			want:    event.RemoteChanged{Category: event.CategoryItem, Action: event.ActionUpdated, Key: "item_1", Parent: "list_a"},
		},
		{
			name:    "enveloped list",
			payload: `{"wake":{"category":"list","action":"deleted","key":"list_a"}}`,
			ok:      true,
			want:    event.RemoteChanged{Category: event.CategoryList, Action: event.ActionDeleted, Key: "list_a"},
		},
		{name: "not json", payload: `wake up`},
		{name: "unknown category", payload: `{"category":"recipe","action":"created","key":"recipe_1"}`},
		{name: "unknown action", payload: `{"category":"item","action":"exploded","key":"item_1"}`},
		{name: "key of another category", payload: `{"category":"item","action":"created","key":"list_1"}`},
		{name: "missing key", payload: `{"category":"photo","action":"created"}`},
		{name: "bad parent", payload: `{"category":"photo","action":"created","key":"photo_1","parent":"list_a"}`},
		{name: "list with parent", payload: `{"category":"list","action":"created","key":"list_1","parent":"list_2"}`},
		{name: "array", payload: `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse([]byte(tt.payload))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	w := Wake{Category: "photo", Action: "created", Key: "photo_9", Parent: "item_3"}
	data, err := Encode(w)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := Parse(data)
	if !ok {
		t.Fatalf("encoded payload rejected: %s", data)
	}
	if got.Key != "photo_9" || got.Parent != "item_3" {
		t.Errorf("got %+v", got)
	}
}

func TestServeHTTPPublishesAndAlwaysReturns204(t *testing.T) {
	bus := event.NewBus(slog.Default())
	sub := bus.Subscribe()
	defer sub.Close()
	router := NewRouter(bus, slog.Default())

	for _, body := range []string{"garbage", `{"category":"item","action":"created","key":"item_1"}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wake", strings.NewReader(body)))
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	}

	select {
	case e := <-sub.C():
		rc, ok := e.(event.RemoteChanged)
		if !ok || rc.Key != "item_1" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
	select {
	case e := <-sub.C():
		t.Errorf("garbage payload produced %T", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWakesFor(t *testing.T) {
	wakes := WakesFor(event.ItemsRemoved{Items: []model.Item{
		{ID: "1", ListID: "a"},
		{ID: "2", ListID: "a"},
	}})
	if len(wakes) != 2 {
		t.Fatalf("wakes = %d, want 2", len(wakes))
	}
	if wakes[0] != (Wake{Category: "item", Action: "deleted", Key: "item_1", Parent: "list_a"}) {
		t.Errorf("wake = %+v", wakes[0])
	}
	if got := WakesFor(event.RemoteChanged{Category: event.CategoryItem}); got != nil {
		t.Errorf("remote change echoed: %+v", got)
	}
	if got := WakesFor(event.ItemsFetched{}); got != nil {
		t.Errorf("fetch produced wakes: %+v", got)
	}
}

func TestRouterTagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRouter(event.NewBus(logger), logger)

	if r.Route([]byte("not json")) {
		t.Fatal("malformed payload accepted")
	}
	if got := strings.Count(buf.String(), `"component"`); got != 1 {
		t.Errorf("component attribute appears %d times in %s", got, buf.String())
	}
}
