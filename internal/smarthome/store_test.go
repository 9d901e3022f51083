package smarthome

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestStore(t *testing.T) (*Store, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		switch r.URL.Path {
		case "/devices":
			json.NewEncoder(w).Encode([]Device{{ID: "d1", Name: "Lamp"}})
		case "/rooms":
			json.NewEncoder(w).Encode([]Room{{ID: "r1", Name: "Kitchen"}})
		case "/groups":
			json.NewEncoder(w).Encode([]Group{{ID: "g1", Name: "Movie Lights"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return NewStore(NewClient(testConfig(srv.URL), nil)), &fetches
}

func TestStore_DevicesServedFromCache(t *testing.T) {
	s, fetches := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Devices(ctx); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if _, err := s.Devices(ctx); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("server saw %d fetches, want 1 (second read cached)", got)
	}
}

func TestStore_RefreshBypassesCache(t *testing.T) {
	s, fetches := newTestStore(t)
	ctx := context.Background()

	s.Devices(ctx)
	if _, err := s.RefreshDevices(ctx); err != nil {
		t.Fatalf("RefreshDevices: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("server saw %d fetches, want 2", got)
	}
}

func TestStore_MarkModifiedClearsCache(t *testing.T) {
	s, fetches := newTestStore(t)
	ctx := context.Background()

	s.Devices(ctx)
	s.MarkDevicesModified()
	s.Devices(ctx)

	s.Rooms(ctx)
	s.MarkRoomsModified()
	s.Rooms(ctx)

	s.Groups(ctx)
	s.MarkGroupsModified()
	s.Groups(ctx)

	if got := fetches.Load(); got != 6 {
		t.Errorf("server saw %d fetches, want 6 (every read after a modification refetches)", got)
	}
}

func TestStore_InvalidateAll(t *testing.T) {
	s, fetches := newTestStore(t)
	ctx := context.Background()

	s.Devices(ctx)
	s.Rooms(ctx)
	s.Groups(ctx)
	s.InvalidateAll()
	s.Devices(ctx)
	s.Rooms(ctx)
	s.Groups(ctx)

	if got := fetches.Load(); got != 6 {
		t.Errorf("server saw %d fetches, want 6", got)
	}
}
