package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/fridgetracker/internal/model"
)

// etagServer is a minimal versioned document endpoint.
type etagServer struct {
	mu      sync.Mutex
	body    []byte
	version int
	token   string
}

func (s *etagServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	etag := fmt.Sprintf(`"%d"`, s.version)

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if s.body == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(s.body)
		}
	case http.MethodPut:
		if r.Header.Get("If-None-Match") == "*" && s.body != nil {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		if m := r.Header.Get("If-Match"); m != "" && m != etag {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		s.body, _ = io.ReadAll(r.Body)
		s.version++
		w.Header().Set("ETag", fmt.Sprintf(`"%d"`, s.version))
		w.WriteHeader(http.StatusOK)
	}
}

func testDocument(names ...string) *model.Document {
	inv := model.NewInventory()
	for i, n := range names {
		inv[model.HouseholdSalvo][model.StorageFridge] = append(inv[model.HouseholdSalvo][model.StorageFridge],
			model.Item{ID: int64(i + 1), Name: n, Expiry: "2025-06-12", Quantity: 1})
	}
	return model.NewDocument(inv, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
}

func TestHTTPStoreRoundTrip(t *testing.T) {
	srv := httptest.NewServer(&etagServer{token: "secret"})
	defer srv.Close()
	s := NewHTTPStore(srv.URL, WithBearerToken("secret"))
	ctx := context.Background()

	if _, err := s.Version(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("version of missing document: err = %v, want ErrNotFound", err)
	}

	v1, err := s.Write(ctx, "", testDocument("Latte"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v1 != `"1"` {
		t.Errorf("version = %s, want \"1\"", v1)
	}

	snap, err := s.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snap.Version != v1 {
		t.Errorf("fetched version = %s, want %s", snap.Version, v1)
	}
	items := snap.Document.Inventory[model.HouseholdSalvo][model.StorageFridge]
	if len(items) != 1 || items[0].Name != "Latte" {
		t.Errorf("fetched items = %+v", items)
	}

	v2, err := s.Write(ctx, v1, testDocument("Latte", "Pane"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := s.Version(ctx); got != v2 {
		t.Errorf("version = %s, want %s", got, v2)
	}
}

func TestHTTPStoreConflict(t *testing.T) {
	srv := httptest.NewServer(&etagServer{})
	defer srv.Close()
	s := NewHTTPStore(srv.URL)
	ctx := context.Background()

	v1, err := s.Write(ctx, "", testDocument())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Write(ctx, "", testDocument()); !errors.Is(err, ErrConflict) {
		t.Errorf("second create: err = %v, want ErrConflict", err)
	}
	if _, err := s.Write(ctx, v1, testDocument("a")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Write(ctx, v1, testDocument("b")); !errors.Is(err, ErrConflict) {
		t.Errorf("stale update: err = %v, want ErrConflict", err)
	}
}

func TestHTTPStoreUnauthorized(t *testing.T) {
	srv := httptest.NewServer(&etagServer{token: "secret"})
	defer srv.Close()
	s := NewHTTPStore(srv.URL, WithBearerToken("wrong"))

	if _, err := s.Fetch(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestHTTPStoreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	s := NewHTTPStore(srv.URL)
	if _, err := s.Fetch(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}

	srv.Close()
	if _, err := s.Write(context.Background(), `"1"`, testDocument()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("closed server: err = %v, want ErrUnavailable", err)
	}
}

func TestHTTPStoreRejectsIncompleteDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"1"`)
		w.Write([]byte(`{"salvo":{"fridge":[],"pantry":[]}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPStore(srv.URL).Fetch(context.Background())
	if !errors.Is(err, model.ErrMissingSection) {
		t.Errorf("err = %v, want ErrMissingSection", err)
	}
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	ctx := context.Background()
	if _, err := s.Fetch(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("fetch err = %v", err)
	}
	if _, err := s.Version(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("version err = %v", err)
	}
	if _, err := s.Write(ctx, "", testDocument()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("write err = %v", err)
	}
}
