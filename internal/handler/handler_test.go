package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/syncer"
	"github.com/dukerupert/fridgetracker/internal/websocket"
)

var testNow = time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

func newTestInventory(t *testing.T) *inventory.Store {
	t.Helper()
	return inventory.NewStore(inventory.WithClock(func() time.Time { return testNow }))
}

type recordingHub struct {
	mu   sync.Mutex
	msgs []websocket.Message
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.msgs))
	for _, m := range h.msgs {
		out = append(out, m.Type)
	}
	return out
}

// fakeSyncer records calls and answers with canned results.
type fakeSyncer struct {
	mu     sync.Mutex
	saves  int
	pulls  int
	pushes int
	state  syncer.State
	err    error
	onPull func()
}

func (f *fakeSyncer) SaveAsync(context.Context) {
	f.mu.Lock()
	f.saves++
	f.mu.Unlock()
}

func (f *fakeSyncer) Pull(ctx context.Context) (syncer.State, error) {
	f.mu.Lock()
	f.pulls++
	onPull := f.onPull
	f.mu.Unlock()
	if onPull != nil {
		onPull()
	}
	return f.result()
}

func (f *fakeSyncer) Push(ctx context.Context) (syncer.State, error) {
	f.mu.Lock()
	f.pushes++
	f.mu.Unlock()
	return f.result()
}

func (f *fakeSyncer) result() (syncer.State, error) {
	if f.state == "" {
		return syncer.StateSynced, f.err
	}
	return f.state, f.err
}

func (f *fakeSyncer) Status() syncer.Status {
	state, err := f.result()
	s := syncer.Status{State: state}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func (f *fakeSyncer) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
