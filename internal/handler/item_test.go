package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/dukerupert/fridgetracker/internal/expiry"
	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/model"
)

var (
	salvoFridge = model.Bucket{Household: model.HouseholdSalvo, Storage: model.StorageFridge}
	elisaPantry = model.Bucket{Household: model.HouseholdElisa, Storage: model.StoragePantry}
)

type itemFixture struct {
	inv   *inventory.Store
	saver *fakeSyncer
	hub   *recordingHub
	mux   *http.ServeMux
}

func newItemFixture(t *testing.T) *itemFixture {
	t.Helper()
	f := &itemFixture{
		inv:   newTestInventory(t),
		saver: &fakeSyncer{},
		hub:   &recordingHub{},
		mux:   http.NewServeMux(),
	}
	h := NewItemHandler(f.inv, f.saver, f.hub, slog.Default())

	const base = "/api/households/{house}/{storage}"
	f.mux.HandleFunc("GET "+base+"/items", h.List)
	f.mux.HandleFunc("POST "+base+"/items", h.Create)
	f.mux.HandleFunc("PUT "+base+"/items/{id}", h.Update)
	f.mux.HandleFunc("DELETE "+base+"/items/{id}", h.Delete)
	f.mux.HandleFunc("POST "+base+"/items/{id}/quantity", h.AdjustQuantity)
	f.mux.HandleFunc("POST "+base+"/items/{id}/move", h.Move)
	f.mux.HandleFunc("POST "+base+"/quick-add", h.QuickAdd)
	f.mux.HandleFunc("GET "+base+"/stats", h.Stats)
	f.mux.HandleFunc("GET /api/presets", h.Presets)
	f.mux.HandleFunc("GET /api/expiring", h.Expiring)
	f.mux.HandleFunc("GET /api/export", h.Export)
	f.mux.HandleFunc("POST /api/import", h.Import)
	f.mux.HandleFunc("POST /api/expiry/extract", h.ExtractExpiry)
	return f
}

func (f *itemFixture) add(t *testing.T, b model.Bucket, name, exp string) model.Item {
	t.Helper()
	it, err := f.inv.AddItem(b, inventory.NewItem{Name: name, Expiry: exp, Quantity: 1})
	if err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	return it
}

type itemJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Expiry   string `json:"expiry"`
	Quantity int    `json:"quantity"`
	Grams    *int   `json:"grams"`
	DaysLeft int    `json:"daysLeft"`
	Status   string `json:"status"`
	Label    string `json:"label"`
}

func TestCreateItem(t *testing.T) {
	f := newItemFixture(t)

	rec := doRequest(t, f.mux, "POST", "/api/households/salvo/fridge/items",
		map[string]any{"name": " Latte ", "expiry": "2025-06-12", "quantity": 2, "grams": 1000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}

	got := decodeBody[itemJSON](t, rec)
	if got.Name != "Latte" || got.Quantity != 2 || got.Grams == nil || *got.Grams != 1000 {
		t.Errorf("item = %+v", got)
	}
	if got.DaysLeft != 2 || got.Status != string(expiry.StatusExpiring) {
		t.Errorf("assessment = %d %s, want 2 expiring", got.DaysLeft, got.Status)
	}
	if f.saver.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", f.saver.saveCount())
	}
	if types := f.hub.types(); !slices.Equal(types, []string{"item_created"}) {
		t.Errorf("broadcasts = %v, want [item_created]", types)
	}
	if f.inv.Len() != 1 {
		t.Errorf("inventory len = %d, want 1", f.inv.Len())
	}
}

func TestCreateItemFreeTextExpiry(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"scad. 12/06/2025", "2025-06-12"},
		{"15 giu 2025", "2025-06-15"},
		{"in 3 days", "2025-06-13"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f := newItemFixture(t)
			rec := doRequest(t, f.mux, "POST", "/api/households/elisa/pantry/items",
				map[string]any{"name": "Pasta", "expiry": tt.input})
			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			if got := decodeBody[itemJSON](t, rec); got.Expiry != tt.want {
				t.Errorf("expiry = %q, want %q", got.Expiry, tt.want)
			}
		})
	}
}

func TestCreateItemRejected(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   any
		want   int
		reason string
	}{
		{"blank name", "/api/households/salvo/fridge/items", map[string]any{"name": "  ", "expiry": "2025-06-12"}, http.StatusBadRequest, "name"},
		{"impossible date", "/api/households/salvo/fridge/items", map[string]any{"name": "Latte", "expiry": "2025-02-30"}, http.StatusBadRequest, "expiry"},
		{"gibberish date", "/api/households/salvo/fridge/items", map[string]any{"name": "Latte", "expiry": "soonish"}, http.StatusBadRequest, "expiry"},
		{"zero grams", "/api/households/salvo/fridge/items", map[string]any{"name": "Latte", "expiry": "2025-06-12", "grams": 0}, http.StatusBadRequest, "grams"},
		{"unknown household", "/api/households/bob/fridge/items", map[string]any{"name": "Latte", "expiry": "2025-06-12"}, http.StatusBadRequest, "household"},
		{"unknown storage", "/api/households/salvo/freezer/items", map[string]any{"name": "Latte", "expiry": "2025-06-12"}, http.StatusBadRequest, "storage"},
		{"bad json", "/api/households/salvo/fridge/items", "{", http.StatusBadRequest, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newItemFixture(t)
			rec := doRequest(t, f.mux, "POST", tt.target, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.reason) {
				t.Errorf("body = %s, want mention of %q", rec.Body, tt.reason)
			}
			if f.inv.Len() != 0 || f.saver.saveCount() != 0 {
				t.Error("rejected input should not change or save the inventory")
			}
		})
	}
}

func TestListItemsSortedWithFilter(t *testing.T) {
	f := newItemFixture(t)
	f.add(t, salvoFridge, "Pane", "2025-06-20")
	f.add(t, salvoFridge, "Latte", "2025-06-11")
	f.add(t, salvoFridge, "Yogurt", "2025-06-08")

	rec := doRequest(t, f.mux, "GET", "/api/households/salvo/fridge/items", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	items := decodeBody[[]itemJSON](t, rec)
	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	if !slices.Equal(names, []string{"Yogurt", "Latte", "Pane"}) {
		t.Errorf("order = %v", names)
	}
	if items[0].Status != "expired" || items[0].Label != "expired 2 days ago" {
		t.Errorf("first = %+v", items[0])
	}

	rec = doRequest(t, f.mux, "GET", "/api/households/salvo/fridge/items?filter=expiring", nil)
	items = decodeBody[[]itemJSON](t, rec)
	if len(items) != 1 || items[0].Name != "Latte" {
		t.Errorf("expiring = %+v, want [Latte]", items)
	}

	rec = doRequest(t, f.mux, "GET", "/api/households/salvo/fridge/items?filter=stale", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown filter status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doRequest(t, f.mux, "GET", "/api/households/elisa/fridge/items", nil)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty bucket body = %s, want []", body)
	}
}

func TestUpdateItem(t *testing.T) {
	f := newItemFixture(t)
	it := f.add(t, salvoFridge, "Latte", "2025-06-12")
	target := fmt.Sprintf("/api/households/salvo/fridge/items/%d", it.ID)

	rec := doRequest(t, f.mux, "PUT", target, map[string]any{"name": "Latte intero", "quantity": 0, "grams": 500})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decodeBody[itemJSON](t, rec)
	if got.Name != "Latte intero" || got.Quantity != 1 || got.Expiry != "2025-06-12" {
		t.Errorf("item = %+v, want renamed, quantity clamped to 1, expiry kept", got)
	}

	rec = doRequest(t, f.mux, "PUT", target, map[string]any{"clear_grams": true})
	if got := decodeBody[itemJSON](t, rec); got.Grams != nil {
		t.Errorf("grams = %v, want cleared", *got.Grams)
	}

	rec = doRequest(t, f.mux, "PUT", target, map[string]any{"expiry": "2025-13-01"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad expiry status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doRequest(t, f.mux, "PUT", fmt.Sprintf("/api/households/elisa/fridge/items/%d", it.ID), map[string]any{"name": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("wrong bucket status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = doRequest(t, f.mux, "PUT", "/api/households/salvo/fridge/items/abc", map[string]any{"name": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeleteItem(t *testing.T) {
	f := newItemFixture(t)
	it := f.add(t, salvoFridge, "Latte", "2025-06-12")
	target := fmt.Sprintf("/api/households/salvo/fridge/items/%d", it.ID)

	rec := doRequest(t, f.mux, "DELETE", target, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if f.inv.Len() != 0 {
		t.Error("item not deleted")
	}

	rec = doRequest(t, f.mux, "DELETE", target, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if f.saver.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", f.saver.saveCount())
	}
}

func TestAdjustQuantity(t *testing.T) {
	f := newItemFixture(t)
	it := f.add(t, salvoFridge, "Uova", "2025-06-30")
	target := fmt.Sprintf("/api/households/salvo/fridge/items/%d/quantity", it.ID)

	rec := doRequest(t, f.mux, "POST", target, map[string]int{"delta": 5})
	if got := decodeBody[itemJSON](t, rec); got.Quantity != 6 {
		t.Errorf("quantity = %d, want 6", got.Quantity)
	}

	rec = doRequest(t, f.mux, "POST", target, map[string]int{"delta": -10})
	if got := decodeBody[itemJSON](t, rec); got.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", got.Quantity)
	}

	rec = doRequest(t, f.mux, "POST", target, map[string]int{"delta": 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero delta status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMoveItem(t *testing.T) {
	f := newItemFixture(t)
	it := f.add(t, salvoFridge, "Pasta", "2026-01-01")
	target := fmt.Sprintf("/api/households/salvo/fridge/items/%d/move", it.ID)

	rec := doRequest(t, f.mux, "POST", target, map[string]string{"household": "elisa", "storage": "pantry"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody[itemJSON](t, rec); got.ID != it.ID {
		t.Errorf("id = %d, want %d preserved", got.ID, it.ID)
	}
	if _, ok := f.inv.Get(elisaPantry, it.ID); !ok {
		t.Error("item not in elisa/pantry")
	}
	if _, ok := f.inv.Get(salvoFridge, it.ID); ok {
		t.Error("item still in salvo/fridge")
	}

	rec = doRequest(t, f.mux, "POST", target, map[string]string{"storage": "pantry"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("move of missing item status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestQuickAdd(t *testing.T) {
	f := newItemFixture(t)

	rec := doRequest(t, f.mux, "POST", "/api/households/salvo/fridge/quick-add", map[string]string{"preset": "latte"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody[itemJSON](t, rec); got.Name != "Latte" || got.Expiry != "2025-06-17" {
		t.Errorf("item = %+v, want Latte expiring 2025-06-17", got)
	}

	rec = doRequest(t, f.mux, "POST", "/api/households/salvo/fridge/quick-add", map[string]any{"name": "Ricotta", "days": 4})
	if got := decodeBody[itemJSON](t, rec); got.Expiry != "2025-06-14" {
		t.Errorf("custom expiry = %q, want 2025-06-14", got.Expiry)
	}

	rec = doRequest(t, f.mux, "POST", "/api/households/salvo/fridge/quick-add", map[string]string{"preset": "caviale"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown preset status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = doRequest(t, f.mux, "POST", "/api/households/salvo/fridge/quick-add", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty request status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPresets(t *testing.T) {
	f := newItemFixture(t)
	rec := doRequest(t, f.mux, "GET", "/api/presets", nil)
	presets := decodeBody[[]inventory.Preset](t, rec)
	if len(presets) != len(inventory.DefaultPresets) {
		t.Errorf("presets = %d, want %d", len(presets), len(inventory.DefaultPresets))
	}
}

func TestStatsAndExpiring(t *testing.T) {
	f := newItemFixture(t)
	f.add(t, salvoFridge, "Latte", "2025-06-11")
	f.add(t, salvoFridge, "Yogurt", "2025-06-01")
	f.add(t, salvoFridge, "Pane", "2025-07-01")
	f.add(t, elisaPantry, "Biscotti", "2025-06-13")

	rec := doRequest(t, f.mux, "GET", "/api/households/salvo/fridge/stats", nil)
	stats := decodeBody[expiry.Stats](t, rec)
	if stats != (expiry.Stats{Total: 3, Expiring: 1, Expired: 1}) {
		t.Errorf("stats = %+v", stats)
	}

	rec = doRequest(t, f.mux, "GET", "/api/expiring", nil)
	due := decodeBody[map[string][]map[string]any](t, rec)
	if len(due["salvo"]) != 2 || len(due["elisa"]) != 0 {
		t.Errorf("expiring (2 days) = %v", due)
	}

	rec = doRequest(t, f.mux, "GET", "/api/expiring?days=3", nil)
	due = decodeBody[map[string][]map[string]any](t, rec)
	if len(due["elisa"]) != 1 || due["elisa"][0]["storage"] != "pantry" {
		t.Errorf("expiring (3 days) elisa = %v", due["elisa"])
	}

	rec = doRequest(t, f.mux, "GET", "/api/expiring?days=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative days status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestExport(t *testing.T) {
	f := newItemFixture(t)
	f.add(t, salvoFridge, "Latte", "2025-06-11")

	rec := doRequest(t, f.mux, "GET", "/api/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "fridge_data.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	doc, err := model.DecodeDocument(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.Inventory.Len() != 1 {
		t.Errorf("exported items = %d, want 1", doc.Inventory.Len())
	}
}

func TestImport(t *testing.T) {
	f := newItemFixture(t)

	rec := doRequest(t, f.mux, "POST", "/api/import", map[string]any{"household": "Elisa", "name": "Burrata", "expiry": "2025-06-12"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	items := f.inv.ListSorted(model.Bucket{Household: model.HouseholdElisa, Storage: model.StorageFridge})
	if len(items) != 1 || items[0].Name != "Burrata" || items[0].Quantity != 1 {
		t.Errorf("elisa/fridge = %+v, want one Burrata", items)
	}

	rec = doRequest(t, f.mux, "POST", "/api/import", map[string]any{"household": "nobody", "name": "x", "expiry": "2025-06-12"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown household status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestExtractExpiry(t *testing.T) {
	f := newItemFixture(t)

	rec := doRequest(t, f.mux, "POST", "/api/expiry/extract", map[string]string{"text": "LOTTO 4411 DA CONSUMARSI ENTRO 05/07/2025"})
	got := decodeBody[map[string]any](t, rec)
	if got["found"] != true || got["expiry"] != "2025-07-05" {
		t.Errorf("extract = %v", got)
	}

	rec = doRequest(t, f.mux, "POST", "/api/expiry/extract", map[string]string{"text": "ingredienti: acqua, sale"})
	got = decodeBody[map[string]any](t, rec)
	if got["found"] != false {
		t.Errorf("extract = %v, want not found", got)
	}
}
