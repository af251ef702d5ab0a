package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDecodeDocumentCurrentLayout(t *testing.T) {
	payload := `{
		"lastUpdated": "2025-06-10T08:00:00Z",
		"salvo": {"fridge": [{"id": 1, "name": "Latte", "expiry": "2025-06-12", "quantity": 2, "grams": null, "addedAt": "2025-06-01T10:00:00Z"}], "pantry": []},
		"elisa": {"fridge": [], "pantry": [{"id": 2, "name": "Pasta", "expiry": "2026-01-01", "quantity": 1, "grams": 500, "addedAt": "2025-06-01T10:00:00Z"}]}
	}`

	doc, err := DecodeDocument([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.LastUpdated == nil || !doc.LastUpdated.Equal(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("lastUpdated = %v, want 2025-06-10T08:00:00Z", doc.LastUpdated)
	}

	fridge := doc.Inventory[HouseholdSalvo][StorageFridge]
	if len(fridge) != 1 || fridge[0].Name != "Latte" || fridge[0].Quantity != 2 {
		t.Fatalf("salvo fridge = %+v, want one Latte x2", fridge)
	}
	if fridge[0].Grams != nil {
		t.Errorf("grams = %v, want nil", *fridge[0].Grams)
	}

	pantry := doc.Inventory[HouseholdElisa][StoragePantry]
	if len(pantry) != 1 || pantry[0].Grams == nil || *pantry[0].Grams != 500 {
		t.Fatalf("elisa pantry = %+v, want Pasta 500g", pantry)
	}
}

func TestDecodeDocumentMigratesFlatArrays(t *testing.T) {
	payload := `{"salvo": [{"id": 7, "name": "Yogurt", "expiry": "2025-06-15", "quantity": 1, "addedAt": "2025-06-01T10:00:00Z"}], "elisa": []}`

	doc, err := DecodeDocument([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got := doc.Inventory[HouseholdSalvo][StorageFridge]; len(got) != 1 || got[0].ID != 7 {
		t.Errorf("salvo fridge = %+v, want [item 7]", got)
	}
	for _, b := range []Bucket{
		{HouseholdSalvo, StoragePantry},
		{HouseholdElisa, StorageFridge},
		{HouseholdElisa, StoragePantry},
	} {
		items := doc.Inventory.Items(b)
		if items == nil || len(items) != 0 {
			t.Errorf("%s = %#v, want empty non-nil slice", b, items)
		}
	}
}

func TestDecodeDocumentLegacyEnvelope(t *testing.T) {
	payload := `{"lastUpdated": "2025-06-10T08:00:00Z", "houses": {"salvo": [{"id": 1, "name": "Uova", "expiry": "2025-06-20", "quantity": 6}], "elisa": []}}`

	doc, err := DecodeDocument([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := doc.Inventory[HouseholdSalvo][StorageFridge]; len(got) != 1 || got[0].Name != "Uova" {
		t.Errorf("salvo fridge = %+v, want [Uova]", got)
	}
}

func TestDecodeDocumentMissingSection(t *testing.T) {
	_, err := DecodeDocument([]byte(`{"salvo": {"fridge": [], "pantry": []}}`))
	if !errors.Is(err, ErrMissingSection) {
		t.Errorf("err = %v, want ErrMissingSection", err)
	}
}

func TestDecodeDocumentMalformed(t *testing.T) {
	tests := []string{
		`not json`,
		`null`,
		`{"salvo": {"fridge": "nope"}, "elisa": []}`,
		`{"lastUpdated": 12, "salvo": [], "elisa": []}`,
	}
	for _, payload := range tests {
		_, err := DecodeDocument([]byte(payload))
		if !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("DecodeDocument(%q) err = %v, want ErrMalformedDocument", payload, err)
		}
	}
}

func TestDocumentMarshalShape(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	inv := NewInventory()
	grams := 250
	inv[HouseholdElisa][StorageFridge] = []Item{{ID: 3, Name: "Burro", Expiry: "2025-07-01", Quantity: 1, Grams: &grams, AddedAt: now}}

	data, err := json.Marshal(NewDocument(inv, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	for _, key := range []string{"lastUpdated", "salvo", "elisa"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("missing top-level key %q in %s", key, data)
		}
	}
	if !strings.Contains(string(generic["salvo"]), `"pantry":[]`) {
		t.Errorf("salvo = %s, want empty pantry array", generic["salvo"])
	}
	if !strings.Contains(string(data), `"grams":250`) {
		t.Errorf("document = %s, want grams 250", data)
	}

	var back Document
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if got := back.Inventory[HouseholdElisa][StorageFridge]; len(got) != 1 || got[0].Name != "Burro" {
		t.Errorf("round trip elisa fridge = %+v", got)
	}
}

func TestParseBucket(t *testing.T) {
	b, err := ParseBucket("Salvo", " PANTRY ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if b != (Bucket{HouseholdSalvo, StoragePantry}) {
		t.Errorf("bucket = %v, want salvo/pantry", b)
	}
	if _, err := ParseBucket("mario", "fridge"); err == nil {
		t.Error("expected error for unknown household")
	}
	if _, err := ParseBucket("elisa", "cellar"); err == nil {
		t.Error("expected error for unknown storage")
	}
}
