package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformedDocument = errors.New("malformed inventory document")
	ErrMissingSection    = errors.New("inventory document is missing a household section")
)

// Document is the persisted form of an Inventory, shared verbatim between
// the local cache and every remote store.
type Document struct {
	LastUpdated *time.Time
	Inventory   Inventory
}

// NewDocument wraps a copy of inv stamped with the given time.
func NewDocument(inv Inventory, now time.Time) *Document {
	t := now.UTC()
	return &Document{LastUpdated: &t, Inventory: inv.Clone()}
}

type shelvesJSON struct {
	Fridge []Item `json:"fridge"`
	Pantry []Item `json:"pantry"`
}

type documentJSON struct {
	LastUpdated *time.Time  `json:"lastUpdated"`
	Salvo       shelvesJSON `json:"salvo"`
	Elisa       shelvesJSON `json:"elisa"`
}

func toShelvesJSON(s Shelves) shelvesJSON {
	out := shelvesJSON{Fridge: s[StorageFridge], Pantry: s[StoragePantry]}
	if out.Fridge == nil {
		out.Fridge = []Item{}
	}
	if out.Pantry == nil {
		out.Pantry = []Item{}
	}
	return out
}

func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{
		LastUpdated: d.LastUpdated,
		Salvo:       toShelvesJSON(d.Inventory[HouseholdSalvo]),
		Elisa:       toShelvesJSON(d.Inventory[HouseholdElisa]),
	})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// DecodeDocument parses a stored document. It accepts the current layout,
// the legacy {"houses": {...}} envelope and the older flat layout where each
// household is a plain array of items; flat arrays become the fridge bucket.
func DecodeDocument(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: null document", ErrMalformedDocument)
	}

	doc := &Document{Inventory: NewInventory()}
	if raw, ok := top["lastUpdated"]; ok && !isNull(raw) {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("%w: lastUpdated: %v", ErrMalformedDocument, err)
		}
		doc.LastUpdated = &t
	}

	sections := top
	if raw, ok := top["houses"]; ok {
		if _, direct := top[string(HouseholdSalvo)]; !direct {
			sections = nil
			if err := json.Unmarshal(raw, &sections); err != nil {
				return nil, fmt.Errorf("%w: houses: %v", ErrMalformedDocument, err)
			}
		}
	}

	for _, h := range Households {
		raw, ok := sections[string(h)]
		if !ok || isNull(raw) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSection, h)
		}
		shelves, err := decodeShelves(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, h, err)
		}
		doc.Inventory[h] = shelves
	}
	return doc, nil
}

func decodeShelves(raw json.RawMessage) (Shelves, error) {
	shelves := Shelves{StorageFridge: []Item{}, StoragePantry: []Item{}}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var flat []Item
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return nil, err
		}
		if flat != nil {
			shelves[StorageFridge] = flat
		}
		return shelves, nil
	}

	var s shelvesJSON
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, err
	}
	if s.Fridge != nil {
		shelves[StorageFridge] = s.Fridge
	}
	if s.Pantry != nil {
		shelves[StoragePantry] = s.Pantry
	}
	return shelves, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
