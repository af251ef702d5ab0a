package model

import "time"

// DateLayout is the wire format of Item.Expiry.
const DateLayout = "2006-01-02"

type Item struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Expiry   string    `json:"expiry"`
	Quantity int       `json:"quantity"`
	Grams    *int      `json:"grams"`
	AddedAt  time.Time `json:"addedAt"`
}

// Clone returns a copy that shares no pointers with the original.
func (it Item) Clone() Item {
	if it.Grams != nil {
		g := *it.Grams
		it.Grams = &g
	}
	return it
}

// Shelves holds the items of one household, keyed by storage location.
type Shelves map[Storage][]Item

// Inventory maps every household to its shelves.
type Inventory map[Household]Shelves

// NewInventory returns an inventory with all four buckets present and empty.
func NewInventory() Inventory {
	inv := make(Inventory, len(Households))
	for _, h := range Households {
		shelves := make(Shelves, len(Storages))
		for _, s := range Storages {
			shelves[s] = []Item{}
		}
		inv[h] = shelves
	}
	return inv
}

// Clone deep-copies the inventory, normalising missing buckets to empty slices.
func (inv Inventory) Clone() Inventory {
	out := NewInventory()
	for _, h := range Households {
		for _, s := range Storages {
			items := inv[h][s]
			copied := make([]Item, len(items))
			for i, it := range items {
				copied[i] = it.Clone()
			}
			out[h][s] = copied
		}
	}
	return out
}

// Items returns the bucket's items without copying.
func (inv Inventory) Items(b Bucket) []Item {
	return inv[b.Household][b.Storage]
}

// Len counts items across all buckets.
func (inv Inventory) Len() int {
	n := 0
	for _, shelves := range inv {
		for _, items := range shelves {
			n += len(items)
		}
	}
	return n
}
