package model

import (
	"fmt"
	"strings"
)

// Household identifies one of the two tracked homes.
type Household string

const (
	HouseholdSalvo Household = "salvo"
	HouseholdElisa Household = "elisa"
)

// Storage identifies a storage location inside a household.
type Storage string

const (
	StorageFridge Storage = "fridge"
	StoragePantry Storage = "pantry"
)

// Households and Storages list the fixed set of sections in document order.
var (
	Households = []Household{HouseholdSalvo, HouseholdElisa}
	Storages   = []Storage{StorageFridge, StoragePantry}
)

// Bucket is a (household, storage) pair identifying one collection of items.
type Bucket struct {
	Household Household `json:"household"`
	Storage   Storage   `json:"storage"`
}

func (b Bucket) String() string {
	return string(b.Household) + "/" + string(b.Storage)
}

// Valid reports whether both halves of the bucket name a known section.
func (b Bucket) Valid() bool {
	return b.Household.Valid() && b.Storage.Valid()
}

func (h Household) Valid() bool {
	for _, known := range Households {
		if h == known {
			return true
		}
	}
	return false
}

func (s Storage) Valid() bool {
	for _, known := range Storages {
		if s == known {
			return true
		}
	}
	return false
}

// ParseHousehold accepts a household name in any case.
func ParseHousehold(s string) (Household, error) {
	h := Household(strings.ToLower(strings.TrimSpace(s)))
	if !h.Valid() {
		return "", fmt.Errorf("unknown household %q", s)
	}
	return h, nil
}

// ParseStorage accepts a storage name in any case.
func ParseStorage(s string) (Storage, error) {
	st := Storage(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown storage %q", s)
	}
	return st, nil
}

// ParseBucket parses household and storage names into a Bucket.
func ParseBucket(household, storage string) (Bucket, error) {
	h, err := ParseHousehold(household)
	if err != nil {
		return Bucket{}, err
	}
	s, err := ParseStorage(storage)
	if err != nil {
		return Bucket{}, err
	}
	return Bucket{Household: h, Storage: s}, nil
}
