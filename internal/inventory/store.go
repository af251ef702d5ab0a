package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/fridgetracker/internal/expiry"
	"github.com/dukerupert/fridgetracker/internal/model"
)

var (
	ErrNotFound      = errors.New("item not found")
	ErrUnknownBucket = errors.New("unknown household or storage")
)

// NewItem carries the user-supplied fields of an item to be created.
type NewItem struct {
	Name     string `json:"name" validate:"required"`
	Expiry   string `json:"expiry" validate:"required,datetime=2006-01-02"`
	Quantity int    `json:"quantity"`
	Grams    *int   `json:"grams" validate:"omitempty,gt=0"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name       *string `json:"name"`
	Expiry     *string `json:"expiry"`
	Quantity   *int    `json:"quantity"`
	Grams      *int    `json:"grams"`
	ClearGrams bool    `json:"clear_grams"`
}

// Store holds one Inventory in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	inv    model.Inventory
	lastID int64
	now    func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		inv: model.NewInventory(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// nextID derives an id from the creation time, bumped past the last issued
// id so it stays unique across the whole inventory. Callers hold s.mu.
func (s *Store) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Store) AddItem(b model.Bucket, in NewItem) (model.Item, error) {
	if !b.Valid() {
		return model.Item{}, fmt.Errorf("add item to %s: %w", b, ErrUnknownBucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	item := model.Item{
		ID:       s.nextID(now),
		Name:     strings.TrimSpace(in.Name),
		Expiry:   in.Expiry,
		Quantity: clampQuantity(in.Quantity),
		AddedAt:  now.UTC(),
	}
	if in.Grams != nil {
		g := *in.Grams
		item.Grams = &g
	}
	s.inv[b.Household][b.Storage] = append(s.inv[b.Household][b.Storage], item)
	return item.Clone(), nil
}

// Preset is a quick-add template: an item name and its shelf life in days.
type Preset struct {
	Name string `json:"name"`
	Days int    `json:"days"`
}

var DefaultPresets = []Preset{
	{Name: "Latte", Days: 7},
	{Name: "Yogurt", Days: 14},
	{Name: "Uova", Days: 21},
	{Name: "Pane", Days: 3},
	{Name: "Mozzarella", Days: 5},
	{Name: "Prosciutto", Days: 5},
	{Name: "Insalata", Days: 4},
	{Name: "Pollo", Days: 2},
}

// FindPreset looks up a default preset by name, ignoring case.
func FindPreset(name string) (Preset, bool) {
	for _, p := range DefaultPresets {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Preset{}, false
}

// QuickAdd adds one unit of p expiring p.Days days from today.
func (s *Store) QuickAdd(b model.Bucket, p Preset) (model.Item, error) {
	return s.AddItem(b, NewItem{
		Name:     p.Name,
		Expiry:   expiry.AddDays(s.now(), p.Days),
		Quantity: 1,
	})
}

func (s *Store) UpdateItem(b model.Bucket, id int64, p Patch) (model.Item, error) {
	return s.mutate(b, id, func(it *model.Item) {
		if p.Name != nil {
			it.Name = strings.TrimSpace(*p.Name)
		}
		if p.Expiry != nil {
			it.Expiry = *p.Expiry
		}
		if p.Quantity != nil {
			it.Quantity = *p.Quantity
		}
		switch {
		case p.ClearGrams:
			it.Grams = nil
		case p.Grams != nil:
			g := *p.Grams
			it.Grams = &g
		}
	})
}

// AdjustQuantity nudges an item's quantity by delta, never below 1.
func (s *Store) AdjustQuantity(b model.Bucket, id int64, delta int) (model.Item, error) {
	return s.mutate(b, id, func(it *model.Item) {
		it.Quantity += delta
	})
}

func (s *Store) mutate(b model.Bucket, id int64, fn func(*model.Item)) (model.Item, error) {
	if !b.Valid() {
		return model.Item{}, fmt.Errorf("update item in %s: %w", b, ErrUnknownBucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.inv[b.Household][b.Storage]
	i := indexOf(items, id)
	if i < 0 {
		return model.Item{}, fmt.Errorf("item %d in %s: %w", id, b, ErrNotFound)
	}
	fn(&items[i])
	items[i].Quantity = clampQuantity(items[i].Quantity)
	return items[i].Clone(), nil
}

// DeleteItem removes an item and reports whether anything was removed.
func (s *Store) DeleteItem(b model.Bucket, id int64) bool {
	if !b.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.remove(b, id)
	return ok
}

func (s *Store) remove(b model.Bucket, id int64) (model.Item, bool) {
	items := s.inv[b.Household][b.Storage]
	i := indexOf(items, id)
	if i < 0 {
		return model.Item{}, false
	}
	removed := items[i]
	s.inv[b.Household][b.Storage] = slices.Delete(items, i, i+1)
	return removed, true
}

// MoveItem relocates an item to another bucket as a delete followed by an
// insert; the id is preserved.
func (s *Store) MoveItem(from, to model.Bucket, id int64) (model.Item, error) {
	if !from.Valid() || !to.Valid() {
		return model.Item{}, fmt.Errorf("move item %d: %w", id, ErrUnknownBucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.remove(from, id)
	if !ok {
		return model.Item{}, fmt.Errorf("item %d in %s: %w", id, from, ErrNotFound)
	}
	s.inv[to.Household][to.Storage] = append(s.inv[to.Household][to.Storage], item)
	return item.Clone(), nil
}

// Get returns a copy of the item with the given id in the bucket.
func (s *Store) Get(b model.Bucket, id int64) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.inv[b.Household][b.Storage]
	i := indexOf(items, id)
	if i < 0 {
		return model.Item{}, false
	}
	return items[i].Clone(), true
}

// ListSorted returns the bucket's items ordered by expiry date. The sort is
// stable, so items with equal expiry keep their insertion order. Items with
// a malformed expiry go last.
func (s *Store) ListSorted(b model.Bucket) []model.Item {
	s.mu.RLock()
	items := cloneItems(s.inv[b.Household][b.Storage])
	s.mu.RUnlock()

	slices.SortStableFunc(items, compareExpiry)
	return items
}

// List returns the sorted items of a bucket that match the filter.
func (s *Store) List(b model.Bucket, f expiry.Filter, ref time.Time) []model.Item {
	all := s.ListSorted(b)
	out := make([]model.Item, 0, len(all))
	for _, it := range all {
		if f.Match(it, ref) {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) Stats(b model.Bucket, ref time.Time) expiry.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return expiry.ComputeStats(s.inv[b.Household][b.Storage], ref)
}

// Reminder is an item close to expiry together with where it is stored.
type Reminder struct {
	Storage model.Storage `json:"storage"`
	expiry.Due
}

// Expiring collects, per household, the items expiring within daysAhead
// days of ref (expired ones included), soonest first.
func (s *Store) Expiring(ref time.Time, daysAhead int) map[model.Household][]Reminder {
	out := make(map[model.Household][]Reminder, len(model.Households))
	for _, h := range model.Households {
		reminders := []Reminder{}
		for _, st := range model.Storages {
			for _, d := range expiry.Within(s.ListSorted(model.Bucket{Household: h, Storage: st}), ref, daysAhead) {
				reminders = append(reminders, Reminder{Storage: st, Due: d})
			}
		}
		slices.SortStableFunc(reminders, func(a, b Reminder) int {
			return a.DaysLeft - b.DaysLeft
		})
		out[h] = reminders
	}
	return out
}

// Document snapshots the whole inventory stamped with the current time.
func (s *Store) Document() *model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.NewDocument(s.inv, s.now())
}

// Replace swaps in a new inventory wholesale.
func (s *Store) Replace(inv model.Inventory) {
	next := inv.Clone()
	var maxID int64
	for _, shelves := range next {
		for _, items := range shelves {
			for _, it := range items {
				maxID = max(maxID, it.ID)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inv = next
	s.lastID = max(s.lastID, maxID)
}

// Export renders the inventory as indented JSON.
func (s *Store) Export() ([]byte, error) {
	data, err := json.MarshalIndent(s.Document(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal inventory: %w", err)
	}
	return data, nil
}

// Len counts all items in the inventory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inv.Len()
}

func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func indexOf(items []model.Item, id int64) int {
	return slices.IndexFunc(items, func(it model.Item) bool { return it.ID == id })
}

func cloneItems(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func compareExpiry(a, b model.Item) int {
	ta, errA := expiry.ParseDate(a.Expiry)
	tb, errB := expiry.ParseDate(b.Expiry)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return ta.Compare(tb)
}
