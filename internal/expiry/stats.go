package expiry

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/fridgetracker/internal/model"
)

type Stats struct {
	Total    int `json:"total"`
	Expiring int `json:"expiring"`
	Expired  int `json:"expired"`
}

// ComputeStats counts items by status using the same thresholds as Evaluate.
func ComputeStats(items []model.Item, ref time.Time) Stats {
	s := Stats{Total: len(items)}
	for _, it := range items {
		switch Evaluate(it, ref).Status {
		case StatusExpiring:
			s.Expiring++
		case StatusExpired:
			s.Expired++
		}
	}
	return s
}

// Filter selects items by status for listing.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterExpiring Filter = "expiring"
	FilterExpired  Filter = "expired"
)

// ParseFilter accepts "", "all", "expiring" and "expired".
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterExpiring, FilterExpired:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

func (f Filter) Match(item model.Item, ref time.Time) bool {
	switch f {
	case FilterExpiring:
		return Evaluate(item, ref).Status == StatusExpiring
	case FilterExpired:
		return Evaluate(item, ref).Status == StatusExpired
	default:
		return true
	}
}

// Due is an item annotated with its remaining days.
type Due struct {
	model.Item
	DaysLeft int `json:"daysLeft"`
}

// Within returns the items expiring no later than daysAhead days after ref,
// already-expired items included. Items with a malformed expiry are skipped.
func Within(items []model.Item, ref time.Time, daysAhead int) []Due {
	out := []Due{}
	for _, it := range items {
		days, ok := DaysLeft(it.Expiry, ref)
		if !ok || days > daysAhead {
			continue
		}
		out = append(out, Due{Item: it, DaysLeft: days})
	}
	return out
}
