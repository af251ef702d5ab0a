package expiry

import (
	"fmt"
	"time"

	"github.com/dukerupert/fridgetracker/internal/model"
)

// ExpiringWindow is the number of days (inclusive) before expiry during
// which an item counts as expiring.
const ExpiringWindow = 2

type Status string

const (
	StatusExpired  Status = "expired"
	StatusExpiring Status = "expiring"
	StatusFresh    Status = "fresh"
)

// Assessment is the freshness of one item relative to a reference date.
type Assessment struct {
	DaysLeft int    `json:"daysLeft"`
	Status   Status `json:"status"`
	// Known is false when the expiry string could not be parsed. Such items
	// are reported as fresh.
	Known bool   `json:"known"`
	Label string `json:"label"`
}

// ParseDate parses a YYYY-MM-DD expiry as a civil date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(model.DateLayout, s)
}

// DaysLeft returns the whole number of days from ref's calendar day to the
// expiry day. Both sides are reduced to civil dates in ref's location before
// subtracting, so the time of day and DST transitions never change the
// result. ok is false when expiry is malformed.
func DaysLeft(expiry string, ref time.Time) (days int, ok bool) {
	exp, err := ParseDate(expiry)
	if err != nil {
		return 0, false
	}
	today := civilDate(ref)
	return int((exp.Unix() - today.Unix()) / secondsPerDay), true
}

// ComputeStatus classifies an expiry string relative to ref.
func ComputeStatus(expiry string, ref time.Time) Status {
	return Evaluate(model.Item{Expiry: expiry}, ref).Status
}

// Evaluate computes days left, status and display label for an item.
func Evaluate(item model.Item, ref time.Time) Assessment {
	days, ok := DaysLeft(item.Expiry, ref)
	if !ok {
		return Assessment{Status: StatusFresh, Known: false, Label: "unknown expiry"}
	}

	a := Assessment{DaysLeft: days, Known: true, Status: classify(days)}
	switch {
	case days < 0:
		a.Label = fmt.Sprintf("expired %d %s ago", -days, plural(-days))
	case days == 0:
		a.Label = "expires today"
	case days <= ExpiringWindow:
		a.Label = fmt.Sprintf("expires in %d %s", days, plural(days))
	default:
		a.Label = "expires on " + item.Expiry
	}
	return a
}

func classify(days int) Status {
	switch {
	case days < 0:
		return StatusExpired
	case days <= ExpiringWindow:
		return StatusExpiring
	default:
		return StatusFresh
	}
}

func plural(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

const secondsPerDay = 24 * 60 * 60

// civilDate maps t's calendar day, as seen in t's own location, to UTC
// midnight so that date arithmetic is exact.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns now's calendar day as a YYYY-MM-DD string.
func Today(now time.Time) string {
	return civilDate(now).Format(model.DateLayout)
}

// AddDays returns the calendar day n days after now's, as YYYY-MM-DD.
func AddDays(now time.Time, n int) string {
	return civilDate(now).AddDate(0, 0, n).Format(model.DateLayout)
}
