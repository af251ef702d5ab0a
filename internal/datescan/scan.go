// Package datescan pulls expiry dates out of free-form text such as the
// output of a label OCR pass.
package datescan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Date is a day/month/year triple as read from text. It is only checked
// structurally: 31 April is a Date.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Valid reports whether day is in [1,31] and month in [1,12].
func (d Date) Valid() bool {
	return d.Day >= 1 && d.Day <= 31 && d.Month >= 1 && d.Month <= 12
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// A Matcher finds the first date-shaped substring it recognizes.
type Matcher interface {
	Match(text string) (Date, bool)
}

// Cascade tries matchers in order. The first one producing a structurally
// valid date wins.
type Cascade []Matcher

// DefaultCascade reads numeric dates with four-digit years, then with
// two-digit years, then dates with an Italian or English month name.
var DefaultCascade = Cascade{
	numericMatcher{re: regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})`)},
	numericMatcher{re: regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2})`)},
	monthNameMatcher{},
}

func (c Cascade) Extract(text string) (string, bool) {
	for _, m := range c {
		d, ok := m.Match(text)
		if ok && d.Valid() {
			return d.String(), true
		}
	}
	return "", false
}

// Extract runs DefaultCascade over text and returns the date as YYYY-MM-DD.
func Extract(text string) (string, bool) {
	return DefaultCascade.Extract(text)
}

type numericMatcher struct {
	re *regexp.Regexp
}

func (m numericMatcher) Match(text string) (Date, bool) {
	sm := m.re.FindStringSubmatch(text)
	if sm == nil {
		return Date{}, false
	}
	day, _ := strconv.Atoi(sm[1])
	month, _ := strconv.Atoi(sm[2])
	return Date{Year: normalizeYear(sm[3]), Month: month, Day: day}, true
}

var months = map[string]int{
	"gen": 1, "jan": 1,
	"feb": 2,
	"mar": 3,
	"apr": 4,
	"mag": 5, "may": 5,
	"giu": 6, "jun": 6,
	"lug": 7, "jul": 7,
	"ago": 8, "aug": 8,
	"set": 9, "sep": 9,
	"ott": 10, "oct": 10,
	"nov": 11,
	"dic": 12, "dec": 12,
}

var monthNameRe = regexp.MustCompile(`(?i)(\d{1,2})\s*(gen|jan|feb|mar|apr|mag|may|giu|jun|lug|jul|ago|aug|set|sep|ott|oct|nov|dic|dec)[a-z]*\.?\s*(20\d{2}|\d{2})`)

type monthNameMatcher struct{}

func (monthNameMatcher) Match(text string) (Date, bool) {
	sm := monthNameRe.FindStringSubmatch(text)
	if sm == nil {
		return Date{}, false
	}
	day, _ := strconv.Atoi(sm[1])
	return Date{
		Year:  normalizeYear(sm[3]),
		Month: months[strings.ToLower(sm[2])],
		Day:   day,
	}, true
}

// normalizeYear maps two-digit years into the 2000s.
func normalizeYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}
