package datescan

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	ErrNoDate      = errors.New("no date found")
	ErrInvalidDate = errors.New("not a calendar date")
)

// isoShape matches input that is meant as YYYY-MM-DD, valid or not.
var isoShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseInput turns user-typed expiry input into a YYYY-MM-DD date. It
// accepts ISO dates, anything the extraction cascade recognizes, and
// relative phrases like "tomorrow" or "in 5 days" resolved against now.
func ParseInput(input string, now time.Time) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("parse date %q: %w", input, ErrNoDate)
	}
	if isoShape.MatchString(s) {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return "", fmt.Errorf("parse date %q: %w", input, ErrInvalidDate)
		}
		return t.Format(time.DateOnly), nil
	}
	if d, ok := Extract(s); ok {
		return d, nil
	}

	r, err := parser.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", input, err)
	}
	if r == nil {
		return "", fmt.Errorf("parse date %q: %w", input, ErrNoDate)
	}
	return r.Time.In(now.Location()).Format(time.DateOnly), nil
}
