package inventory

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError rejects user input before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a new item: the name must be non-blank, the expiry a
// YYYY-MM-DD calendar date and grams, when present, positive.
func Validate(in NewItem) error {
	in.Name = strings.TrimSpace(in.Name)
	return toValidationError(validate.Struct(in))
}

// ValidatePatch applies the same rules to the fields a patch sets.
func ValidatePatch(p Patch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if p.Expiry != nil {
		if err := validate.Var(*p.Expiry, "required,datetime=2006-01-02"); err != nil {
			return &ValidationError{Field: "expiry", Reason: reasonFor(tagOf(err))}
		}
	}
	if p.Grams != nil && *p.Grams <= 0 {
		return &ValidationError{Field: "grams", Reason: reasonFor("gt")}
	}
	return nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate item: %w", err)
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reasonFor(fe.Tag())}
}

func tagOf(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	return ""
}

func reasonFor(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gt":
		return "must be a positive number"
	default:
		return "is invalid"
	}
}
