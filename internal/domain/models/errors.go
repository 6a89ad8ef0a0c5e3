package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports caller input that was rejected at the boundary,
// typically a reference that does not resolve in the supplied catalog.
type ValidationError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.ID != "" && e.Reason != "":
		return fmt.Sprintf("invalid %s %q: %s", e.Entity, e.ID, e.Reason)
	case e.ID != "":
		return fmt.Sprintf("unknown %s %q", e.Entity, e.ID)
	default:
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Reason)
	}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// Validate runs struct tag validation and converts the first failure into a
// *ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &ValidationError{Entity: fieldPath(fe.Namespace()), Reason: reason}
	}
	return &ValidationError{Entity: "input", Reason: err.Error()}
}

// fieldPath drops the leading struct name from a validator namespace.
func fieldPath(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}
