package validation

import (
	"strconv"
	"strings"

	pcerrors "github.com/sharpjs/PSConcurrent/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// The returned error matches errors.ErrInvalidConfiguration.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return pcerrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNotNil validates that an interface value is not nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil {
		return pcerrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNotEmpty validates that a string argument is not empty.
// The returned error matches errors.ErrInvalidArgument.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return pcerrors.NewArgumentError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidateOneOf validates that value is one of the allowed choices.
func ValidateOneOf(module, field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return pcerrors.NewValidationError(module, field, value, "unsupported value").
		WithHint("use one of " + joinQuoted(allowed))
}

func joinQuoted(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ", ")
}
