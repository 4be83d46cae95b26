package evaluation

import (
	"fmt"

	"github.com/nvr-ai/go-eval/models/postprocess"
	"github.com/pkg/errors"
)

// ErrEmptyResult is returned when a mean IoU is requested over a result that
// holds no predicted boxes. It is never silently reported as 0 or NaN.
var ErrEmptyResult = errors.New("no IoU values to average: no predicted boxes were evaluated")

// ValidationError reports malformed input: a non-finite box coordinate or
// score, or a configuration value out of range.
type ValidationError = postprocess.ValidationError

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err, or any error it wraps, is a *ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
