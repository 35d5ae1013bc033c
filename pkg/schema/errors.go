package schema

import (
	"fmt"
	"strings"

	"github.com/aretw0/kiln/pkg/domain"
)

// ValidationError is a single variable that could not be coerced.
type ValidationError struct {
	Key    string
	Reason string
	Value  any

	missing bool
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("variable %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("variable %q: %s (got %T)", e.Key, e.Reason, e.Value)
}

// Unwrap maps the failure onto the Context error it would otherwise cause.
func (e *ValidationError) Unwrap() error {
	if e.missing {
		return domain.ErrMissingKey
	}
	return domain.ErrKeyType
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d variable errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	if aggr, ok := err.(*AggregateError); ok {
		return aggr.Errors
	}
	return nil
}
