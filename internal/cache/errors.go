package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrOperationInFlight means a mutation on the same entity kind is still
	// outstanding; the caller should retry after it settles.
	ErrOperationInFlight = errors.New("operation already in flight")

	// ErrConfirmationDeclined means the operator answered no to the removal
	// prompt; no network call was made.
	ErrConfirmationDeclined = errors.New("confirmation declined")
)

// FieldErrors maps field names to operator-facing messages. A mutation that
// fails local validation returns one of these and makes no network call.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(e))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var fe FieldErrors
	return errors.As(err, &fe)
}
