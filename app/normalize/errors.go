package normalize

import "fmt"

// ValidationError reports a raw record that cannot be turned into a
// printable order. It is always raised before any device I/O, so the caller
// can fix the input and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order record: %s %s", e.Field, e.Reason)
}
