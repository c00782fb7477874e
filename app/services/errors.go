package services

import "fmt"

// PrintError reports a failed print job and the receipt stage that broke.
// Stages before the failure have already reached the paper; there is no
// undo, so the stage name is the caller's best diagnostic.
type PrintError struct {
	Stage string
	Err   error
}

func (e *PrintError) Error() string {
	return fmt.Sprintf("print failed at stage %s: %v", e.Stage, e.Err)
}

func (e *PrintError) Unwrap() error { return e.Err }
