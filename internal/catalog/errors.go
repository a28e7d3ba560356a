package catalog

import (
	"fmt"

	"github.com/pkg/errors"
)

// StoreError wraps catalog DB failures. Conflict marks constraint
// violations the UI should present as user errors rather than bugs.
type StoreError struct {
	Op       string
	Conflict bool
	Err      error
}

func (e *StoreError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("catalog %s: conflict: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a conflict-class StoreError.
func IsConflict(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Conflict
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se
	}
	return &StoreError{Op: op, Err: err}
}

func conflictErr(op string, err error) error {
	return &StoreError{Op: op, Conflict: true, Err: err}
}
