package model

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter marks a strategy or ledger parameter outside its contract.
var ErrInvalidParameter = errors.New("invalid parameter")

// DataError reports an input dataset that cannot be used for a run: empty
// sets, missing fields, or funding and volatility sets with no instrument in
// common. It is fatal for the run and is not retried.
type DataError struct {
	Op     string
	Reason string
}

func (e *DataError) Error() string {
	if e.Op == "" {
		return "data error: " + e.Reason
	}
	return fmt.Sprintf("data error: %s: %s", e.Op, e.Reason)
}

// NewDataError builds a DataError with a formatted reason.
func NewDataError(op, format string, args ...any) *DataError {
	return &DataError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsDataError reports whether err wraps a *DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// Float returns a pointer to v; used for nullable numeric fields.
func Float(v float64) *float64 {
	return &v
}
