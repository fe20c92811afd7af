package contracts

import (
	"errors"
	"fmt"
)

// DataError signals unusable input: a missing file, a missing required
// column, or an unparsable firm/year field. The run aborts immediately.
type DataError struct {
	Msg string
	Err error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("data error: %s", e.Msg)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a DataError with a formatted message
func NewDataError(format string, args ...interface{}) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// WrapDataError creates a DataError wrapping an underlying cause
func WrapDataError(err error, format string, args ...interface{}) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// InsufficientDataError signals a training window with too little history
// to fit preprocessing, PCA or models. Distinct from DataError so callers
// can tell "bad file" from "not enough rows".
type InsufficientDataError struct {
	Op   string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need at least %d rows, got %d", e.Op, e.Need, e.Got)
}

// IsDataError reports whether err is (or wraps) a DataError
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsInsufficientData reports whether err is (or wraps) an InsufficientDataError
func IsInsufficientData(err error) bool {
	var ie *InsufficientDataError
	return errors.As(err, &ie)
}
