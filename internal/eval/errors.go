package eval

import (
	"errors"
	"fmt"
)

// EvalError reports a candidate that could not be evaluated.
type EvalError struct {
	SQL string
	Err error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.SQL, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// IsEvalError returns true if err is or wraps an EvalError.
func IsEvalError(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee)
}
