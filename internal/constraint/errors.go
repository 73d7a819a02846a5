package constraint

import (
	"errors"
	"fmt"
)

// DerivationError reports a constraint set that cannot be derived: a hole
// state the model should never have admitted. It indicates a defect, not a
// property of the search space, and aborts the search.
type DerivationError struct {
	Production string
	Child      int
	Message    string
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("constraint derivation failed: production %q child %d: %s",
		e.Production, e.Child, e.Message)
}

// IsDerivationError returns true if err is or wraps a DerivationError.
func IsDerivationError(err error) bool {
	var de *DerivationError
	return errors.As(err, &de)
}
