package engine

import (
	"errors"
	"fmt"
)

// SearchErrorCode categorizes enumerator configuration errors.
type SearchErrorCode string

const (
	// ErrCodeInvalidConfig indicates an option value out of range.
	ErrCodeInvalidConfig SearchErrorCode = "INVALID_CONFIG"
)

// SearchError reports an enumerator that cannot be started.
type SearchError struct {
	Code    SearchErrorCode
	Message string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsSearchError returns true if err is or wraps a SearchError.
func IsSearchError(err error) bool {
	var se *SearchError
	return errors.As(err, &se)
}
