package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/sqlsynth/internal/ir"
)

// EmissionQuota counts emitted trees against the max-emitted bound.
//
// Not safe for concurrent use: only the enumerator's Next touches it.
type EmissionQuota struct {
	max     int
	current int
}

// NewEmissionQuota creates a quota. max == ir.Unlimited disables it.
func NewEmissionQuota(max int) *EmissionQuota {
	return &EmissionQuota{max: max}
}

// Reached reports whether no further tree may be emitted.
func (q *EmissionQuota) Reached() bool {
	return q.max >= 0 && q.current >= q.max
}

// Take records one emission. It fails if the quota was already reached;
// callers check Reached first, so an error here is a defect.
func (q *EmissionQuota) Take() error {
	if q.Reached() {
		return &QuotaExceededError{Emitted: q.current + 1, Limit: q.max}
	}
	q.current++
	return nil
}

// Current returns the number of trees emitted.
func (q *EmissionQuota) Current() int {
	return q.current
}

// Max returns the limit, or ir.Unlimited.
func (q *EmissionQuota) Max() int {
	if q.max < 0 {
		return ir.Unlimited
	}
	return q.max
}

// QuotaExceededError is returned by Take past the limit.
type QuotaExceededError struct {
	Emitted int
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("emission quota exceeded: %d emitted > %d limit", e.Emitted, e.Limit)
}

// IsQuotaExceededError returns true if err is or wraps a QuotaExceededError.
func IsQuotaExceededError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
