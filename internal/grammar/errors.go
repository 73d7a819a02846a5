package grammar

import (
	"errors"
	"fmt"
)

// Grammar error codes.
const (
	ErrCodeUndefinedSymbol     = "UNDEFINED_SYMBOL"
	ErrCodeEmptySymbol         = "EMPTY_SYMBOL"
	ErrCodeUnproductiveSymbol  = "UNPRODUCTIVE_SYMBOL"
	ErrCodeBadTemplate         = "BAD_TEMPLATE"
	ErrCodeNegativeWeight      = "NEGATIVE_WEIGHT"
	ErrCodeBadTypeRule         = "BAD_TYPE_RULE"
	ErrCodeDuplicateProduction = "DUPLICATE_PRODUCTION"
	ErrCodeNoStart             = "NO_START"
	ErrCodeZeroWeightCycle     = "ZERO_WEIGHT_CYCLE"
	ErrCodeMissingName         = "MISSING_NAME"
)

// GrammarError reports a malformed grammar. It is only ever returned by
// Build, never during a search.
type GrammarError struct {
	Code       string
	Symbol     Symbol
	Production string
	Message    string
}

func (e *GrammarError) Error() string {
	switch {
	case e.Production != "":
		return fmt.Sprintf("grammar error [%s] production %q: %s", e.Code, e.Production, e.Message)
	case e.Symbol != "":
		return fmt.Sprintf("grammar error [%s] symbol %s: %s", e.Code, e.Symbol, e.Message)
	default:
		return fmt.Sprintf("grammar error [%s]: %s", e.Code, e.Message)
	}
}

// IsGrammarError returns true if err is or wraps a GrammarError.
func IsGrammarError(err error) bool {
	var ge *GrammarError
	return errors.As(err, &ge)
}

// joinErrors keeps every validation failure, in discovery order.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
