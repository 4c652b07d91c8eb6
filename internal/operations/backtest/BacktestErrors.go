package backtest

import "fmt"

// InvalidInputError reports malformed series. It is never retried.
type InvalidInputError struct {
	Field  string
	Index  int
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid input: %s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func invalidInput(field string, index int, format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Field: field, Index: index, Reason: fmt.Sprintf(format, args...)}
}

// SimulationError is an impossible numeric state hit mid-run
type SimulationError struct {
	Bar int
	Err error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed at bar %d: %v", e.Bar, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}
