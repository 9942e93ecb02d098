package sequence

import "fmt"

const (
	// panicPhaseLimit triggers when client attempts to register phase 65536 with the manager.
	panicPhaseLimit = "reached limit of max 65535 phases"

	// panicStepLimit triggers when client attempts to add step 256 to any group.
	panicStepLimit = "reached limit of max 255 steps per group"

	// panicUnknownMode should only trigger if there's an internal library error.
	panicUnknownMode = "unknown mode: failed to run group in serial or parallel mode"

	// panicCallee triggers if client calls both Agent.Wait() and Agent.Progress().
	panicCallee = "invalid callee: you may call Agent.Wait() or Agent.Progress(), not both"

	// parseErrMsg prefixes every ErrParsingFormula.
	parseErrMsg = "parse error"
)

// ErrParsingFormula represents a parse problem with the formula given to Manager.Sequence.
type ErrParsingFormula struct {
	message, details string
}

// newParseError is a convenience function for creating a new ErrParsingFormula.
func newParseError(details string) ErrParsingFormula {
	return ErrParsingFormula{parseErrMsg, details}
}

// Error satisfies the error interface by returning an error message with parse error details.
func (e ErrParsingFormula) Error() string {
	return fmt.Sprintf("%s: %s", e.message, e.details)
}

// EmptySequenceError indicates a boot sequence without any registered phases.
type EmptySequenceError string

// Error returns the error message for an EmptySequenceError.
func (e EmptySequenceError) Error() string {
	return fmt.Sprintf("empty boot sequence: %q", string(e))
}

// NilPhaseError indicates that a nil phase was registered under the given name.
type NilPhaseError string

// Error returns the error message for a NilPhaseError.
func (n NilPhaseError) Error() string {
	return fmt.Sprintf("nil phase provided: %s", string(n))
}

// Check that errors satisfy the error interface.
var _ error = ErrParsingFormula{}
var _ error = EmptySequenceError("")
var _ error = NilPhaseError("")
