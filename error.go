package bootphase

import "fmt"

const (
	// panicNilDone triggers when a phase is invoked without a completion callback.
	panicNilDone = "nil completion callback: Invoke requires a non-nil done func"

	// anonymous is the display name of steps that have no discoverable name.
	anonymous = "anonymous"
)

// InsufficientInputError indicates that a phase was built without any steps.
type InsufficientInputError string

// Error returns the error message for an InsufficientInputError.
func (e InsufficientInputError) Error() string {
	return fmt.Sprintf("insufficient input: %s", string(e))
}

// InvalidStepError indicates that the step at the given position of the step list cannot be run,
// because it is nil.
type InvalidStepError int

// Error returns the error message for an InvalidStepError.
func (i InvalidStepError) Error() string {
	return fmt.Sprintf("invalid step at position %d: must provide only non-nil steps", int(i))
}

// Check that errors satisfy the error interface.
var _ error = InsufficientInputError("")
var _ error = InvalidStepError(0)
