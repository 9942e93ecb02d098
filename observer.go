package bootphase

import "time"

// Observer receives notifications about the progress of phase invocations. Observers are used for
// metrics and similar side channels; they never influence the order or outcome of a phase.
// Implementations must be safe for concurrent use, since invocations may run concurrently.
type Observer interface {
	// StepStarted is called right before a step runs.
	StepStarted(phase string, index int, step string)

	// StepFinished is called when a step calls its continuation. err is the value it was called with.
	StepFinished(phase string, index int, step string, elapsed time.Duration, err error)

	// PhaseFinished is called once per invocation, right before the completion callback.
	PhaseFinished(phase string, elapsed time.Duration, err error)
}

// observers fans notifications out to several Observers.
type observers []Observer

func (o observers) StepStarted(phase string, index int, step string) {
	for _, obs := range o {
		obs.StepStarted(phase, index, step)
	}
}

func (o observers) StepFinished(phase string, index int, step string, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.StepFinished(phase, index, step, elapsed, err)
	}
}

func (o observers) PhaseFinished(phase string, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.PhaseFinished(phase, elapsed, err)
	}
}

// Verify that observers satisfies the Observer interface.
var _ Observer = observers{}
