package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkock/bootphase"
)

var errPhase = errors.New("phase has failed")

// journal records the start and end of every phase it builds, in order.
type journal struct {
	sync.Mutex
	events  []string
	running int
	maxRun  int
}

// phase returns a phase with a single step that records itself and completes with err after d.
func (j *journal) phase(name string, d time.Duration, err error) *bootphase.Phase {
	return bootphase.MustNew(bootphase.NamedFunc(name, func(_ context.Context, _ []any, next bootphase.Next) {
		j.Lock()
		j.events = append(j.events, "+"+name)
		j.running++
		if j.running > j.maxRun {
			j.maxRun = j.running
		}
		j.Unlock()

		time.AfterFunc(d, func() {
			j.Lock()
			j.events = append(j.events, "-"+name)
			j.running--
			j.Unlock()
			next(err)
		})
	}))
}

func (j *journal) recorded() []string {
	j.Lock()
	defer j.Unlock()

	return append([]string(nil), j.events...)
}

func (j *journal) maxConcurrent() int {
	j.Lock()
	defer j.Unlock()

	return j.maxRun
}

// noop is a phase that completes immediately.
func noop() *bootphase.Phase {
	return bootphase.MustNew(bootphase.StepFunc(func(_ context.Context, _ []any, next bootphase.Next) {
		next(nil)
	}))
}

// newStepPtr returns a pointer to a new step, so that appended steps keep a valid parent.
func newStepPtr(name string) *step {
	st := newStep(name)
	return &st
}

func progressNames(ch <-chan Progress) []string {
	names := make([]string, 0)
	for p := range ch {
		msg := p.Phase
		if p.Err != nil {
			msg = p.Err.Error()
		}
		names = append(names, msg)
	}
	return names
}

func verifyParseError(t *testing.T, err error, details string) {
	t.Helper()

	require.Error(t, err)
	var perr ErrParsingFormula
	require.True(t, errors.As(err, &perr), "expected ErrParsingFormula, got %T", err)
	require.Equal(t, details, perr.details)
}
