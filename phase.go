package bootphase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// beforeFirst is the cursor value of an invocation that has not yet entered its first step.
const beforeFirst int64 = -1

// Phase is an immutable, ordered list of steps that run in series every time the phase is
// invoked. A Phase is safe for concurrent use: each invocation keeps its own state.
type Phase struct {
	name      string
	steps     []Step
	names     []string
	logger    *logr.Logger
	observers observers
}

// New returns a Phase that runs the given steps in order.
// It returns an InsufficientInputError if no steps are given, and an InvalidStepError if any of
// them is nil. No step is run by New.
func New(steps ...Step) (*Phase, error) {
	return FromSlice(steps)
}

// FromSlice is like New, but takes the steps as a slice. The slice is copied, so later changes
// to it do not affect the Phase.
func FromSlice(steps []Step) (*Phase, error) {
	if len(steps) == 0 {
		return nil, InsufficientInputError("must provide at least one step")
	}

	p := &Phase{
		steps: make([]Step, len(steps)),
		names: make([]string, len(steps)),
	}
	for i, s := range steps {
		if isNil(s) {
			return nil, InvalidStepError(i)
		}
		p.steps[i] = s
		p.names[i] = stepName(s)
	}

	return p, nil
}

// MustNew is like New but panics if the phase cannot be built.
func MustNew(steps ...Step) *Phase {
	p, err := New(steps...)
	if err != nil {
		panic(err)
	}
	return p
}

// WithName returns a copy of the receiver with the given name. The name identifies the phase in
// diagnostics, in metrics and when the phase is used as a step of another phase.
func (p *Phase) WithName(name string) *Phase {
	c := *p
	c.name = name
	return &c
}

// WithLogger returns a copy of the receiver that writes diagnostics to l instead of to the logger
// found on the invocation context.
func (p *Phase) WithLogger(l logr.Logger) *Phase {
	c := *p
	c.logger = &l
	return &c
}

// WithObserver returns a copy of the receiver that also notifies o about its progress.
func (p *Phase) WithObserver(o Observer) *Phase {
	c := *p
	c.observers = append(p.observers[:len(p.observers):len(p.observers)], o)
	return &c
}

// Name returns the name given with WithName, or an empty string.
func (p *Phase) Name() string {
	return p.name
}

// Len returns the number of steps in the phase.
func (p *Phase) Len() int {
	return len(p.steps)
}

// StepNames returns the display name of each step, in order of execution.
func (p *Phase) StepNames() []string {
	names := make([]string, len(p.names))
	copy(names, p.names)
	return names
}

// label is the name used for the phase in diagnostics.
func (p *Phase) label() string {
	if p.name == "" {
		return anonymous
	}
	return p.name
}

func (p *Phase) log(ctx context.Context) logr.Logger {
	if p.logger != nil {
		return *p.logger
	}
	return logr.FromContextOrDiscard(ctx)
}

// Invoke runs the steps of the phase in order. Every step receives ctx, its own copy of args, and a
// continuation. The next step starts only once the previous one has called its continuation with a
// nil error. done is called exactly once: with the first error reported by a step, or with nil
// after the last step.
//
// Invoke returns as soon as a step defers its work; the remaining steps then run from whichever
// goroutine calls the continuation. A step that panics instead of reporting an error is not
// recovered: the panic propagates to the caller of Invoke (or of the continuation), and done is
// never called.
//
// Invoke panics if done is nil.
func (p *Phase) Invoke(ctx context.Context, done Next, args ...any) {
	if done == nil {
		panic(panicNilDone)
	}

	inv := &invocation{
		phase: p,
		ctx:   ctx,
		args:  make([]any, len(args)),
		done:  done,
		began: time.Now(),
	}
	copy(inv.args, args)
	inv.log = p.log(ctx).WithValues("phase", p.label(), "invocation", uuid.NewString())
	inv.cursor.Store(beforeFirst)

	inv.advance(beforeFirst, nil)
}

// Run invokes the phase with the given args, calling next when it completes. Run makes a Phase
// usable as a Step of another Phase.
func (p *Phase) Run(ctx context.Context, args []any, next Next) {
	p.Invoke(ctx, next, args...)
}

// Wait invokes the phase and blocks until it completes, returning the error reported by the
// failing step, if any. If ctx is done first, Wait returns ctx.Err() without waiting for the
// running step; the invocation itself is not interrupted.
func (p *Phase) Wait(ctx context.Context, args ...any) error {
	result := make(chan error, 1)
	p.Invoke(ctx, func(err error) { result <- err }, args...)

	select {
	case err := <-result:
		return err
	default:
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// invocation is the state of a single call to Phase.Invoke. It is never shared between
// invocations.
type invocation struct {
	phase     *Phase
	ctx       context.Context
	args      []any
	done      Next
	log       logr.Logger
	cursor    atomic.Int64 // Index of the running step; only ever moves forward by one.
	began     time.Time
	stepBegan time.Time
}

// continuation returns the Next func handed to the step at index idx.
func (inv *invocation) continuation(idx int64) Next {
	return func(err error) {
		inv.advance(idx, err)
	}
}

// advance moves the cursor from the step at index from to the following one, provided no other
// call has done so already. A non-nil err ends the invocation. Otherwise, the next step is run, or
// the invocation completes if from was the last step.
func (inv *invocation) advance(from int64, err error) {
	p := inv.phase

	if !inv.cursor.CompareAndSwap(from, from+1) {
		inv.log.V(1).Info("ignoring repeated continuation", "step", p.names[from], "index", from)
		return
	}

	if from != beforeFirst {
		p.observers.StepFinished(p.label(), int(from), p.names[from], time.Since(inv.stepBegan), err)
	}

	if err != nil {
		inv.log.V(1).Info("step returned an error", "step", p.names[from], "index", from, "error", err.Error())
		p.observers.PhaseFinished(p.label(), time.Since(inv.began), err)
		inv.done(err)
		return
	}

	if from != beforeFirst {
		inv.log.V(1).Info("finished step", "step", p.names[from], "index", from)
	}

	idx := from + 1
	if idx == int64(len(p.steps)) {
		inv.log.V(1).Info("finished all steps")
		p.observers.PhaseFinished(p.label(), time.Since(inv.began), nil)
		inv.done(nil)
		return
	}

	inv.log.V(1).Info("entering step", "step", p.names[idx], "index", idx)
	p.observers.StepStarted(p.label(), int(idx), p.names[idx])
	inv.stepBegan = time.Now()
	p.steps[idx].Run(inv.ctx, append([]any(nil), inv.args...), inv.continuation(idx))
}

// Verify that Phase satisfies the Step interface.
var _ Step = (*Phase)(nil)
