package bootphase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/require"
)

var errBeep = errors.New("beep")

// recorder keeps track of which steps ran, in which order, and with which arguments.
type recorder struct {
	sync.Mutex
	entered []string
	args    map[string][]any
	ctxs    map[string]context.Context
	active  int
	overlap bool
}

func newRecorder() *recorder {
	return &recorder{args: make(map[string][]any), ctxs: make(map[string]context.Context)}
}

// after returns a step that records its invocation and calls its continuation with err after d.
func (r *recorder) after(name string, d time.Duration, err error) Step {
	return NamedFunc(name, func(ctx context.Context, args []any, next Next) {
		r.Lock()
		r.entered = append(r.entered, name)
		r.args[name] = args
		r.ctxs[name] = ctx
		r.active++
		if r.active > 1 {
			r.overlap = true
		}
		r.Unlock()

		time.AfterFunc(d, func() {
			r.Lock()
			r.active--
			r.Unlock()
			next(err)
		})
	})
}

// now returns a step that records its invocation and calls its continuation with err before
// returning.
func (r *recorder) now(name string, err error) Step {
	return NamedFunc(name, func(ctx context.Context, args []any, next Next) {
		r.Lock()
		r.entered = append(r.entered, name)
		r.args[name] = args
		r.ctxs[name] = ctx
		r.Unlock()
		next(err)
	})
}

func (r *recorder) names() []string {
	r.Lock()
	defer r.Unlock()

	return append([]string(nil), r.entered...)
}

// completion counts calls to a completion callback and keeps the last error.
type completion struct {
	sync.Mutex
	calls int
	err   error
	ch    chan error
}

func newCompletion() *completion {
	return &completion{ch: make(chan error, 16)}
}

func (c *completion) done(err error) {
	c.Lock()
	c.calls++
	c.err = err
	c.Unlock()
	c.ch <- err
}

func (c *completion) count() int {
	c.Lock()
	defer c.Unlock()

	return c.calls
}

// await blocks until the completion callback fires or the test times out.
func (c *completion) await(t *testing.T) error {
	t.Helper()

	select {
	case err := <-c.ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for phase to complete")
		return nil
	}
}

// logLines returns a verbose logger and a func reporting the messages it has logged so far.
func logLines() (logr.Logger, func() []string) {
	var (
		mu    sync.Mutex
		lines []string
	)
	l := funcr.New(func(prefix, args string) {
		mu.Lock()
		lines = append(lines, args)
		mu.Unlock()
	}, funcr.Options{Verbosity: 1})

	return l, func() []string {
		mu.Lock()
		defer mu.Unlock()

		return append([]string(nil), lines...)
	}
}

// verifyMessages checks that each line contains the corresponding message, in order.
func verifyMessages(t *testing.T, lines []string, msgs ...string) {
	t.Helper()

	require.Len(t, lines, len(msgs), "log lines: %v", lines)
	for i, msg := range msgs {
		require.Truef(t, strings.Contains(lines[i], `"msg"="`+msg+`"`), "expected line %d to be %q, got %s", i, msg, lines[i])
	}
}

// event is a single notification received by recordingObserver.
type event struct {
	kind  string
	phase string
	index int
	step  string
	err   error
}

type recordingObserver struct {
	sync.Mutex
	events []event
}

func (o *recordingObserver) StepStarted(phase string, index int, step string) {
	o.Lock()
	defer o.Unlock()
	o.events = append(o.events, event{"started", phase, index, step, nil})
}

func (o *recordingObserver) StepFinished(phase string, index int, step string, _ time.Duration, err error) {
	o.Lock()
	defer o.Unlock()
	o.events = append(o.events, event{"finished", phase, index, step, err})
}

func (o *recordingObserver) PhaseFinished(phase string, _ time.Duration, err error) {
	o.Lock()
	defer o.Unlock()
	o.events = append(o.events, event{"phase", phase, -1, "", err})
}

// loadConfig is a named step used to test display names.
func loadConfig(_ context.Context, _ []any, next Next) {
	next(nil)
}

// structStep is a Step that is not a function.
type structStep struct{}

func (structStep) Run(_ context.Context, _ []any, next Next) {
	next(nil)
}

// noop is a step that completes immediately.
var noop = StepFunc(func(_ context.Context, _ []any, next Next) { next(nil) })
