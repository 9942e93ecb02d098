package sequence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkock/bootphase"
)

// calleeDef keeps track of how the callee decided to wait for the sequence to finish. Possible
// values: calleeNone (undefined), calleeWait (Agent.Wait() was called) and calleeProg
// (Agent.Progress() was called).
type calleeDef uint8

const (
	calleeNone calleeDef = iota
	calleeWait
	calleeProg
)

// Progress is communicated on the channel returned by Agent.Progress and provides feedback on the
// progress of the boot sequence: the name of the phase that was last executed, along with an
// optional error if the phase failed. Err is nil on success.
type Progress struct {
	Phase string
	Err   error
}

// Error returns the error message for the receiver, or an empty string if there is no error.
func (p Progress) Error() string {
	if p.Err == nil {
		return ""
	}
	return p.Err.Error()
}

// Manager holds the named phases of a single boot sequence.
type Manager struct {
	sync.Mutex // Protects field phases.

	name   string
	phases map[string]*bootphase.Phase
}

// New returns a new boot sequence Manager without any phases.
func New(name string) *Manager {
	return &Manager{name: name, phases: make(map[string]*bootphase.Phase)}
}

// Name returns the name of the boot sequence.
func (m *Manager) Name() string {
	return m.name
}

// Register registers a phase under the given name. If a phase with the given name already exists,
// it is replaced. Unless the phase already has a name, it is named after its registration, so
// that its diagnostics can be told apart from those of other phases.
func (m *Manager) Register(name string, p *bootphase.Phase) {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.phases[name]; !ok && len(m.phases) == 65535 {
		panic(panicPhaseLimit)
	}

	if p != nil && p.Name() == "" {
		p = p.WithName(name)
	}
	m.phases[name] = p
}

// PhaseCount returns the number of phases currently registered with the Manager.
func (m *Manager) PhaseCount() int {
	m.Lock()
	defer m.Unlock()

	return len(m.phases)
}

// PhaseNames returns the name of each registered phase, sorted alphabetically.
func (m *Manager) PhaseNames() []string {
	m.Lock()
	defer m.Unlock()

	ns := make([]string, 0, len(m.phases))
	for name := range m.phases {
		ns = append(ns, name)
	}
	sort.Strings(ns)

	return ns
}

// Sequence takes a formula and returns an Instance for running the phases it names. Phase names
// are separated by '>' to run them in series, or by ':' to run them concurrently. Parentheses
// group phases, ie. "config > (database : cache) > http".
// Sequence returns an ErrParsingFormula if the formula is invalid or names an unregistered phase.
func (m *Manager) Sequence(form string) (Instance, error) {
	m.Lock()
	defer m.Unlock()

	if len(m.phases) == 0 {
		return Instance{}, EmptySequenceError(m.name)
	}

	root, err := parse(form)
	if err != nil {
		return Instance{}, err
	}

	names := root.Names()
	if len(names) == 0 {
		return Instance{}, newParseError("empty sequence")
	}

	phases := make(map[string]*bootphase.Phase, len(names))
	for _, name := range names {
		p, ok := m.phases[name]
		if !ok {
			return Instance{}, newParseError("unknown phase: \"" + name + "\"")
		}
		if p == nil {
			return Instance{}, NilPhaseError(name)
		}
		phases[name] = p
	}

	return Instance{name: m.name, root: root, phases: phases}, nil
}

// Instance contains the parsed sequence of phases, along with the phases themselves as they were
// registered at the time Manager.Sequence was called. An Instance may be started any number of
// times.
type Instance struct {
	name   string
	root   step
	phases map[string]*bootphase.Phase
}

// CountSteps returns the number of phases in the sequence, counting each occurrence.
func (i Instance) CountSteps() int {
	return i.root.count()
}

// PhaseNames returns the names of the phases the sequence runs, in formula order. A phase named more
// than once in the formula is listed once.
func (i Instance) PhaseNames() []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(i.phases))
	for _, name := range i.root.Names() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// String returns the sequence diagram, ie. "(config>(database:cache)>http)".
func (i Instance) String() string {
	return i.root.String()
}

// Up starts the boot sequence in the background and returns an Agent for keeping track of it.
// Every phase is invoked with ctx and args. The logger found on ctx, if any, receives diagnostics
// from the sequence and from every phase that has no logger of its own.
func (i Instance) Up(ctx context.Context, args ...any) *Agent {
	a := &Agent{
		i:    i,
		args: args,
		prog: make(chan Progress, i.CountSteps()),
		log:  logr.FromContextOrDiscard(ctx).WithValues("sequence", i.name, "run", uuid.NewString()),
	}
	go a.exec(logr.NewContext(ctx, a.log))

	return a
}

// Agent represents a single run of a boot sequence. It keeps track of progress and handles
// execution of the phases in the sequence.
type Agent struct {
	sync.Mutex               // Controls access to Agent.callee and Agent.isDone.
	i          Instance      // Sequence being run.
	args       []any         // Arguments forwarded to every phase.
	callee     calleeDef     // Did client call Wait/Progress?
	isDone     bool          // Did sequence execution complete?
	prog       chan Progress // Progress reporting.
	log        logr.Logger
}

// calleeIs sets the callee to the provided value. Always use this method to change callee to avoid
// data races. It panics if the callee has already been set.
func (a *Agent) calleeIs(c calleeDef) {
	a.Lock()
	defer a.Unlock()

	if a.callee != calleeNone {
		panic(panicCallee)
	}
	a.callee = c
}

// Progress returns a channel that receives a Progress report every time a phase in the boot
// sequence has completed. The channel is closed when the sequence has finished. In case of an
// error, no further phases are started, so the last reports received will contain the error.
func (a *Agent) Progress() <-chan Progress {
	a.calleeIs(calleeProg)
	return a.prog
}

// Wait blocks until execution of the boot sequence has completed.
// It returns the first error reported by any phase in the sequence.
func (a *Agent) Wait() error {
	a.calleeIs(calleeWait)

	var err error
	for p := range a.prog {
		if p.Err != nil && err == nil {
			err = p.Err
		}
	}

	return err
}

// Done reports whether the sequence has finished executing.
func (a *Agent) Done() bool {
	a.Lock()
	defer a.Unlock()

	return a.isDone
}

// report sends a progress report for the named phase. The progress channel has room for one
// report per phase, so report never blocks.
func (a *Agent) report(name string, err error) {
	if name == "" {
		return
	}
	a.prog <- Progress{name, err}
}

// exec runs through the sequence step by step and reports progress after each phase.
func (a *Agent) exec(ctx context.Context) {
	defer func() {
		a.Lock()
		a.isDone = true
		a.Unlock()
		close(a.prog)
	}()

	start := time.Now()
	a.log.V(1).Info("starting boot sequence", "diagram", a.i.String())

	if err := a.execStep(ctx, &a.i.root); err != nil {
		a.log.Error(err, "boot sequence failed", "elapsed", time.Since(start))
		return
	}
	a.log.V(1).Info("finished boot sequence", "elapsed", time.Since(start))
}

// execStep executes a single step. It acts recursively and therefore executes every step in every
// group, in the correct order. A Progress report is sent after each phase. Serial groups stop at
// the first error. In parallel groups, every phase that has started runs to completion even if one
// of them reports an error.
func (a *Agent) execStep(ctx context.Context, st *step) error {
	if err := ctx.Err(); err != nil {
		for _, name := range st.Names() {
			a.report(name, err)
		}
		return err
	}

	if st.seq.count == 0 {
		if st.phase == "" {
			return nil
		}
		a.log.V(1).Info("entering phase", "phase", st.phase)
		err := a.i.phases[st.phase].Wait(ctx, a.args...)
		a.report(st.phase, err)
		return err
	}

	switch st.seq.mode {
	case serial:
		for curr := st.seq.head; curr != nil; curr = curr.next {
			if err := a.execStep(ctx, curr); err != nil {
				return err
			}
		}
		return nil
	case parallel:
		var g errgroup.Group
		for curr := st.seq.head; curr != nil; curr = curr.next {
			this := curr
			g.Go(func() error {
				return a.execStep(ctx, this)
			})
		}
		return g.Wait()
	default:
		panic(panicUnknownMode)
	}
}

// Verify that Progress satisfies the error interface.
var _ error = Progress{}
