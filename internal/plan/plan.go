// Package plan reads boot plans: files that describe a set of phases, the steps in each phase and
// the sequence in which the phases run.
package plan

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mkock/bootphase"
	"github.com/mkock/bootphase/sequence"
)

// Format is the encoding of a plan file.
type Format string

const (
	// FormatYAML is the YAML plan format.
	FormatYAML Format = "yaml"

	// FormatTOML is the TOML plan format.
	FormatTOML Format = "toml"

	defaultName = "bootphase"
)

// phaseName matches the names a sequence formula can refer to.
var phaseName = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

// Plan is a boot plan.
type Plan struct {
	Name     string           `yaml:"name" toml:"name"`
	Sequence string           `yaml:"sequence" toml:"sequence"`
	Phases   map[string]Phase `yaml:"phases" toml:"phases"`
}

// Phase lists the steps of a single phase, in order of execution.
type Phase struct {
	Steps []Step `yaml:"steps" toml:"steps"`
}

// Step simulates a unit of boot work: it takes Delay to complete, and fails with Fail as its error
// message if Fail is set.
type Step struct {
	Name  string `yaml:"name" toml:"name"`
	Delay string `yaml:"delay,omitempty" toml:"delay,omitempty"`
	Fail  string `yaml:"fail,omitempty" toml:"fail,omitempty"`
}

// FormatOf returns the plan format matching the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.Errorf("unsupported plan file extension %q: must be .yaml, .yml or .toml", filepath.Ext(path))
	}
}

// Load reads and validates the plan in the file at path.
func Load(path string) (*Plan, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plan file %s", path)
	}

	return Parse(data, format)
}

// Parse decodes and validates a plan.
func Parse(data []byte, format Format) (*Plan, error) {
	p := new(Plan)

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, p)
	case FormatTOML:
		err = toml.Unmarshal(data, p)
	default:
		return nil, errors.Errorf("unsupported plan format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal %s plan", format)
	}

	if p.Name == "" {
		p.Name = defaultName
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks that the plan has a sequence and that every phase has valid steps. Phase names
// in the sequence are checked when the plan is built.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Sequence) == "" {
		return errors.New("sequence is required")
	}
	if len(p.Phases) == 0 {
		return errors.New("at least one phase is required")
	}

	for _, name := range p.PhaseNames() {
		if !phaseName.MatchString(name) {
			return errors.Errorf("phase %q: name may only contain 0-9, a-z, A-Z, underscore and dash", name)
		}
		phase := p.Phases[name]
		if len(phase.Steps) == 0 {
			return errors.Errorf("phase %q: at least one step is required", name)
		}
		for i, st := range phase.Steps {
			if st.Name == "" {
				return errors.Errorf("phase %q: step %d: name is required", name, i)
			}
			if _, err := st.delay(); err != nil {
				return errors.Wrapf(err, "phase %q: step %q", name, st.Name)
			}
		}
	}

	return nil
}

// PhaseNames returns the names of the phases in the plan, sorted alphabetically.
func (p *Plan) PhaseNames() []string {
	names := make([]string, 0, len(p.Phases))
	for name := range p.Phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates a phase for each phase in the plan and returns the sequence that runs them. Every
// phase notifies the given observers.
func (p *Plan) Build(observers ...bootphase.Observer) (sequence.Instance, error) {
	mgr := sequence.New(p.Name)

	for _, name := range p.PhaseNames() {
		steps := make([]bootphase.Step, 0, len(p.Phases[name].Steps))
		for _, st := range p.Phases[name].Steps {
			s, err := st.build()
			if err != nil {
				return sequence.Instance{}, errors.Wrapf(err, "phase %q", name)
			}
			steps = append(steps, s)
		}

		phase, err := bootphase.FromSlice(steps)
		if err != nil {
			return sequence.Instance{}, errors.Wrapf(err, "failed to build phase %q", name)
		}
		phase = phase.WithName(name)
		for _, o := range observers {
			phase = phase.WithObserver(o)
		}
		mgr.Register(name, phase)
	}

	i, err := mgr.Sequence(p.Sequence)
	if err != nil {
		return sequence.Instance{}, errors.Wrap(err, "invalid sequence")
	}

	return i, nil
}

// Unreferenced returns the phases of the plan that i never runs, sorted alphabetically.
func (p *Plan) Unreferenced(i sequence.Instance) []string {
	used := make(map[string]bool)
	for _, name := range i.PhaseNames() {
		used[name] = true
	}

	var unused []string
	for _, name := range p.PhaseNames() {
		if !used[name] {
			unused = append(unused, name)
		}
	}
	return unused
}

func (s Step) delay() (time.Duration, error) {
	if s.Delay == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s.Delay)
	if err != nil {
		return 0, errors.Wrap(err, "invalid delay")
	}
	if d < 0 {
		return 0, errors.Errorf("invalid delay %q: must not be negative", s.Delay)
	}
	return d, nil
}

// build returns a bootphase.Step that completes after the step's delay, or as soon as ctx is done.
func (s Step) build() (bootphase.Step, error) {
	d, err := s.delay()
	if err != nil {
		return nil, errors.Wrapf(err, "step %q", s.Name)
	}

	var fail error
	if s.Fail != "" {
		fail = errors.New(s.Fail)
	}

	return bootphase.NamedFunc(s.Name, func(ctx context.Context, args []any, next bootphase.Next) {
		logr.FromContextOrDiscard(ctx).V(2).Info("running step", "step", s.Name, "delay", d, "args", args)

		if d == 0 {
			next(fail)
			return
		}

		go func() {
			t := time.NewTimer(d)
			defer t.Stop()

			select {
			case <-t.C:
				next(fail)
			case <-ctx.Done():
				next(ctx.Err())
			}
		}()
	}), nil
}
