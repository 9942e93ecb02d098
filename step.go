package bootphase

import (
	"context"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// closureName matches the symbol suffix the compiler gives to function literals, ie. "func1" or
// "Outer.func2.3".
var closureName = regexp.MustCompile(`(^|\.)func\d+(\.\d+)*$`)

// Next is the continuation a Step calls exactly once to signal that it has completed. A non-nil
// error stops the phase. Next is also the type of the completion callback given to Phase.Invoke.
type Next func(err error)

// Step is a single asynchronous unit of work in a Phase. Run receives the arguments forwarded by
// the caller of Phase.Invoke, unchanged, followed by the continuation it must call when done.
// Run may return before calling next; next may be called from any goroutine.
type Step interface {
	Run(ctx context.Context, args []any, next Next)
}

// StepFunc adapts an ordinary function to the Step interface.
type StepFunc func(ctx context.Context, args []any, next Next)

// Run calls f(ctx, args, next).
func (f StepFunc) Run(ctx context.Context, args []any, next Next) {
	f(ctx, args, next)
}

// namer is implemented by steps that know their own display name.
type namer interface {
	Name() string
}

// namedStep attaches a display name to a Step.
type namedStep struct {
	name string
	Step
}

// Name returns the display name of the step.
func (n namedStep) Name() string {
	return n.name
}

// Named returns a Step that runs s and reports name in diagnostics.
func Named(name string, s Step) Step {
	return namedStep{name, s}
}

// NamedFunc is a shorthand for Named(name, StepFunc(fn)).
func NamedFunc(name string, fn func(ctx context.Context, args []any, next Next)) Step {
	return namedStep{name, StepFunc(fn)}
}

// isNil reports whether s cannot be run: it is a nil interface, a typed nil func or pointer, or a
// named wrapper around one of those.
func isNil(s Step) bool {
	if s == nil {
		return true
	}
	if n, ok := s.(namedStep); ok {
		return isNil(n.Step)
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Map, reflect.Chan, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// stepName returns the best-effort display name of s, or "anonymous".
func stepName(s Step) string {
	if n, ok := s.(namer); ok {
		if name := n.Name(); name != "" {
			return name
		}
		if ns, ok := s.(namedStep); ok {
			return stepName(ns.Step)
		}
		return anonymous
	}

	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Func {
		return funcName(v.Pointer())
	}

	if name := reflect.Indirect(v).Type().Name(); name != "" {
		return name
	}
	return anonymous
}

// funcName resolves the symbol name of the function at pc, without its package path.
// Function literals have no meaningful name and resolve to "anonymous".
func funcName(pc uintptr) string {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return anonymous
	}

	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")

	if name == "" || closureName.MatchString(name) {
		return anonymous
	}
	return name
}
