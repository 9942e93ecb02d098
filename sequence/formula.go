package sequence

import (
	"regexp"
	"strings"
)

// mode tells how the members of a group run: '>' one after another, ':' all at once.
type mode rune

const (
	serial   mode = '>'
	parallel mode = ':'
)

var whitespace = regexp.MustCompile(`\s+`)

// step is a node in a parsed formula. A leaf names a phase registered with the Manager; any other
// step holds a group of members. Members of a group form a doubly linked list.
type step struct {
	phase              string
	next, prev, parent *step
	seq                group
}

// newStep returns a leaf for the named phase, or an empty group when name is "".
func newStep(name string) step {
	return step{phase: name, seq: group{mode: serial}}
}

// append adds st as the last member of the group held by s.
func (s *step) append(st step) {
	if s.seq.count == 255 {
		panic(panicStepLimit)
	}

	member := &st
	member.parent = s
	member.prev = s.seq.tail
	if s.seq.tail != nil {
		s.seq.tail.next = member
	} else {
		s.seq.head = member
	}
	s.seq.tail = member
	s.seq.count++
}

// members returns the members of the group held by s, in formula order.
func (s step) members() []*step {
	out := make([]*step, 0, s.seq.count)
	for m := s.seq.head; m != nil; m = m.next {
		out = append(out, m)
	}
	return out
}

// String renders the step as a diagram without whitespace, e.g. "(config>(database:cache)>http)".
// A group with more than one member is wrapped in parentheses, and so is a lone phase at the root.
func (s step) String() string {
	if s.seq.count == 0 {
		if s.parent == nil && s.phase != "" {
			return "(" + s.phase + ")"
		}
		return s.phase
	}

	parts := make([]string, 0, s.seq.count)
	for _, m := range s.members() {
		parts = append(parts, m.String())
	}
	diagram := strings.Join(parts, string(s.seq.mode))
	if s.seq.count > 1 {
		return "(" + diagram + ")"
	}
	return diagram
}

// Names returns the phases run by the step, in formula order. A phase that appears more than once
// in the formula is listed once per appearance.
func (s step) Names() []string {
	if s.seq.count == 0 {
		if s.phase == "" {
			return []string{}
		}
		return []string{s.phase}
	}

	names := make([]string, 0, s.seq.count)
	for _, m := range s.members() {
		names = append(names, m.Names()...)
	}
	return names
}

// count returns the number of phase runs in the step.
func (s step) count() int {
	if s.seq.count == 0 {
		return 1
	}

	var c int
	for _, m := range s.members() {
		c += m.count()
	}
	return c
}

// group holds the members of a non-leaf step. op is the operator written between the members in
// the formula, or zero while none has been seen; mode defaults to serial for groups without one.
type group struct {
	head, tail *step
	mode       mode
	op         mode
	count      uint8
}

// parse strips whitespace from form and parses it into a tree of steps rooted at the returned step.
func parse(form string) (step, error) {
	form = whitespace.ReplaceAllLiteralString(form, "")
	if form == "" {
		return newStep(""), newParseError("empty sequence")
	}

	return parseFormula([]rune(form))
}

// parseFormula builds the step tree for a formula without whitespace. Each group uses a single
// operator: "a : b > c" is rejected and must be written "(a : b) > c" or "a : (b > c)".
func parseFormula(form []rune) (step, error) {
	var (
		root   = newStep("")
		word   = make([]rune, 0, 100)
		parens int
	)

	flush := func(curr *step) {
		if len(word) > 0 {
			curr.append(newStep(string(word)))
			word = word[:0]
		}
	}

	curr := &root
	for _, r := range form {
		switch r {
		case '(':
			curr.append(newStep(""))
			curr = curr.seq.tail
			parens++
		case ')':
			if parens == 0 {
				return root, newParseError("unmatched parenthesis")
			}
			flush(curr)
			curr = curr.parent
			parens--
		case ':', '>':
			flush(curr)
			if curr.seq.op != 0 && curr.seq.op != mode(r) {
				return root, newParseError("mixed operators in group: use parentheses")
			}
			curr.seq.op = mode(r)
			curr.seq.mode = mode(r)
		default:
			if !isNameRune(r) {
				return root, newParseError("invalid character(s) in phase name")
			}
			word = append(word, r)
		}
	}

	if parens != 0 {
		return root, newParseError("unmatched parenthesis")
	}

	if len(word) > 0 && root.seq.count == 0 {
		// A formula with a single phase name is its own root.
		root.phase = string(word)
		return root, nil
	}
	flush(curr)

	return root, nil
}

// isNameRune reports whether r may appear in a phase name: 0-9, a-z, A-Z, underscore and dash.
func isNameRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '-'
}
