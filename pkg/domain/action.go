package domain

import (
	"path/filepath"
	"strings"
)

// ActionKind identifies the variant of an Action.
type ActionKind string

const (
	KindCommand    ActionKind = "command"
	KindExpression ActionKind = "expression"
	KindAssertion  ActionKind = "assertion"
	// KindDeferred is reported for steps whose action was never materialized.
	KindDeferred ActionKind = "deferred"
)

// Action is the leaf unit of work carried by a plan step.
// The set of implementations is closed: *Command, *Expression and *Assertion.
type Action interface {
	Kind() ActionKind
	Describe() string
	isAction()
}

// Arg is a single argv entry. A zero Arg is absent and is dropped before the
// command runs or is serialized.
type Arg struct {
	Value   string
	Present bool
	// Raw marks shell syntax the ninja backend must not quote.
	Raw bool
}

// Absent is the sentinel for an argument that must not appear on the command line.
var Absent = Arg{}

// Some returns a present argument.
func Some(v string) Arg {
	return Arg{Value: v, Present: true}
}

// When returns v if cond holds, Absent otherwise.
func When(cond bool, v string) Arg {
	if !cond {
		return Absent
	}
	return Some(v)
}

// Args converts plain strings into present arguments.
func Args(values ...string) []Arg {
	out := make([]Arg, len(values))
	for i, v := range values {
		out[i] = Some(v)
	}
	return out
}

// SchedulerHints are attributes only the ninja serializer consumes.
type SchedulerHints struct {
	// Shape names the rule family. Defaults to the program's base name.
	Shape       string
	Description string
	// Deps is the depfile style understood by the scheduler ("gcc" or "msvc").
	Deps      string
	Generator bool
	Pool      string
	Restat    bool
	Dyndep    string
}

// Command is an external program invocation with declared read and write sets.
type Command struct {
	Argv    []Arg
	Inputs  []string
	Outputs []string
	Dir     string
	// Stdout, when set, receives the captured standard output of the program.
	Stdout  string
	Env     map[string]string
	Depfile string
	Hints   SchedulerHints
}

func (c *Command) Kind() ActionKind { return KindCommand }
func (*Command) isAction()          {}

// Args returns the argv with absent entries removed.
func (c *Command) Args() []string {
	out := make([]string, 0, len(c.Argv))
	for _, a := range c.Argv {
		if a.Present {
			out = append(out, a.Value)
		}
	}
	return out
}

// Describe renders the command line for diagnostics.
func (c *Command) Describe() string {
	return strings.Join(c.Args(), " ")
}

// Shape returns the rule family name used when serializing.
func (c *Command) Shape() string {
	if c.Hints.Shape != "" {
		return c.Hints.Shape
	}
	args := c.Args()
	if len(args) == 0 {
		return "empty"
	}
	return filepath.Base(args[0])
}

// Expression computes a value from the Context and stores it under Name.
type Expression struct {
	Name string
	Eval func(*Context) (any, error)
	// Shell, when set, is a shell snippet printing the same value. The ninja
	// backend stores a Shell value under Name instead of calling Eval.
	Shell string
}

func (e *Expression) Kind() ActionKind { return KindExpression }
func (e *Expression) Describe() string { return "expr " + e.Name }
func (*Expression) isAction()          {}

// Assertion aborts the plan with Message when Check reports false.
type Assertion struct {
	Message string
	Check   func(*Context) (bool, error)
	// Shell, when set, is a command that exits non-zero when the assertion
	// fails. The ninja backend emits it as a pseudo target reading Inputs.
	Shell  string
	Inputs []string
}

func (a *Assertion) Kind() ActionKind { return KindAssertion }
func (a *Assertion) Describe() string { return "assert " + a.Message }
func (*Assertion) isAction()          {}

// Shell is a Context value known only when the scheduler runs the build.
// It renders as command substitution.
type Shell struct {
	Script string
}

func (s Shell) String() string { return "$(" + s.Script + ")" }
