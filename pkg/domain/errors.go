package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycle is returned when requires edges form a cycle.
	ErrCycle = errors.New("dependency cycle")
	// ErrUnknownGroup is returned when a reference names no registered group.
	ErrUnknownGroup = errors.New("unknown group")
	// ErrDuplicateGroup is returned when a group name is registered twice.
	ErrDuplicateGroup = errors.New("duplicate group")
	// ErrOverlappingOutputs is returned when unordered commands share an output.
	ErrOverlappingOutputs = errors.New("overlapping outputs")
	// ErrDuplicateKey is returned when two steps would write the same context key.
	ErrDuplicateKey = errors.New("duplicate context key")
	ErrMissingKey   = errors.New("context key not written")
	ErrKeyRewritten = errors.New("context key written twice")
	ErrKeyType      = errors.New("context key has unexpected type")
	ErrInvalidStep  = errors.New("invalid step")

	ErrCommandFailed  = errors.New("command failed")
	ErrAssertion      = errors.New("assertion failed")
	ErrSpawn          = errors.New("cannot start process")
	ErrEmptyOutputs   = errors.New("command declares no outputs")
	ErrUnresolved     = errors.New("value cannot be resolved at serialization time")
	ErrEmptyArgv      = errors.New("command has no arguments")
	ErrStoreCorrupted = errors.New("fingerprint store corrupted")
)

// PlanError reports a structural defect of the plan. It is raised before
// execution, or when a deferred step is materialized against the Context.
type PlanError struct {
	Node string
	// Cycle lists the group path of a cycle, first element repeated at the end.
	Cycle []string
	Msg   string
	Err   error
}

func (e *PlanError) Error() string {
	var b strings.Builder
	b.WriteString("plan")
	if e.Node != "" {
		fmt.Fprintf(&b, ": %s", e.Node)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Cycle, " -> "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PlanError) Unwrap() error { return e.Err }

// RuntimeFailure reports a command or assertion that failed while executing.
type RuntimeFailure struct {
	Node     string
	Command  string
	ExitCode int
	Stderr   string
	Msg      string
	Err      error
}

func (e *RuntimeFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run: %s", e.Node)
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, ": `%s`", e.Command)
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RuntimeFailure) Unwrap() error { return e.Err }

// SerializationError reports a plan that cannot be lowered to a ninja file.
type SerializationError struct {
	Node string
	Msg  string
	Err  error
}

func (e *SerializationError) Error() string {
	var b strings.Builder
	b.WriteString("ninja")
	if e.Node != "" {
		fmt.Fprintf(&b, ": %s", e.Node)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SerializationError) Unwrap() error { return e.Err }
