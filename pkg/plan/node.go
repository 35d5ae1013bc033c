package plan

import "github.com/aretw0/kiln/pkg/domain"

// Node is an element of a plan tree: a *Step, a Sequence, a Parallel group or a Ref.
type Node interface {
	node()
}

// Step is a single plan node wrapping one Action.
type Step struct {
	// Action is the static action. Exactly one of Action and Deferred is set.
	Action domain.Action
	// Deferred builds the action from the Context when the step is reached.
	Deferred func(*domain.Context) (domain.Action, error)
	// Requires lists groups that must complete before this step.
	Requires []Ref
	// Guard, when it reports false, completes the step without running it.
	Guard func(*domain.Context) (bool, error)
	// FreshKey receives true when the command was up to date and false when it ran.
	FreshKey string
	// Env is overlaid on the command's own environment.
	Env   map[string]string
	Label string
}

// Sequence runs its members in order.
type Sequence []Node

// Parallel imposes no order among its members.
type Parallel []Node

// Ref points at a registered group by name.
type Ref string

func (*Step) node()    {}
func (Sequence) node() {}
func (Parallel) node() {}
func (Ref) node()      {}

// Static reports whether the step's action is known without a Context.
func (s *Step) Static() bool {
	return s.Action != nil
}

// Command returns the static command of the step, if any.
func (s *Step) Command() (*domain.Command, bool) {
	c, ok := s.Action.(*domain.Command)
	return c, ok
}
