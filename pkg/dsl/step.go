package dsl

import (
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
)

// StepBuilder provides a fluent API for configuring a plan step.
type StepBuilder struct {
	step *plan.Step
}

// Do starts a step around a static action.
func Do(action domain.Action) *StepBuilder {
	return &StepBuilder{step: &plan.Step{Action: action}}
}

// Run starts a step around a command builder.
func Run(c *CommandBuilder) *StepBuilder {
	return Do(c.Command())
}

// Defer starts a step whose action is built from the Context when reached.
func Defer(fn func(*domain.Context) (domain.Action, error)) *StepBuilder {
	return &StepBuilder{step: &plan.Step{Deferred: fn}}
}

// DeferCmd is Defer for steps that always produce a command.
func DeferCmd(fn func(*domain.Context) (*CommandBuilder, error)) *StepBuilder {
	return Defer(func(c *domain.Context) (domain.Action, error) {
		cb, err := fn(c)
		if err != nil {
			return nil, err
		}
		return cb.Command(), nil
	})
}

// Requires adds groups that must complete first.
func (s *StepBuilder) Requires(refs ...Ref) *StepBuilder {
	for _, r := range refs {
		s.step.Requires = append(s.step.Requires, plan.Ref(r))
	}
	return s
}

// When sets the guard.
func (s *StepBuilder) When(fn func(*domain.Context) (bool, error)) *StepBuilder {
	s.step.Guard = fn
	return s
}

// If runs the step only when the boolean context key is true.
func (s *StepBuilder) If(key string) *StepBuilder {
	k := domain.NewKey[bool](key)
	return s.When(func(c *domain.Context) (bool, error) {
		return domain.Get(c, k)
	})
}

// Unless runs the step only when the boolean context key is false.
func (s *StepBuilder) Unless(key string) *StepBuilder {
	k := domain.NewKey[bool](key)
	return s.When(func(c *domain.Context) (bool, error) {
		v, err := domain.Get(c, k)
		return !v, err
	})
}

// Fresh names the context key that records whether the command was up to date.
func (s *StepBuilder) Fresh(key string) *StepBuilder {
	s.step.FreshKey = key
	return s
}

// Env overlays one variable on the command environment.
func (s *StepBuilder) Env(key, value string) *StepBuilder {
	if s.step.Env == nil {
		s.step.Env = make(map[string]string)
	}
	s.step.Env[key] = value
	return s
}

func (s *StepBuilder) Label(label string) *StepBuilder {
	s.step.Label = label
	return s
}

// Step returns the configured step.
func (s *StepBuilder) Step() *plan.Step {
	return s.step
}

func (s *StepBuilder) Node() plan.Node {
	return s.step
}
