package dsl

import (
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
)

// Part is anything that can be placed in a plan tree.
type Part interface {
	Node() plan.Node
}

// Ref is a handle on a registered group.
type Ref plan.Ref

func (r Ref) Node() plan.Node { return plan.Ref(r) }

type nodePart struct{ n plan.Node }

func (p nodePart) Node() plan.Node { return p.n }

// Wrap lifts a raw plan node into a Part.
func Wrap(n plan.Node) Part { return nodePart{n} }

// Seq runs parts one after the other.
func Seq(parts ...Part) Part {
	seq := make(plan.Sequence, len(parts))
	for i, p := range parts {
		seq[i] = p.Node()
	}
	return nodePart{seq}
}

// Par places parts side by side with no order among them.
func Par(parts ...Part) Part {
	par := make(plan.Parallel, len(parts))
	for i, p := range parts {
		par[i] = p.Node()
	}
	return nodePart{par}
}

// Builder manages the plan construction.
type Builder struct {
	reg *plan.Registry
}

// New creates a new plan builder.
func New() *Builder {
	return &Builder{reg: plan.NewRegistry()}
}

// Group registers p under name.
func (b *Builder) Group(name string, p Part) Ref {
	return Ref(b.reg.Define(name, p.Node()))
}

// Registry exposes the underlying registry.
func (b *Builder) Registry() *plan.Registry {
	return b.reg
}

// Build flattens the group root into a DAG.
func (b *Builder) Build(root Ref) (*plan.DAG, error) {
	return plan.Build(b.reg, plan.Ref(root))
}

// Expr returns an Expression that stores the result of fn under name.
func Expr[T any](name string, fn func(*domain.Context) (T, error)) *domain.Expression {
	return &domain.Expression{
		Name: name,
		Eval: func(c *domain.Context) (any, error) {
			return fn(c)
		},
	}
}

// Assert returns an Assertion that fails with message when fn reports false.
func Assert(message string, fn func(*domain.Context) (bool, error)) *domain.Assertion {
	return &domain.Assertion{Message: message, Check: fn}
}
