package plan

import (
	"errors"
	"fmt"

	"github.com/aretw0/kiln/pkg/domain"
)

// Registry holds named groups. A group's name is its identity: every Ref to
// the same name expands to the same sub-plan exactly once.
type Registry struct {
	groups map[string]Node
	order  []string
	errs   []error
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]Node)}
}

// Define registers n under name and returns a reference to it.
// A second definition of the same name is reported by Err and by Build.
func (r *Registry) Define(name string, n Node) Ref {
	if _, ok := r.groups[name]; ok {
		r.errs = append(r.errs, &domain.PlanError{Node: name, Err: domain.ErrDuplicateGroup})
		return Ref(name)
	}
	r.groups[name] = n
	r.order = append(r.order, name)
	return Ref(name)
}

// Lookup returns the group registered under name.
func (r *Registry) Lookup(name string) (Node, bool) {
	n, ok := r.groups[name]
	return n, ok
}

// Names returns group names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Err returns the definition errors collected so far.
func (r *Registry) Err() error {
	return errors.Join(r.errs...)
}

func (r *Registry) String() string {
	return fmt.Sprintf("registry(%d groups)", len(r.order))
}
