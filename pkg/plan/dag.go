package plan

import (
	"fmt"

	"github.com/aretw0/kiln/pkg/domain"
)

// Vertex is one step of a flattened plan.
type Vertex struct {
	ID int
	// Name is the step label, or "<group>#<n>" for unlabeled steps.
	Name  string
	Group string
	Step  *Step
	deps  []int
}

func (v *Vertex) validate() error {
	s := v.Step
	switch {
	case s.Action == nil && s.Deferred == nil:
		return &domain.PlanError{Node: v.Name, Msg: "step has no action", Err: domain.ErrInvalidStep}
	case s.Action != nil && s.Deferred != nil:
		return &domain.PlanError{Node: v.Name, Msg: "step has both a static and a deferred action", Err: domain.ErrInvalidStep}
	case s.FreshKey != "" && s.Action != nil && s.Action.Kind() != domain.KindCommand:
		return &domain.PlanError{Node: v.Name, Msg: "freshness key on a non-command step", Err: domain.ErrInvalidStep}
	}
	return nil
}

// DAG is a flattened, acyclic plan with a fixed execution order.
type DAG struct {
	root     string
	vertices []*Vertex
	order    []*Vertex
	succ     [][]int
	groups   []string
}

func (d *DAG) Root() string { return d.root }

// Order returns every vertex in execution order.
func (d *DAG) Order() []*Vertex {
	out := make([]*Vertex, len(d.order))
	copy(out, d.order)
	return out
}

func (d *DAG) Len() int { return len(d.vertices) }

// Vertex returns the vertex with the given ID.
func (d *DAG) Vertex(id int) *Vertex { return d.vertices[id] }

// Groups returns the expanded group names, dependencies first.
func (d *DAG) Groups() []string {
	out := make([]string, len(d.groups))
	copy(out, d.groups)
	return out
}

// Deps returns the direct predecessors of v.
func (d *DAG) Deps(v *Vertex) []*Vertex {
	out := make([]*Vertex, len(v.deps))
	for i, id := range v.deps {
		out[i] = d.vertices[id]
	}
	return out
}

// Dependents returns the direct successors of v.
func (d *DAG) Dependents(v *Vertex) []*Vertex {
	out := make([]*Vertex, len(d.succ[v.ID]))
	for i, id := range d.succ[v.ID] {
		out[i] = d.vertices[id]
	}
	return out
}

// Sinks returns the vertices nothing depends on, in execution order.
func (d *DAG) Sinks() []*Vertex {
	var out []*Vertex
	for _, v := range d.order {
		if len(d.succ[v.ID]) == 0 {
			out = append(out, v)
		}
	}
	return out
}

// Reaches reports whether a path leads from "from" to "to".
func (d *DAG) Reaches(from, to *Vertex) bool {
	if from.ID == to.ID {
		return true
	}
	seen := make([]bool, len(d.vertices))
	queue := []int{from.ID}
	seen[from.ID] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range d.succ[cur] {
			if next == to.ID {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Ordered reports whether one of a and b depends on the other.
func (d *DAG) Ordered(a, b *Vertex) bool {
	return d.Reaches(a, b) || d.Reaches(b, a)
}

// writes lists the context keys v writes that are known before execution.
func writes(v *Vertex) []string {
	var keys []string
	if v.Step.FreshKey != "" {
		keys = append(keys, v.Step.FreshKey)
	}
	if e, ok := v.Step.Action.(*domain.Expression); ok {
		keys = append(keys, e.Name)
	}
	return keys
}

func (d *DAG) checkKeys() error {
	owners := make(map[string]string)
	for _, v := range d.order {
		for _, key := range writes(v) {
			if prev, ok := owners[key]; ok {
				return &domain.PlanError{
					Node: v.Name,
					Msg:  fmt.Sprintf("key %q already written by %s", key, prev),
					Err:  domain.ErrDuplicateKey,
				}
			}
			owners[key] = v.Name
		}
	}
	return nil
}

// CheckSeed rejects seed variables that a step would write again.
func (d *DAG) CheckSeed(seed map[string]any) error {
	if len(seed) == 0 {
		return nil
	}
	for _, v := range d.order {
		for _, key := range writes(v) {
			if _, ok := seed[key]; ok {
				return &domain.PlanError{
					Node: v.Name,
					Msg:  fmt.Sprintf("key %q is also a seed variable", key),
					Err:  domain.ErrDuplicateKey,
				}
			}
		}
	}
	return nil
}

func (d *DAG) checkOutputs() error {
	claims := d.NewClaims()
	for _, v := range d.order {
		if c, ok := v.Step.Command(); ok {
			if err := claims.Claim(v, c.Outputs); err != nil {
				return err
			}
		}
	}
	return nil
}

// Claims tracks which vertex writes which path during one pass over the DAG.
// Deferred commands only reveal their outputs when materialized, so the
// executor and the serializer claim them as they go.
type Claims struct {
	dag    *DAG
	owners map[string][]*Vertex
}

func (d *DAG) NewClaims() *Claims {
	return &Claims{dag: d, owners: make(map[string][]*Vertex)}
}

// Claim records that v writes outputs. It fails when another vertex that is
// not ordered with v already claimed one of them.
func (c *Claims) Claim(v *Vertex, outputs []string) error {
	for _, out := range outputs {
		for _, owner := range c.owners[out] {
			if owner.ID == v.ID {
				continue
			}
			if !c.dag.Ordered(owner, v) {
				return &domain.PlanError{
					Node: v.Name,
					Msg:  fmt.Sprintf("%q is also written by %s", out, owner.Name),
					Err:  domain.ErrOverlappingOutputs,
				}
			}
		}
	}
	for _, out := range outputs {
		c.owners[out] = append(c.owners[out], v)
	}
	return nil
}
