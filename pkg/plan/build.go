package plan

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/aretw0/kiln/pkg/domain"
)

// fragment is the expansion of a sub-plan: edges into it attach to heads,
// edges out of it leave from tails.
type fragment struct {
	heads []int
	tails []int
}

func (f fragment) empty() bool { return len(f.heads) == 0 }

const (
	unvisited = iota
	visiting
	expanded
)

type planner struct {
	reg      *Registry
	vertices []*Vertex
	byStep   map[*Step]int
	edges    []map[int]struct{}
	groups   map[string]fragment
	state    map[string]int
	stack    []string
	counters map[string]int
	order    []string
}

// Build flattens the group root and everything it reaches into a DAG.
// Shared groups are expanded once; requires cycles, unknown references,
// unordered writers of the same output and duplicate context keys are
// reported as *domain.PlanError.
func Build(reg *Registry, root Ref) (*DAG, error) {
	if err := reg.Err(); err != nil {
		return nil, err
	}
	p := &planner{
		reg:      reg,
		byStep:   make(map[*Step]int),
		groups:   make(map[string]fragment),
		state:    make(map[string]int),
		counters: make(map[string]int),
	}
	if _, err := p.group(string(root)); err != nil {
		return nil, err
	}

	d := &DAG{
		root:     string(root),
		vertices: p.vertices,
		groups:   p.order,
		succ:     make([][]int, len(p.vertices)),
	}
	for from, tos := range p.edges {
		for to := range tos {
			d.succ[from] = append(d.succ[from], to)
			d.vertices[to].deps = append(d.vertices[to].deps, from)
		}
		slices.Sort(d.succ[from])
	}
	for _, v := range d.vertices {
		slices.Sort(v.deps)
	}

	order := d.topoOrder()
	if len(order) != len(d.vertices) {
		return nil, &domain.PlanError{Cycle: d.findCycle(), Err: domain.ErrCycle}
	}
	d.order = order

	if err := d.checkKeys(); err != nil {
		return nil, err
	}
	if err := d.checkOutputs(); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *planner) group(name string) (fragment, error) {
	switch p.state[name] {
	case expanded:
		return p.groups[name], nil
	case visiting:
		start := slices.Index(p.stack, name)
		cycle := append(slices.Clone(p.stack[start:]), name)
		return fragment{}, &domain.PlanError{Cycle: cycle, Err: domain.ErrCycle}
	}

	n, ok := p.reg.Lookup(name)
	if !ok {
		pe := &domain.PlanError{Msg: fmt.Sprintf("group %q", name), Err: domain.ErrUnknownGroup}
		if len(p.stack) > 0 {
			pe.Node = p.stack[len(p.stack)-1]
		}
		return fragment{}, pe
	}

	p.state[name] = visiting
	p.stack = append(p.stack, name)
	frag, err := p.expand(name, n)
	p.stack = p.stack[:len(p.stack)-1]
	if err != nil {
		return fragment{}, err
	}
	p.state[name] = expanded
	p.groups[name] = frag
	p.order = append(p.order, name)
	return frag, nil
}

func (p *planner) expand(group string, n Node) (fragment, error) {
	switch n := n.(type) {
	case nil:
		return fragment{}, nil
	case Ref:
		return p.group(string(n))
	case *Step:
		return p.step(group, n)
	case Sequence:
		var out fragment
		for _, member := range n {
			f, err := p.expand(group, member)
			if err != nil {
				return fragment{}, err
			}
			if f.empty() {
				continue
			}
			if out.empty() {
				out.heads = f.heads
			} else {
				for _, t := range out.tails {
					for _, h := range f.heads {
						p.edge(t, h)
					}
				}
			}
			out.tails = f.tails
		}
		return out, nil
	case Parallel:
		var out fragment
		for _, member := range n {
			f, err := p.expand(group, member)
			if err != nil {
				return fragment{}, err
			}
			out.heads = appendUnique(out.heads, f.heads...)
			out.tails = appendUnique(out.tails, f.tails...)
		}
		return out, nil
	default:
		return fragment{}, &domain.PlanError{Node: group, Msg: fmt.Sprintf("unsupported node %T", n), Err: domain.ErrInvalidStep}
	}
}

func (p *planner) step(group string, s *Step) (fragment, error) {
	if id, ok := p.byStep[s]; ok {
		return fragment{heads: []int{id}, tails: []int{id}}, nil
	}

	var deps []int
	for _, r := range s.Requires {
		f, err := p.group(string(r))
		if err != nil {
			return fragment{}, err
		}
		deps = appendUnique(deps, f.tails...)
	}

	id := len(p.vertices)
	p.counters[group]++
	name := s.Label
	if name == "" {
		name = fmt.Sprintf("%s#%d", group, p.counters[group])
	}
	v := &Vertex{ID: id, Name: name, Group: group, Step: s}
	if err := v.validate(); err != nil {
		return fragment{}, err
	}
	p.vertices = append(p.vertices, v)
	p.edges = append(p.edges, make(map[int]struct{}))
	p.byStep[s] = id
	for _, d := range deps {
		p.edge(d, id)
	}
	return fragment{heads: []int{id}, tails: []int{id}}, nil
}

func (p *planner) edge(from, to int) {
	p.edges[from][to] = struct{}{}
}

func appendUnique(dst []int, ids ...int) []int {
	for _, id := range ids {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder is Kahn's algorithm with the ready set ordered by vertex ID, so
// the same plan always yields the same order.
func (d *DAG) topoOrder() []*Vertex {
	indeg := make([]int, len(d.vertices))
	for _, v := range d.vertices {
		indeg[v.ID] = len(v.deps)
	}

	ready := &intMinHeap{}
	for id, n := range indeg {
		if n == 0 {
			heap.Push(ready, id)
		}
	}

	out := make([]*Vertex, 0, len(d.vertices))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(int)
		out = append(out, d.vertices[id])
		for _, next := range d.succ[id] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}
	return out
}

// findCycle returns one cycle as vertex names, first name repeated at the end.
func (d *DAG) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(d.vertices))
	parent := make([]int, len(d.vertices))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range d.succ[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}
	for i := range d.vertices {
		if color[i] == white && dfs(i) {
			break
		}
	}

	slices.Reverse(cycle)
	names := make([]string, len(cycle))
	for i, id := range cycle {
		names[i] = d.vertices[id].Name
	}
	return names
}
