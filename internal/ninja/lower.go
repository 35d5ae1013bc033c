package ninja

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
)

// Options controls the top level of the generated file.
type Options struct {
	// RequiredVersion defaults to "1.10".
	RequiredVersion string
	// BuildDir defaults to "build/".
	BuildDir string
	Pools    map[string]int
	// Defaults overrides the derived default targets.
	Defaults  []string
	Includes  []string
	Subninjas []string
	// Header lines are written as comments at the top of the file.
	Header []string
	// Seed is the initial Context used to resolve deferred steps.
	Seed map[string]any
}

// Entry is one rule together with the single edge that uses it.
type Entry struct {
	// Node is the name of the first plan vertex folded into the entry.
	Node        string
	Rule        string
	Shape       string
	Lines       []string
	Outputs     []string
	Inputs      []string
	OrderOnly   []string
	Description string
	Depfile     string
	Deps        string
	Pool        string
	Dyndep      string
	Generator   bool
	Restat      bool

	vertices []*plan.Vertex
}

// File is a lowered plan ready to be written.
type File struct {
	Entries  []*Entry
	Defaults []string
	opts     Options
}

// Render lowers dag and writes it to w. Nothing is written on error.
func Render(w io.Writer, dag *plan.DAG, opts Options) error {
	f, err := Lower(dag, opts)
	if err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// Lower resolves every step of dag against a Context built from opts.Seed
// and turns the commands into ninja entries. Expressions and assertions are
// evaluated on the host unless they carry a shell form. Freshness keys read
// false, since staleness is decided by ninja.
func Lower(dag *plan.DAG, opts Options) (*File, error) {
	if opts.RequiredVersion == "" {
		opts.RequiredVersion = "1.10"
	}
	if opts.BuildDir == "" {
		opts.BuildDir = "build/"
	}
	if err := dag.CheckSeed(opts.Seed); err != nil {
		return nil, err
	}

	l := &lowering{
		dag:      dag,
		ctx:      domain.NewContext(opts.Seed),
		claims:   dag.NewClaims(),
		byOutput: make(map[string]*Entry),
		owner:    make(map[int]*Entry),
	}
	for _, v := range dag.Order() {
		if k := v.Step.FreshKey; k != "" {
			if err := l.ctx.Put(k, false); err != nil {
				return nil, &domain.SerializationError{Node: v.Name, Msg: "cannot seed freshness key", Err: err}
			}
		}
	}
	for _, v := range dag.Order() {
		if err := l.lower(v); err != nil {
			return nil, err
		}
	}
	l.orderOnly()
	for _, e := range l.entries {
		e.Rule = RuleName(e)
	}

	f := &File{Entries: l.entries, opts: opts}
	f.Defaults = l.defaults(opts.Defaults)
	return f, nil
}

type lowering struct {
	dag     *plan.DAG
	ctx     *domain.Context
	claims  *plan.Claims
	entries []*Entry
	pseudo  []string
	// byOutput maps each output path to the entry producing it.
	byOutput map[string]*Entry
	// owner maps vertex IDs to the entry they were lowered into.
	owner map[int]*Entry
}

func unresolved(v *plan.Vertex, msg string, err error) error {
	return &domain.SerializationError{Node: v.Name, Msg: msg, Err: fmt.Errorf("%w: %w", domain.ErrUnresolved, err)}
}

func (l *lowering) lower(v *plan.Vertex) error {
	if g := v.Step.Guard; g != nil {
		ok, err := g(l.ctx)
		if err != nil {
			return unresolved(v, "cannot evaluate guard", err)
		}
		if !ok {
			return nil
		}
	}

	action, err := v.Materialize(l.ctx)
	if err != nil {
		return unresolved(v, "deferred step is not resolvable before the build", err)
	}

	switch a := action.(type) {
	case *domain.Command:
		return l.command(v, a)
	case *domain.Expression:
		return l.expression(v, a)
	case *domain.Assertion:
		return l.assertion(v, a)
	}
	return &domain.SerializationError{Node: v.Name, Msg: fmt.Sprintf("unsupported action %T", action), Err: domain.ErrInvalidStep}
}

func (l *lowering) expression(v *plan.Vertex, e *domain.Expression) error {
	var value any
	switch {
	case e.Shell != "":
		value = domain.Shell{Script: e.Shell}
	case e.Eval != nil:
		var err error
		if value, err = e.Eval(l.ctx); err != nil {
			return unresolved(v, "cannot evaluate "+e.Name, err)
		}
	default:
		return &domain.SerializationError{Node: v.Name, Msg: "expression " + e.Name + " has no value", Err: domain.ErrUnresolved}
	}
	if err := l.ctx.Put(e.Name, value); err != nil {
		return unresolved(v, "cannot store "+e.Name, err)
	}
	return nil
}

func (l *lowering) assertion(v *plan.Vertex, a *domain.Assertion) error {
	if a.Shell != "" {
		target := "pseudo-" + identifier(v.Name)
		if prev := l.byOutput[target]; prev != nil {
			return &domain.SerializationError{
				Node: v.Name,
				Msg:  fmt.Sprintf("assertion target %s is already produced by %s", target, prev.Node),
				Err:  domain.ErrOverlappingOutputs,
			}
		}
		e := &Entry{
			Node:        v.Name,
			Shape:       "assert",
			Lines:       []string{a.Shell},
			Outputs:     []string{target},
			Inputs:      slices.Clone(a.Inputs),
			Description: a.Message,
		}
		l.add(v, e)
		l.pseudo = append(l.pseudo, target)
		return nil
	}
	if a.Check == nil {
		return &domain.SerializationError{Node: v.Name, Msg: "assertion has no check", Err: domain.ErrUnresolved}
	}
	ok, err := a.Check(l.ctx)
	if err != nil {
		return unresolved(v, "cannot evaluate assertion", err)
	}
	if !ok {
		return &domain.SerializationError{Node: v.Name, Msg: a.Message, Err: domain.ErrAssertion}
	}
	return nil
}

func (l *lowering) command(v *plan.Vertex, c *domain.Command) error {
	if len(c.Outputs) == 0 {
		return &domain.SerializationError{Node: v.Name, Msg: "command `" + c.Describe() + "` declares no outputs", Err: domain.ErrEmptyOutputs}
	}
	if len(c.Args()) == 0 {
		return &domain.SerializationError{Node: v.Name, Msg: "command has no arguments", Err: domain.ErrEmptyArgv}
	}
	if err := l.claims.Claim(v, c.Outputs); err != nil {
		return err
	}

	e := &Entry{
		Node:        v.Name,
		Shape:       c.Shape(),
		Lines:       commandLines(c),
		Outputs:     slices.Clone(c.Outputs),
		Inputs:      slices.Clone(c.Inputs),
		Description: c.Hints.Description,
		Depfile:     c.Depfile,
		Deps:        c.Hints.Deps,
		Pool:        c.Hints.Pool,
		Dyndep:      c.Hints.Dyndep,
		Generator:   c.Hints.Generator,
		Restat:      c.Hints.Restat,
	}

	prev := l.byOutput[c.Outputs[0]]
	if prev == nil {
		for _, out := range c.Outputs {
			if p := l.byOutput[out]; p != nil {
				prev = p
				break
			}
		}
	}
	if prev == nil {
		l.add(v, e)
		return nil
	}
	if prev.Shape == "assert" || !sameSet(prev.Outputs, e.Outputs) {
		return &domain.SerializationError{
			Node: v.Name,
			Msg:  fmt.Sprintf("writes part of the outputs of %s; a ninja edge needs the full set", prev.Node),
			Err:  domain.ErrOverlappingOutputs,
		}
	}
	fold(prev, e)
	l.owner[v.ID] = prev
	prev.vertices = append(prev.vertices, v)
	return nil
}

func (l *lowering) add(v *plan.Vertex, e *Entry) {
	e.vertices = []*plan.Vertex{v}
	l.entries = append(l.entries, e)
	l.owner[v.ID] = e
	for _, out := range e.Outputs {
		l.byOutput[out] = e
	}
}

// fold appends the commands of a later step writing the same outputs. A
// step repeating the last command is absorbed.
func fold(into, e *Entry) {
	if len(e.Lines) > len(into.Lines) || !slices.Equal(into.Lines[len(into.Lines)-len(e.Lines):], e.Lines) {
		into.Lines = append(into.Lines, e.Lines...)
	}
	for _, in := range e.Inputs {
		if !slices.Contains(into.Inputs, in) && !slices.Contains(into.Outputs, in) {
			into.Inputs = append(into.Inputs, in)
		}
	}
	into.Description = first(into.Description, e.Description)
	into.Depfile = first(into.Depfile, e.Depfile)
	into.Deps = first(into.Deps, e.Deps)
	into.Pool = first(into.Pool, e.Pool)
	into.Dyndep = first(into.Dyndep, e.Dyndep)
	into.Generator = into.Generator || e.Generator
	into.Restat = into.Restat || e.Restat
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func sameSet(a, b []string) bool {
	return slices.Equal(slices.Sorted(slices.Values(a)), slices.Sorted(slices.Values(b)))
}

// orderOnly adds the outputs of every entry a step depends on in the plan
// but does not read as a file. Steps without an entry of their own are
// walked through.
func (l *lowering) orderOnly() {
	for _, e := range l.entries {
		seen := make(map[int]bool)
		var extra []string
		var walk func(v *plan.Vertex)
		walk = func(v *plan.Vertex) {
			for _, d := range l.dag.Deps(v) {
				if seen[d.ID] {
					continue
				}
				seen[d.ID] = true
				if p, ok := l.owner[d.ID]; ok {
					if p != e {
						extra = append(extra, p.Outputs...)
					}
					continue
				}
				walk(d)
			}
		}
		for _, v := range e.vertices {
			walk(v)
		}
		if e.Dyndep != "" {
			extra = append(extra, e.Dyndep)
		}
		for _, p := range extra {
			if !slices.Contains(e.Inputs, p) && !slices.Contains(e.OrderOnly, p) && !slices.Contains(e.Outputs, p) {
				e.OrderOnly = append(e.OrderOnly, p)
			}
		}
	}
}

// defaults returns the assertion targets followed by the configured
// defaults or, without any, by the outputs no other entry consumes.
func (l *lowering) defaults(configured []string) []string {
	out := slices.Clone(l.pseudo)
	if len(configured) > 0 {
		for _, d := range configured {
			if !slices.Contains(out, d) {
				out = append(out, d)
			}
		}
		return out
	}
	consumed := make(map[string]bool)
	for _, e := range l.entries {
		for _, p := range e.Inputs {
			consumed[p] = true
		}
		for _, p := range e.OrderOnly {
			consumed[p] = true
		}
	}
	for _, e := range l.entries {
		for _, p := range e.Outputs {
			if !consumed[p] && !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// WriteTo renders the file into memory first so that a failing writer never
// sees a truncated file.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	nw := NewWriter(&buf)

	for _, h := range f.opts.Header {
		nw.Comment(h)
	}
	nw.Variable("ninja_required_version", f.opts.RequiredVersion, 0)
	nw.Variable("builddir", f.opts.BuildDir, 0)
	nw.Newline()

	if len(f.opts.Pools) > 0 {
		for _, name := range slices.Sorted(maps.Keys(f.opts.Pools)) {
			nw.Pool(name, f.opts.Pools[name])
		}
		nw.Newline()
	}
	for _, p := range f.opts.Includes {
		nw.Include(p)
	}
	for _, p := range f.opts.Subninjas {
		nw.Subninja(p)
	}
	if len(f.opts.Includes)+len(f.opts.Subninjas) > 0 {
		nw.Newline()
	}

	for _, e := range f.Entries {
		nw.Entry(e)
	}
	nw.Default(f.Defaults)
	if err := nw.Err(); err != nil {
		return 0, err
	}
	return buf.WriteTo(w)
}
