package compiler

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/aretw0/kiln/internal/dto"
	"github.com/aretw0/kiln/internal/ninja"
	"github.com/aretw0/kiln/pkg/plan"
	"github.com/aretw0/kiln/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned for plan documents that cannot be compiled.
var ErrInvalidDocument = errors.New("invalid plan document")

// Plan is a compiled plan document.
type Plan struct {
	Name string
	// Root is the group built when no target is given.
	Root     string
	Vars     map[string]any
	Types    schema.Schema
	Ninja    ninja.Options
	Registry *plan.Registry
}

// Option configures the compiler.
type Option func(*compiler)

// WithBaseDir resolves file_size operands relative to dir.
func WithBaseDir(dir string) Option {
	return func(c *compiler) {
		c.baseDir = dir
	}
}

type compiler struct {
	baseDir string
}

// Load reads and compiles the plan document at path.
func Load(path string, opts ...Option) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	p, err := Compile(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Compile decodes a YAML plan document and registers its groups.
func Compile(data []byte, opts ...Option) (*Plan, error) {
	c := &compiler{}
	for _, opt := range opts {
		opt(c)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var doc dto.PlanDocument
	if err := decode(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(doc.Groups) == 0 {
		return nil, fmt.Errorf("%w: no groups", ErrInvalidDocument)
	}

	types, err := schema.ParseTypeMap(doc.Types)
	if err != nil {
		return nil, fmt.Errorf("%w: types: %v", ErrInvalidDocument, err)
	}
	// defaults must already satisfy their declared types
	vars, err := schema.ApplyPartial(types, doc.Vars)
	if err != nil {
		return nil, fmt.Errorf("%w: vars: %w", ErrInvalidDocument, err)
	}

	reg := plan.NewRegistry()
	for _, name := range slices.Sorted(maps.Keys(doc.Groups)) {
		n, err := c.node(doc.Groups[name])
		if err != nil {
			return nil, fmt.Errorf("%w: group %q: %v", ErrInvalidDocument, name, err)
		}
		reg.Define(name, n)
	}
	if err := reg.Err(); err != nil {
		return nil, err
	}

	root := doc.Root
	if root == "" {
		if _, ok := doc.Groups["all"]; ok {
			root = "all"
		}
	}

	return &Plan{
		Name:     doc.Name,
		Root:     root,
		Vars:     vars,
		Types:    types,
		Registry: reg,
		Ninja: ninja.Options{
			RequiredVersion: doc.Ninja.RequiredVersion,
			BuildDir:        doc.Ninja.BuildDir,
			Pools:           doc.Ninja.Pools,
			Defaults:        doc.Ninja.Defaults,
			Includes:        doc.Ninja.Include,
			Subninjas:       doc.Ninja.Subninja,
			Header:          doc.Ninja.Header,
		},
	}, nil
}

// Build flattens target, or the root group when target is empty.
func (p *Plan) Build(target string) (*plan.DAG, error) {
	if target == "" {
		target = p.Root
	}
	if target == "" {
		return nil, fmt.Errorf("%w: no target given and no root group", ErrInvalidDocument)
	}
	return plan.Build(p.Registry, plan.Ref(target))
}

// Seed returns the document variables overlaid with overrides, coerced to their declared types.
func (p *Plan) Seed(overrides map[string]string) (map[string]any, error) {
	seed := maps.Clone(p.Vars)
	if seed == nil {
		seed = make(map[string]any, len(overrides))
	}
	for k, v := range overrides {
		seed[k] = v
	}
	return schema.Apply(p.Types, seed)
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func (c *compiler) node(spec dto.NodeSpec) (plan.Node, error) {
	kinds := 0
	if spec.Step != nil {
		kinds++
	}
	if spec.Sequence != nil {
		kinds++
	}
	if spec.Parallel != nil {
		kinds++
	}
	if spec.Ref != "" {
		kinds++
	}
	if kinds != 1 {
		return nil, fmt.Errorf("node must set exactly one of step, sequence, parallel and ref")
	}

	switch {
	case spec.Step != nil:
		return c.step(spec.Step)
	case spec.Ref != "":
		return plan.Ref(spec.Ref), nil
	case spec.Sequence != nil:
		members, err := c.nodes(spec.Sequence)
		if err != nil {
			return nil, err
		}
		return plan.Sequence(members), nil
	default:
		members, err := c.nodes(spec.Parallel)
		if err != nil {
			return nil, err
		}
		return plan.Parallel(members), nil
	}
}

func (c *compiler) nodes(specs []dto.NodeSpec) ([]plan.Node, error) {
	out := make([]plan.Node, len(specs))
	for i, s := range specs {
		n, err := c.node(s)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}
