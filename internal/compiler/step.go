package compiler

import (
	"fmt"

	"github.com/aretw0/kiln/internal/dto"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
	"github.com/spf13/cast"
)

func (c *compiler) step(spec *dto.StepSpec) (*plan.Step, error) {
	s := &plan.Step{Label: spec.Label, FreshKey: spec.Fresh}
	for _, r := range spec.Requires {
		s.Requires = append(s.Requires, plan.Ref(r))
	}
	if spec.When != nil {
		guard, err := compileGuard(spec.When)
		if err != nil {
			return nil, err
		}
		s.Guard = guard
	}

	actions := 0
	for _, set := range []bool{spec.Cmd != nil, spec.Expr != nil, spec.Assert != nil} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return nil, fmt.Errorf("step must set exactly one of cmd, expr and assert")
	}
	if spec.Cmd == nil && commandFieldsSet(spec) {
		return nil, fmt.Errorf("command fields set on a step without cmd")
	}

	switch {
	case spec.Cmd != nil:
		tmpl, err := compileCommand(spec)
		if err != nil {
			return nil, err
		}
		if tmpl.static() {
			cmd, err := tmpl.build(nil)
			if err != nil {
				return nil, err
			}
			s.Action = cmd
			return s, nil
		}
		s.Deferred = func(ctx *domain.Context) (domain.Action, error) {
			return tmpl.build(ctx)
		}
	case spec.Expr != nil:
		expr, err := c.expression(spec.Expr)
		if err != nil {
			return nil, err
		}
		s.Action = expr
	default:
		check, err := c.assertion(spec.Assert)
		if err != nil {
			return nil, err
		}
		s.Action = check
	}
	return s, nil
}

func commandFieldsSet(s *dto.StepSpec) bool {
	return len(s.Inputs) > 0 || len(s.Outputs) > 0 || len(s.Env) > 0 ||
		s.Dir != "" || s.Stdout != "" || s.Depfile != "" ||
		s.Description != "" || s.Shape != "" || s.Deps != "" || s.Pool != "" || s.Dyndep != "" ||
		s.Restat || s.Generator
}

func compileGuard(spec *dto.GuardSpec) (func(*domain.Context) (bool, error), error) {
	if (spec.Key == "") == (spec.Not == "") {
		return nil, fmt.Errorf("when needs exactly one of key and not")
	}
	key, negate := spec.Key, false
	if spec.Not != "" {
		key, negate = spec.Not, true
	}
	return func(c *domain.Context) (bool, error) {
		ok, err := boolValue(c, key)
		if err != nil {
			return false, err
		}
		return ok != negate, nil
	}, nil
}

func boolValue(c *domain.Context, key string) (bool, error) {
	v, err := c.Value(key)
	if err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", domain.ErrKeyType, key, err)
	}
	return b, nil
}

type arg struct {
	text   template
	when   string
	absent bool
}

func compileArg(raw any) (arg, error) {
	switch v := raw.(type) {
	case nil:
		return arg{absent: true}, nil
	case map[string]any:
		var spec dto.ConditionalArg
		if err := decode(v, &spec); err != nil {
			return arg{}, err
		}
		if spec.When == "" {
			return arg{}, fmt.Errorf("conditional argument %q has no when key", spec.Arg)
		}
		t, err := parseTemplate(spec.Arg)
		if err != nil {
			return arg{}, err
		}
		return arg{text: t, when: spec.When}, nil
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return arg{}, fmt.Errorf("argument %v: %w", v, err)
		}
		t, err := parseTemplate(s)
		if err != nil {
			return arg{}, err
		}
		return arg{text: t}, nil
	}
}

func (a arg) static() bool {
	return a.absent || (a.when == "" && a.text.static())
}

func (a arg) build(c *domain.Context) (domain.Arg, error) {
	if a.absent {
		return domain.Absent, nil
	}
	if a.when != "" {
		ok, err := boolValue(c, a.when)
		if err != nil {
			return domain.Arg{}, err
		}
		if !ok {
			return domain.Absent, nil
		}
	}
	s, raw, err := a.text.render(c)
	if err != nil {
		return domain.Arg{}, err
	}
	return domain.Arg{Value: s, Present: true, Raw: raw}, nil
}

// commandTemplate is a command whose fields may reference the Context.
type commandTemplate struct {
	argv            []arg
	inputs, outputs templates
	dir, stdout     template
	depfile         template
	env             map[string]template
	hints           domain.SchedulerHints
}

func compileCommand(spec *dto.StepSpec) (*commandTemplate, error) {
	t := &commandTemplate{
		env: make(map[string]template, len(spec.Env)),
		hints: domain.SchedulerHints{
			Shape:       spec.Shape,
			Description: spec.Description,
			Deps:        spec.Deps,
			Generator:   spec.Generator,
			Pool:        spec.Pool,
			Restat:      spec.Restat,
			Dyndep:      spec.Dyndep,
		},
	}
	for i, raw := range spec.Cmd {
		a, err := compileArg(raw)
		if err != nil {
			return nil, fmt.Errorf("cmd[%d]: %w", i, err)
		}
		t.argv = append(t.argv, a)
	}

	var err error
	if t.inputs, err = parseTemplates(spec.Inputs); err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	if t.outputs, err = parseTemplates(spec.Outputs); err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	if t.dir, err = parseTemplate(spec.Dir); err != nil {
		return nil, fmt.Errorf("dir: %w", err)
	}
	if t.stdout, err = parseTemplate(spec.Stdout); err != nil {
		return nil, fmt.Errorf("stdout: %w", err)
	}
	if t.depfile, err = parseTemplate(spec.Depfile); err != nil {
		return nil, fmt.Errorf("depfile: %w", err)
	}
	for k, v := range spec.Env {
		if t.env[k], err = parseTemplate(v); err != nil {
			return nil, fmt.Errorf("env %s: %w", k, err)
		}
	}
	return t, nil
}

func (t *commandTemplate) static() bool {
	for _, a := range t.argv {
		if !a.static() {
			return false
		}
	}
	for _, e := range t.env {
		if !e.static() {
			return false
		}
	}
	return t.inputs.static() && t.outputs.static() &&
		t.dir.static() && t.stdout.static() && t.depfile.static()
}

// build renders the command. A static template never reads c.
func (t *commandTemplate) build(c *domain.Context) (*domain.Command, error) {
	cmd := &domain.Command{Hints: t.hints}
	for _, a := range t.argv {
		v, err := a.build(c)
		if err != nil {
			return nil, err
		}
		cmd.Argv = append(cmd.Argv, v)
	}

	var err error
	if cmd.Inputs, err = t.inputs.render(c); err != nil {
		return nil, err
	}
	if cmd.Outputs, err = t.outputs.render(c); err != nil {
		return nil, err
	}
	if cmd.Dir, err = t.dir.renderString(c); err != nil {
		return nil, err
	}
	if cmd.Stdout, err = t.stdout.renderString(c); err != nil {
		return nil, err
	}
	if cmd.Depfile, err = t.depfile.renderString(c); err != nil {
		return nil, err
	}
	if len(t.env) > 0 {
		cmd.Env = make(map[string]string, len(t.env))
		for k, e := range t.env {
			if cmd.Env[k], err = e.renderString(c); err != nil {
				return nil, err
			}
		}
	}
	return cmd, nil
}

func (c *compiler) expression(spec *dto.ExprSpec) (*domain.Expression, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("expr has no name")
	}
	op, err := compileOperandSpec(spec.OperandSpec)
	if err != nil {
		return nil, fmt.Errorf("expr %s: %w", spec.Name, err)
	}
	baseDir := c.baseDir
	return &domain.Expression{
		Name:  spec.Name,
		Shell: spec.Shell,
		Eval: func(ctx *domain.Context) (any, error) {
			return op.eval(ctx, baseDir)
		},
	}, nil
}

func (c *compiler) assertion(spec *dto.AssertSpec) (*domain.Assertion, error) {
	test, ok := comparisons[spec.Op]
	if !ok {
		return nil, fmt.Errorf("assert: unknown operator %q", spec.Op)
	}
	left, err := compileOperand(spec.Left)
	if err != nil {
		return nil, fmt.Errorf("assert left: %w", err)
	}
	right, err := compileOperand(spec.Right)
	if err != nil {
		return nil, fmt.Errorf("assert right: %w", err)
	}
	msg := spec.Message
	if msg == "" {
		msg = fmt.Sprintf("%v %s %v", spec.Left, spec.Op, spec.Right)
	}
	baseDir := c.baseDir
	return &domain.Assertion{
		Message: msg,
		Shell:   spec.Shell,
		Inputs:  spec.Inputs,
		Check: func(ctx *domain.Context) (bool, error) {
			l, err := left.eval(ctx, baseDir)
			if err != nil {
				return false, err
			}
			r, err := right.eval(ctx, baseDir)
			if err != nil {
				return false, err
			}
			cmp, err := compare(l, r)
			if err != nil {
				return false, err
			}
			return test(cmp), nil
		},
	}, nil
}
