package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kernelPlan = `
name: kernel
root: all
vars:
  TARGET: d7os
  DEBUG: false
ninja:
  builddir: out/
  defaults: [build/kernel.bin]
  pools: {link: 1}
groups:
  codegen:
    step:
      cmd: [constcodegen, -t, build/]
      inputs: [constants.toml]
      outputs: [build/constants.rs]
  all:
    sequence:
      - ref: codegen
      - step:
          label: link
          cmd: [ld, {arg: -g, when: DEBUG}, null, -o, "build/${TARGET}.elf"]
          outputs: ["build/${TARGET}.elf"]
          fresh: kernel_fresh
          pool: link
      - step:
          label: copy
          when: {not: kernel_fresh}
          cmd: [cp, "build/${TARGET}.elf", build/kernel.bin]
          inputs: ["build/${TARGET}.elf"]
          outputs: [build/kernel.bin]
`

func vertex(t *testing.T, dag *plan.DAG, name string) *plan.Vertex {
	t.Helper()
	for _, v := range dag.Order() {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("no vertex %q", name)
	return nil
}

func seed(t *testing.T, p *Plan, overrides map[string]string) map[string]any {
	t.Helper()
	vars, err := p.Seed(overrides)
	require.NoError(t, err)
	return vars
}

func TestCompile_KernelPlan(t *testing.T) {
	p, err := Compile([]byte(kernelPlan))
	require.NoError(t, err)
	assert.Equal(t, "kernel", p.Name)
	assert.Equal(t, "out/", p.Ninja.BuildDir)
	assert.Equal(t, map[string]int{"link": 1}, p.Ninja.Pools)

	dag, err := p.Build("")
	require.NoError(t, err)

	var names []string
	for _, v := range dag.Order() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"codegen#1", "link", "copy"}, names)

	codegen := dag.Order()[0]
	require.True(t, codegen.Step.Static())

	link := vertex(t, dag, "link")
	assert.False(t, link.Step.Static())
	assert.Equal(t, "kernel_fresh", link.Step.FreshKey)

	ctx := domain.NewContext(seed(t, p, nil))
	action, err := link.Materialize(ctx)
	require.NoError(t, err)
	cmd := action.(*domain.Command)
	assert.Equal(t, []string{"ld", "-o", "build/d7os.elf"}, cmd.Args())
	assert.Equal(t, []string{"build/d7os.elf"}, cmd.Outputs)
	assert.Equal(t, "link", cmd.Hints.Pool)

	ctx = domain.NewContext(seed(t, p, map[string]string{"DEBUG": "true", "TARGET": "test"}))
	action, err = link.Materialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ld -g -o build/test.elf", action.Describe())

	copyStep := vertex(t, dag, "copy")
	ok, err := copyStep.Step.Guard(domain.NewContext(map[string]any{"kernel_fresh": true}))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = copyStep.Step.Guard(domain.NewContext(map[string]any{"kernel_fresh": "false"}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompile_MissingVariable(t *testing.T) {
	p, err := Compile([]byte(kernelPlan))
	require.NoError(t, err)
	dag, err := p.Build("all")
	require.NoError(t, err)

	_, err = vertex(t, dag, "link").Materialize(domain.NewContext(map[string]any{"DEBUG": false}))
	assert.ErrorIs(t, err, domain.ErrMissingKey)
}

func TestTemplate(t *testing.T) {
	tmpl, err := parseTemplate("a-${X}-$${Y}")
	require.NoError(t, err)
	assert.False(t, tmpl.static())

	out, raw, err := tmpl.render(domain.NewContext(map[string]any{"X": 7}))
	require.NoError(t, err)
	assert.False(t, raw)
	assert.Equal(t, "a-7-${Y}", out)

	lit, err := parseTemplate("$${HOME}")
	require.NoError(t, err)
	assert.True(t, lit.static())
	assert.Equal(t, "${HOME}", lit.literal())

	_, err = parseTemplate("${broken")
	assert.Error(t, err)

	out, raw, err = tmpl.render(domain.NewContext(map[string]any{"X": domain.Shell{Script: "nproc"}}))
	require.NoError(t, err)
	assert.True(t, raw)
	assert.Equal(t, "a-$(nproc)-${Y}", out)
}

func TestCompile_ExpressionsAndAssertions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build/kernel.elf"), make([]byte, 0x600), 0o644))

	doc := `
vars: {IMAGE_MAX_SIZE_SECTORS: 0x500}
groups:
  all:
    sequence:
      - step:
          expr: {name: imgsize, file_size: build/kernel.elf, shell: stat -c %s build/kernel.elf}
      - step:
          expr: {name: imgsectors, from: imgsize, div: 0x200, add: 8}
      - step:
          assert:
            left: {from: imgsize, div: 0x200}
            op: "<="
            right: "${IMAGE_MAX_SIZE_SECTORS}"
            message: kernel image too large
`
	p, err := Compile([]byte(doc), WithBaseDir(dir))
	require.NoError(t, err)
	dag, err := p.Build("")
	require.NoError(t, err)
	order := dag.Order()
	require.Len(t, order, 3)

	size := order[0].Step.Action.(*domain.Expression)
	assert.Equal(t, "stat -c %s build/kernel.elf", size.Shell)

	ctx := domain.NewContext(seed(t, p, nil))
	v, err := size.Eval(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0x600), v)
	require.NoError(t, ctx.Put("imgsize", v))

	sectors, err := order[1].Step.Action.(*domain.Expression).Eval(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3+8), sectors)

	check := order[2].Step.Action.(*domain.Assertion)
	assert.Equal(t, "kernel image too large", check.Message)
	ok, err := check.Check(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	small := domain.NewContext(map[string]any{"imgsize": int64(0x600), "IMAGE_MAX_SIZE_SECTORS": "2"})
	ok, err = check.Check(small)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOperand_ShellArithmetic(t *testing.T) {
	op, err := compileOperand(map[string]any{"from": "imgsize", "div": 512, "add": 8})
	require.NoError(t, err)

	v, err := op.eval(domain.NewContext(map[string]any{"imgsize": domain.Shell{Script: "stat -c %s k"}}), "")
	require.NoError(t, err)
	assert.Equal(t, domain.Shell{Script: "echo $(( $(stat -c %s k) / 512 + 8 ))"}, v)

	_, err = compare(v, 3)
	assert.ErrorIs(t, err, domain.ErrUnresolved)
}

func TestCompare(t *testing.T) {
	cmp, err := compare("0x10", 16)
	require.NoError(t, err)
	assert.Zero(t, cmp)

	cmp, err = compare(2.5, "10")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = compare("beta", "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
}

func TestCompile_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown field": `
groups:
  all: {step: {cmd: [true], outptus: [x]}}`,
		"two kinds": `
groups:
  all: {ref: other, step: {cmd: [true]}}`,
		"two actions": `
groups:
  all: {step: {cmd: [true], expr: {name: x, value: 1}}}`,
		"bad operator": `
groups:
  all: {step: {assert: {left: 1, op: "=~", right: 2}}}`,
		"conditional without key": `
groups:
  all: {step: {cmd: [ls, {arg: -l}]}}`,
		"no groups": `name: empty`,
		"guard with both keys": `
groups:
  all: {step: {cmd: [true], when: {key: a, not: b}}}`,
		"unknown type": `
types: {SECTORS: uint}
groups:
  all: {step: {cmd: [true]}}`,
		"default of wrong type": `
types: {SECTORS: int}
vars: {SECTORS: lots}
groups:
  all: {step: {cmd: [true]}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestPlan_BuildUnknownTarget(t *testing.T) {
	p, err := Compile([]byte(kernelPlan))
	require.NoError(t, err)
	_, err = p.Build("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownGroup)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(kernelPlan), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "all", p.Root)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCompile_TypedVars(t *testing.T) {
	doc := `
types:
  SECTORS: int
  SMP: bool
  ARCH: x86_64|aarch64
vars:
  SECTORS: 0x500
  SMP: false
groups:
  all: {step: {cmd: [true]}}`
	p, err := Compile([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, int64(0x500), p.Vars["SECTORS"])

	// ARCH has no default, so it must be given
	_, err = p.Seed(nil)
	assert.ErrorIs(t, err, domain.ErrMissingKey)

	vars := seed(t, p, map[string]string{"ARCH": "aarch64", "SMP": "true", "SECTORS": "0x5000"})
	assert.Equal(t, true, vars["SMP"])
	assert.Equal(t, int64(0x5000), vars["SECTORS"])

	_, err = p.Seed(map[string]string{"ARCH": "riscv64"})
	assert.ErrorIs(t, err, domain.ErrKeyType)
}
