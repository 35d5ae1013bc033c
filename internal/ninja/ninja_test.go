package ninja

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/dsl"
	"github.com/aretw0/kiln/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, dag *plan.DAG, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, dag, opts))
	return buf.String()
}

func bootPlan(t *testing.T) *plan.DAG {
	t.Helper()
	b := dsl.New()
	codegen := b.Group("codegen", dsl.Cmd("constcodegen", "-t", "build/").
		In("constants.toml").Out("build/constants.asm"))
	stages := b.Group("stages", dsl.Par(
		dsl.Run(dsl.Cmd("nasm", "-f", "bin", "src/boot/stage0.asm", "-o", "build/boot/stage0.bin").
			In("src/boot/stage0.asm").Out("build/boot/stage0.bin")).Requires(codegen),
		dsl.Run(dsl.Cmd("nasm", "-f", "bin", "src/boot/stage1.asm", "-o", "build/boot/stage1.bin").
			In("src/boot/stage1.asm").Out("build/boot/stage1.bin")).Requires(codegen),
	))
	dag, err := b.Build(stages)
	require.NoError(t, err)
	return dag
}

func TestRender_Deterministic(t *testing.T) {
	first := render(t, bootPlan(t), Options{})
	second := render(t, bootPlan(t), Options{})
	assert.Equal(t, first, second)
	assert.Contains(t, first, "ninja_required_version = 1.10\nbuilddir = build/\n")
}

func TestRender_Layout(t *testing.T) {
	b := dsl.New()
	root := b.Group("all", dsl.Cmd("nasm", "-f", "bin", "src/boot.asm", "-o", "build/boot.bin").
		In("src/boot.asm").Out("build/boot.bin").Describe("assemble"))
	dag, err := b.Build(root)
	require.NoError(t, err)

	f, err := Lower(dag, Options{})
	require.NoError(t, err)
	require.Len(t, f.Entries, 1)
	rule := f.Entries[0].Rule
	assert.True(t, strings.HasPrefix(rule, "cmd_nasm_"), rule)

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	want := "ninja_required_version = 1.10\n" +
		"builddir = build/\n" +
		"\n" +
		"rule " + rule + "\n" +
		"  command = nasm -f bin src/boot.asm -o build/boot.bin\n" +
		"  description = assemble\n" +
		"build build/boot.bin: " + rule + " src/boot.asm\n" +
		"\n" +
		"default build/boot.bin\n"
	assert.Equal(t, want, buf.String())
}

func TestRender_MultiLineCommand(t *testing.T) {
	b := dsl.New()
	root := b.Group("kernel", dsl.Cmd("cargo", "build").Dir("kernel").
		Out("build/kernel.a").Depfile("build/kernel.d"))
	dag, err := b.Build(root)
	require.NoError(t, err)

	f, err := Lower(dag, Options{})
	require.NoError(t, err)
	rule := f.Entries[0].Rule
	out := render(t, dag, Options{})

	want := "rule " + rule + "\n" +
		"  command = cd kernel $\n" +
		"    && cargo build $\n" +
		"    && cd -\n" +
		"  depfile = build/kernel.d\n" +
		"build build/kernel.a: " + rule + "\n"
	assert.Contains(t, out, want)
}

func TestRuleName_Identity(t *testing.T) {
	entry := func(inputs ...string) *Entry {
		return &Entry{
			Shape:   "nasm",
			Lines:   []string{"nasm -f bin src/a.asm -o build/a.bin"},
			Outputs: []string{"build/a.bin"},
			Inputs:  inputs,
		}
	}
	assert.Equal(t, RuleName(entry("src/a.asm")), RuleName(entry("src/a.asm")))
	assert.NotEqual(t, RuleName(entry("src/a.asm")), RuleName(entry("src/a.asm", "src/macros.inc")))

	other := entry("src/a.asm")
	other.Outputs = []string{"build/b.bin"}
	assert.NotEqual(t, RuleName(entry("src/a.asm")), RuleName(other))

	assert.Regexp(t, `^cmd_nasm_[A-Za-z0-9_-]+$`, RuleName(entry()))
}

func TestLower_IdenticalCommandsCollapse(t *testing.T) {
	b := dsl.New()
	copyCmd := func() *dsl.CommandBuilder {
		return dsl.Cmd("cp", "build/a", "build/b").In("build/a").Out("build/b")
	}
	root := b.Group("all", dsl.Seq(copyCmd(), copyCmd()))
	dag, err := b.Build(root)
	require.NoError(t, err)

	f, err := Lower(dag, Options{})
	require.NoError(t, err)
	require.Len(t, f.Entries, 1)
	assert.Len(t, f.Entries[0].Lines, 1)
}

func TestLower_FoldsOrderedWritersOfOneFile(t *testing.T) {
	b := dsl.New()
	root := b.Group("disk", dsl.Seq(
		dsl.Cmd("dd", "if=/dev/zero", "of=build/disk.img", "count=8").Out("build/disk.img"),
		dsl.Cmd("dd", "if=build/boot/stage0.bin", "of=build/disk.img", "conv=notrunc").
			In("build/boot/stage0.bin").Out("build/disk.img"),
	))
	dag, err := b.Build(root)
	require.NoError(t, err)

	f, err := Lower(dag, Options{})
	require.NoError(t, err)
	require.Len(t, f.Entries, 1)
	e := f.Entries[0]
	assert.Equal(t, []string{
		"dd if=/dev/zero of=build/disk.img count=8",
		"dd if=build/boot/stage0.bin of=build/disk.img conv=notrunc",
	}, e.Lines)
	assert.Equal(t, []string{"build/boot/stage0.bin"}, e.Inputs)
	assert.Empty(t, e.OrderOnly)
}

func TestLower_OrderOnlyFromRequires(t *testing.T) {
	f, err := Lower(bootPlan(t), Options{})
	require.NoError(t, err)
	require.Len(t, f.Entries, 3)

	assert.Empty(t, f.Entries[0].OrderOnly)
	for _, e := range f.Entries[1:] {
		assert.Equal(t, []string{"build/constants.asm"}, e.OrderOnly, e.Node)
	}
	assert.Equal(t, []string{"build/boot/stage0.bin", "build/boot/stage1.bin"}, f.Defaults)

	out := render(t, bootPlan(t), Options{})
	assert.Contains(t, out, " src/boot/stage0.asm || build/constants.asm\n")
}

func TestLower_EmptyOutputs(t *testing.T) {
	b := dsl.New()
	root := b.Group("all", dsl.Cmd("true"))
	dag, err := b.Build(root)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = Render(&buf, dag, Options{})
	require.ErrorIs(t, err, domain.ErrEmptyOutputs)
	var serr *domain.SerializationError
	assert.True(t, errors.As(err, &serr))
	assert.Zero(t, buf.Len(), "nothing is written on error")
}

func TestLower_UnresolvedDeferred(t *testing.T) {
	b := dsl.New()
	root := b.Group("all", dsl.DeferCmd(func(c *domain.Context) (*dsl.CommandBuilder, error) {
		target, err := domain.Get(c, domain.NewKey[string]("TARGET"))
		if err != nil {
			return nil, err
		}
		return dsl.Cmd("ld", "-o", target).Out(target), nil
	}).Label("link"))
	dag, err := b.Build(root)
	require.NoError(t, err)

	_, err = Lower(dag, Options{})
	require.ErrorIs(t, err, domain.ErrUnresolved)
	assert.ErrorIs(t, err, domain.ErrMissingKey)
	var serr *domain.SerializationError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "link", serr.Node)

	f, err := Lower(dag, Options{Seed: map[string]any{"TARGET": "build/kernel.elf"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"build/kernel.elf"}, f.Entries[0].Outputs)
}

func TestLower_ShellValuesAndAssertions(t *testing.T) {
	b := dsl.New()
	size := dsl.Expr("imgsize", func(*domain.Context) (int64, error) { return 0, errors.New("not built yet") })
	size.Shell = "stat -c %s build/kernel.bin"
	check := dsl.Assert("kernel fits", nil)
	check.Shell = "test $(stat -c %s build/kernel.bin) -le 65536"
	check.Inputs = []string{"build/kernel.bin"}

	root := b.Group("all", dsl.Seq(
		dsl.Do(size),
		dsl.Do(check).Label("check_ok"),
		dsl.DeferCmd(func(c *domain.Context) (*dsl.CommandBuilder, error) {
			v, err := c.Value("imgsize")
			if err != nil {
				return nil, err
			}
			sh, ok := v.(domain.Shell)
			if !ok {
				return nil, fmt.Errorf("imgsize is %T", v)
			}
			return dsl.Cmd("mkimg").Args(domain.Arg{Value: sh.String(), Present: true, Raw: true}).
				In("build/kernel.bin").Out("build/disk.img"), nil
		}),
	))
	dag, err := b.Build(root)
	require.NoError(t, err)

	f, err := Lower(dag, Options{Defaults: []string{"build/disk.img"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"pseudo-check_ok", "build/disk.img"}, f.Defaults)

	out := render(t, dag, Options{Defaults: []string{"build/disk.img"}})
	assert.Contains(t, out, "command = mkimg $$(stat -c %s build/kernel.bin)\n")
	assert.Contains(t, out, "build pseudo-check_ok: cmd_assert_")
	assert.Contains(t, out, "default pseudo-check_ok build/disk.img\n")
}

func TestLower_HostAssertion(t *testing.T) {
	b := dsl.New()
	root := b.Group("all", dsl.Seq(
		dsl.Do(dsl.Assert("never", func(*domain.Context) (bool, error) { return false, nil })),
		dsl.Cmd("touch", "build/x").Out("build/x"),
	))
	dag, err := b.Build(root)
	require.NoError(t, err)

	_, err = Lower(dag, Options{})
	assert.ErrorIs(t, err, domain.ErrAssertion)
}

func TestLower_AssertionTargetCollision(t *testing.T) {
	shellAssert := func(label string) *dsl.StepBuilder {
		a := dsl.Assert(label, nil)
		a.Shell = "true"
		return dsl.Do(a).Label(label)
	}
	b := dsl.New()
	root := b.Group("all", dsl.Seq(shellAssert("a b"), shellAssert("a_b")))
	dag, err := b.Build(root)
	require.NoError(t, err)

	_, err = Lower(dag, Options{})
	var serr *domain.SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "a_b", serr.Node)
	assert.ErrorIs(t, err, domain.ErrOverlappingOutputs)
}

func TestLower_SeedCollidesWithWrittenKey(t *testing.T) {
	b := dsl.New()
	root := b.Group("modules", dsl.Seq(
		dsl.Run(dsl.Cmd("ld", "-o", "build/ata.elf").Out("build/ata.elf")).Fresh("ata_fresh"),
		dsl.Do(dsl.Expr("imgsize", func(*domain.Context) (int64, error) { return 1, nil })),
	))
	dag, err := b.Build(root)
	require.NoError(t, err)

	for _, key := range []string{"ata_fresh", "imgsize"} {
		t.Run(key, func(t *testing.T) {
			_, err := Lower(dag, Options{Seed: map[string]any{key: true}})
			var perr *domain.PlanError
			require.ErrorAs(t, err, &perr)
			assert.ErrorIs(t, err, domain.ErrDuplicateKey)
		})
	}
}

func TestLower_FreshnessGuardsPass(t *testing.T) {
	b := dsl.New()
	root := b.Group("modules", dsl.Seq(
		dsl.Run(dsl.Cmd("ld", "-o", "build/ata.elf").Out("build/ata.elf")).Fresh("ata_fresh"),
		dsl.Run(dsl.Cmd("cp", "build/ata.elf", "build/disk/ata").In("build/ata.elf").Out("build/disk/ata")).
			Unless("ata_fresh"),
	))
	dag, err := b.Build(root)
	require.NoError(t, err)

	f, err := Lower(dag, Options{})
	require.NoError(t, err)
	assert.Len(t, f.Entries, 2)
}

func TestRender_TopLevel(t *testing.T) {
	out := render(t, bootPlan(t), Options{
		Header:    []string{"generated by kiln"},
		Pools:     map[string]int{"link": 1},
		Includes:  []string{"rules/common.ninja"},
		Subninjas: []string{"sub dir/build.ninja"},
	})
	assert.True(t, strings.HasPrefix(out, "# generated by kiln\nninja_required_version = 1.10\n"))
	assert.Contains(t, out, "pool link\n  depth = 1\n")
	assert.Contains(t, out, "include rules/common.ninja\n")
	assert.Contains(t, out, "subninja sub$ dir/build.ninja\n")
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "my$ disk$:1.img", Escape("my disk:1.img"))
	assert.Equal(t, "a$$$ b", Escape("a$ b"))
	assert.Equal(t, "build/$$out.o", Escape("build/$out.o"), "a lone $ would expand as a variable")
	assert.Equal(t, "cost$$", Escape("cost$"))

	for _, p := range []string{"build/my disk.img", "c:/tools/nasm", "a b:c d", "plain/path", "a$ b", "build/$out.o", "$${x}:y"} {
		assert.Equal(t, p, Unescape(Escape(p)), p)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteTo_Error(t *testing.T) {
	f, err := Lower(bootPlan(t), Options{})
	require.NoError(t, err)
	_, err = f.WriteTo(failingWriter{})
	assert.EqualError(t, err, "disk full")
}
