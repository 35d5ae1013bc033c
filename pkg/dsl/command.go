package dsl

import (
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
)

// CommandBuilder provides a fluent API for configuring a command.
type CommandBuilder struct {
	cmd  *domain.Command
	step *plan.Step
}

// Cmd starts a command with the given argv.
func Cmd(argv ...string) *CommandBuilder {
	return &CommandBuilder{cmd: &domain.Command{Argv: domain.Args(argv...)}}
}

// Arg appends one argument.
func (c *CommandBuilder) Arg(v string) *CommandBuilder {
	c.cmd.Argv = append(c.cmd.Argv, domain.Some(v))
	return c
}

// ArgIf appends v only when cond holds.
func (c *CommandBuilder) ArgIf(cond bool, v string) *CommandBuilder {
	c.cmd.Argv = append(c.cmd.Argv, domain.When(cond, v))
	return c
}

// Args appends raw arguments, absent ones included.
func (c *CommandBuilder) Args(args ...domain.Arg) *CommandBuilder {
	c.cmd.Argv = append(c.cmd.Argv, args...)
	return c
}

// In declares read-set paths.
func (c *CommandBuilder) In(paths ...string) *CommandBuilder {
	c.cmd.Inputs = append(c.cmd.Inputs, paths...)
	return c
}

// Out declares write-set paths.
func (c *CommandBuilder) Out(paths ...string) *CommandBuilder {
	c.cmd.Outputs = append(c.cmd.Outputs, paths...)
	return c
}

func (c *CommandBuilder) Dir(dir string) *CommandBuilder {
	c.cmd.Dir = dir
	return c
}

// Stdout captures the program's standard output into path.
func (c *CommandBuilder) Stdout(path string) *CommandBuilder {
	c.cmd.Stdout = path
	return c
}

func (c *CommandBuilder) Env(key, value string) *CommandBuilder {
	if c.cmd.Env == nil {
		c.cmd.Env = make(map[string]string)
	}
	c.cmd.Env[key] = value
	return c
}

func (c *CommandBuilder) Depfile(path string) *CommandBuilder {
	c.cmd.Depfile = path
	return c
}

func (c *CommandBuilder) Describe(text string) *CommandBuilder {
	c.cmd.Hints.Description = text
	return c
}

// Shape overrides the rule family name used by the ninja backend.
func (c *CommandBuilder) Shape(name string) *CommandBuilder {
	c.cmd.Hints.Shape = name
	return c
}

func (c *CommandBuilder) Pool(name string) *CommandBuilder {
	c.cmd.Hints.Pool = name
	return c
}

func (c *CommandBuilder) Restat() *CommandBuilder {
	c.cmd.Hints.Restat = true
	return c
}

func (c *CommandBuilder) Generator() *CommandBuilder {
	c.cmd.Hints.Generator = true
	return c
}

// Deps sets the depfile style ("gcc" or "msvc").
func (c *CommandBuilder) Deps(style string) *CommandBuilder {
	c.cmd.Hints.Deps = style
	return c
}

func (c *CommandBuilder) Dyndep(path string) *CommandBuilder {
	c.cmd.Hints.Dyndep = path
	return c
}

// Command returns the configured command.
func (c *CommandBuilder) Command() *domain.Command {
	return c.cmd
}

// Node returns a plain step running the command. Repeated calls return the
// same step, so the command is planned once wherever it appears.
func (c *CommandBuilder) Node() plan.Node {
	if c.step == nil {
		c.step = &plan.Step{Action: c.cmd}
	}
	return c.step
}
