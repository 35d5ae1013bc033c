package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
)

// Runner implements ports.ProcessRunner by spawning local processes.
// Tool aliases registered from tools.yaml replace argv[0] before the spawn,
// so a plan can say "ld" while the host uses a cross linker.
type Runner struct {
	registry map[string]RegisteredProcess
	baseDir  string
	stdout   io.Writer
	stderr   io.Writer
}

// RegisteredProcess is the resolution of a tool alias.
type RegisteredProcess struct {
	Command string
	Args    []string // Prepended to the plan's own arguments
	Env     map[string]string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the tool aliases from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			r.registry[name] = RegisteredProcess{
				Command: tool.Command,
				Args:    tool.Args,
				Env:     tool.Environment,
			}
		}
	}
}

// WithBaseDir sets the directory relative paths are resolved against.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithOutput mirrors subprocess stdout and stderr to the given writers.
// Stdout is only mirrored for commands that do not capture it into a file.
func WithOutput(stdout, stderr io.Writer) RunnerOption {
	return func(r *Runner) {
		if stdout != nil {
			r.stdout = stdout
		}
		if stderr != nil {
			r.stderr = stderr
		}
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredProcess),
		stdout:   io.Discard,
		stderr:   io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool alias.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{Command: command, Args: args}
}

// Resolve applies the tool aliases to argv and returns the extra environment.
func (r *Runner) Resolve(argv []string) ([]string, map[string]string) {
	if len(argv) == 0 {
		return argv, nil
	}
	proc, ok := r.registry[argv[0]]
	if !ok {
		return argv, nil
	}
	out := make([]string, 0, len(proc.Args)+len(argv))
	out = append(out, proc.Command)
	out = append(out, proc.Args...)
	out = append(out, argv[1:]...)
	return out, proc.Env
}

// Run executes the invocation to completion. The context is only consulted
// before the spawn: a process that started is never killed.
func (r *Runner) Run(ctx context.Context, inv domain.Invocation) (domain.ProcessResult, error) {
	if len(inv.Argv) == 0 {
		return domain.ProcessResult{}, domain.ErrEmptyArgv
	}
	if err := ctx.Err(); err != nil {
		return domain.ProcessResult{}, err
	}

	argv, toolEnv := r.Resolve(inv.Argv)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.path(inv.Dir)

	env := maps.Clone(toolEnv)
	if env == nil {
		env = make(map[string]string, len(inv.Env))
	}
	maps.Copy(env, inv.Env)
	cmd.Env = cmd.Environ()
	for _, k := range slices.Sorted(maps.Keys(env)) {
		cmd.Env = append(cmd.Env, k+"="+env[k])
	}

	var stderr bytes.Buffer
	cmd.Stderr = io.MultiWriter(&stderr, r.stderr)
	cmd.Stdout = r.stdout
	if inv.Stdout != "" {
		out, err := r.createStdout(inv.Stdout)
		if err != nil {
			return domain.ProcessResult{}, err
		}
		defer out.Close()
		cmd.Stdout = out
	}

	start := time.Now()
	err := cmd.Run()
	result := domain.ProcessResult{
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("%w: %s: %v", domain.ErrSpawn, argv[0], err)
	}
	return result, nil
}

func (r *Runner) createStdout(path string) (*os.File, error) {
	full := r.path(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stdout directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout file: %w", err)
	}
	return f, nil
}

func (r *Runner) path(p string) string {
	if p == "" {
		return r.baseDir
	}
	if filepath.IsAbs(p) || r.baseDir == "" {
		return p
	}
	return filepath.Join(r.baseDir, p)
}
