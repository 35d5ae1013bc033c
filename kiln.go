package kiln

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/kiln/internal/compiler"
	"github.com/aretw0/kiln/internal/ninja"
	"github.com/aretw0/kiln/internal/runtime"
	"github.com/aretw0/kiln/pkg/adapters/file"
	"github.com/aretw0/kiln/pkg/adapters/process"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/schema"
	"github.com/aretw0/kiln/pkg/session"
)

// FingerprintMode selects how the executor decides a command is fresh.
type FingerprintMode = runtime.FingerprintMode

const (
	ModeStat    = runtime.ModeStat
	ModeContent = runtime.ModeContent
)

// NinjaOptions controls the top level of generated ninja files.
type NinjaOptions = ninja.Options

// Engine is the high-level entry point for the kiln library.
// It holds one plan and lowers it either to direct execution or to ninja.
type Engine struct {
	registry    *plan.Registry
	root        string
	vars        map[string]any
	types       schema.Schema
	ninjaOpts   NinjaOptions
	store       ports.FingerprintStore
	runner      ports.ProcessRunner
	baseDir     string
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
	runtime     *runtime.Engine
	locker      ports.Locker
	sessions    *session.Manager
	Name        string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRegistry uses a plan built in Go instead of a plan document.
func WithRegistry(reg *plan.Registry, root string) Option {
	return func(e *Engine) {
		e.registry = reg
		e.root = root
	}
}

// WithVars seeds the Context of every run and serialization.
func WithVars(vars map[string]any) Option {
	return func(e *Engine) {
		e.vars = vars
	}
}

// WithTypes declares variable types. Seeds are coerced to them before every run.
func WithTypes(types schema.Schema) Option {
	return func(e *Engine) {
		e.types = types
	}
}

// WithStore replaces the default fingerprint file under the base directory.
func WithStore(s ports.FingerprintStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker makes direct runs hold a lock shared with other processes using the same store.
func WithLocker(l ports.Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithProcessRunner replaces the default subprocess runner.
func WithProcessRunner(r ports.ProcessRunner) Option {
	return func(e *Engine) {
		e.runner = r
	}
}

// WithBaseDir sets the directory plan paths are relative to.
// Defaults to the directory of the plan document.
func WithBaseDir(dir string) Option {
	return func(e *Engine) {
		e.baseDir = dir
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFingerprintMode selects stat or content freshness checks.
func WithFingerprintMode(mode FingerprintMode) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithFingerprintMode(mode))
	}
}

// WithNinjaOptions overrides the ninja settings of the plan document.
func WithNinjaOptions(opts NinjaOptions) Option {
	return func(e *Engine) {
		e.ninjaOpts = opts
	}
}

// New initializes an Engine from the plan document at planPath.
// If WithRegistry is provided, planPath can be empty and no document is read.
func New(planPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.registry == nil {
		if planPath == "" {
			return nil, fmt.Errorf("planPath is required when no registry is provided")
		}
		absPath, err := filepath.Abs(planPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		if eng.baseDir == "" {
			eng.baseDir = filepath.Dir(absPath)
		}

		p, err := compiler.Load(absPath, compiler.WithBaseDir(eng.baseDir))
		if err != nil {
			return nil, err
		}
		eng.registry = p.Registry
		if eng.root == "" {
			eng.root = p.Root
		}
		eng.vars = mergeVars(p.Vars, eng.vars)
		eng.types = mergeTypes(p.Types, eng.types)
		if isZero(eng.ninjaOpts) {
			eng.ninjaOpts = p.Ninja
		}
		eng.Name = p.Name
		if eng.Name == "" {
			eng.Name = filepath.Base(eng.baseDir)
		}
	} else if planPath != "" {
		eng.Name = filepath.Base(planPath)
	}

	vars, err := schema.ApplyPartial(eng.types, eng.vars)
	if err != nil {
		return nil, err
	}
	eng.vars = vars

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("plan", eng.Name)
	}
	if eng.store == nil {
		eng.store = file.New(filepath.Join(eng.baseDir, file.DefaultPath))
	}
	if eng.runner == nil {
		eng.runner = process.NewRunner(process.WithBaseDir(eng.baseDir))
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithBaseDir(eng.baseDir),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(eng.runner, eng.store, runtimeOpts...)

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(sessionOpts...)

	return eng, nil
}

// Root returns the group built when no target is given.
func (e *Engine) Root() string { return e.root }

// Registry returns the registered groups.
func (e *Engine) Registry() *plan.Registry { return e.registry }

// Store returns the fingerprint store used by direct runs.
func (e *Engine) Store() ports.FingerprintStore { return e.store }

// Groups lists the registered group names.
func (e *Engine) Groups() []string { return e.registry.Names() }

// Build flattens target, or the root group when target is empty.
func (e *Engine) Build(target string) (*plan.DAG, error) {
	if target == "" {
		target = e.root
	}
	if target == "" {
		return nil, fmt.Errorf("no target given and the plan has no root group")
	}
	return plan.Build(e.registry, plan.Ref(target))
}

// Vars returns the default plan variables.
func (e *Engine) Vars() map[string]any { return e.vars }

// Types returns the declared variable types.
func (e *Engine) Types() schema.Schema { return e.types }

// Seed returns the plan variables overlaid with overrides, coerced to their declared types.
func (e *Engine) Seed(overrides map[string]string) (map[string]any, error) {
	seed := make(map[string]any, len(e.vars)+len(overrides))
	for k, v := range e.vars {
		seed[k] = v
	}
	for k, v := range overrides {
		seed[k] = v
	}
	return schema.Apply(e.types, seed)
}

// Run executes target directly, one step at a time.
func (e *Engine) Run(ctx context.Context, target string, overrides map[string]string) (*domain.RunReport, error) {
	return e.run(ctx, target, overrides, domain.LifecycleHooks{})
}

// run is Run with extra hooks chained after the engine's own.
func (e *Engine) run(ctx context.Context, target string, overrides map[string]string, extra domain.LifecycleHooks) (*domain.RunReport, error) {
	dag, err := e.Build(target)
	if err != nil {
		return nil, err
	}
	seed, err := e.Seed(overrides)
	if err != nil {
		return nil, err
	}
	rt := e.runtime
	if extra.OnStepStart != nil || extra.OnStepFinish != nil {
		rt = rt.WithHooks(domain.ChainHooks(e.hooks, extra))
	}
	var report *domain.RunReport
	err = e.sessions.WithLock(ctx, e.lockKey(), func(ctx context.Context) error {
		var runErr error
		report, runErr = rt.Run(ctx, dag, seed)
		return runErr
	})
	return report, err
}

// lockKey names the run lock. Runs of any target share it since they share the store.
func (e *Engine) lockKey() string {
	if e.Name == "" {
		return "run"
	}
	return "run:" + e.Name
}

// Ninja writes target as a ninja file to w. Nothing is written on error.
func (e *Engine) Ninja(w io.Writer, target string, overrides map[string]string) error {
	dag, err := e.Build(target)
	if err != nil {
		return err
	}
	opts, err := e.NinjaOptions(overrides)
	if err != nil {
		return err
	}
	return ninja.Render(w, dag, opts)
}

// NinjaOptions returns the ninja settings with the Context seed filled in.
func (e *Engine) NinjaOptions(overrides map[string]string) (NinjaOptions, error) {
	opts := e.ninjaOpts
	seed, err := e.Seed(overrides)
	if err != nil {
		return opts, err
	}
	opts.Seed = seed
	return opts, nil
}

func mergeVars(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func mergeTypes(base, overlay schema.Schema) schema.Schema {
	if len(base) == 0 {
		return overlay
	}
	out := make(schema.Schema, len(base)+len(overlay))
	for k, t := range base {
		out[k] = t
	}
	for k, t := range overlay {
		out[k] = t
	}
	return out
}

func isZero(o NinjaOptions) bool {
	return o.RequiredVersion == "" && o.BuildDir == "" && len(o.Pools) == 0 && len(o.Defaults) == 0 &&
		len(o.Includes) == 0 && len(o.Subninjas) == 0 && len(o.Header) == 0
}
