package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/google/uuid"
)

// Engine is the direct executor: it walks a DAG in order, one step at a time.
type Engine struct {
	runner ports.ProcessRunner
	store  ports.FingerprintStore
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	fp     fingerprinter
	now    func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithFingerprintMode selects stat or content comparison.
func WithFingerprintMode(mode FingerprintMode) EngineOption {
	return func(e *Engine) {
		e.fp.mode = mode
	}
}

// WithBaseDir sets the directory declared paths are relative to.
func WithBaseDir(dir string) EngineOption {
	return func(e *Engine) {
		e.fp.baseDir = dir
	}
}

// NewEngine creates a new executor with dependencies.
func NewEngine(runner ports.ProcessRunner, store ports.FingerprintStore, opts ...EngineOption) *Engine {
	e := &Engine{
		runner: runner,
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		fp:     fingerprinter{mode: ModeStat},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithHooks returns a copy of e that reports to hooks instead.
func (e *Engine) WithHooks(hooks domain.LifecycleHooks) *Engine {
	c := *e
	c.hooks = hooks
	return &c
}

// run is the state of one Run call.
type run struct {
	*Engine
	id      string
	dag     *plan.DAG
	kctx    *domain.Context
	claims  *plan.Claims
	records map[string]domain.Fingerprint
	// writers lists the record IDs used so far per write-set, in run order.
	writers map[string][]string
	dirty   bool
	logger  *slog.Logger
}

// Run executes dag with the Context seeded from seed. The fingerprint store
// is loaded once up front and saved once on the way out, failure included,
// so commands that succeeded before an abort stay fresh.
// Cancellation is honored between steps only.
func (e *Engine) Run(ctx context.Context, dag *plan.DAG, seed map[string]any) (report *domain.RunReport, err error) {
	if err := dag.CheckSeed(seed); err != nil {
		return nil, err
	}
	r := &run{
		Engine:  e,
		id:      uuid.NewString(),
		dag:     dag,
		kctx:    domain.NewContext(seed),
		claims:  dag.NewClaims(),
		writers: make(map[string][]string),
	}
	r.logger = e.logger.With("run", r.id, "root", dag.Root())

	r.records, err = e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprints: %w", err)
	}
	if r.records == nil {
		r.records = make(map[string]domain.Fingerprint)
	}

	report = &domain.RunReport{RunID: r.id, Started: e.now()}
	defer func() {
		report.Finished = e.now()
		report.Context = r.kctx.Snapshot()
		if !r.dirty {
			return
		}
		if saveErr := e.store.Save(context.WithoutCancel(ctx), r.records); saveErr != nil {
			saveErr = fmt.Errorf("failed to save fingerprints: %w", saveErr)
			if err == nil {
				err = saveErr
			} else {
				err = errors.Join(err, saveErr)
			}
		}
	}()

	r.logger.Info("run started", "steps", dag.Len())
	for _, v := range dag.Order() {
		if cerr := ctx.Err(); cerr != nil {
			r.logger.Warn("run cancelled", "next", v.Name)
			return report, cerr
		}
		res, serr := r.step(ctx, v)
		report.Steps = append(report.Steps, res)
		if serr != nil {
			r.logger.Error("run failed", "step", v.Name, "error", serr)
			return report, serr
		}
	}
	r.logger.Info("run finished",
		"ran", report.Count(domain.OutcomeRan),
		"fresh", report.Count(domain.OutcomeFresh),
		"skipped", report.Count(domain.OutcomeSkipped),
	)
	return report, nil
}

func (r *run) step(ctx context.Context, v *plan.Vertex) (domain.StepResult, error) {
	kind := domain.KindDeferred
	if v.Step.Action != nil {
		kind = v.Step.Action.Kind()
	}
	event := &domain.StepEvent{Timestamp: r.now(), RunID: r.id, Step: v.Name, Kind: kind}
	if r.hooks.OnStepStart != nil {
		r.hooks.OnStepStart(ctx, event)
	}

	start := time.Now()
	outcome, err := r.dispatch(ctx, v, event)
	if err != nil {
		outcome = domain.OutcomeFailed
	}

	event.Outcome = outcome
	event.Duration = time.Since(start)
	event.Err = err
	if r.hooks.OnStepFinish != nil {
		r.hooks.OnStepFinish(ctx, event)
	}
	r.logger.Debug("step finished", "step", v.Name, "kind", event.Kind, "outcome", outcome, "duration", event.Duration)

	return domain.StepResult{Step: v.Name, Kind: event.Kind, Outcome: outcome, Duration: event.Duration}, err
}

// dispatch updates event.Kind once a deferred step is materialized.
func (r *run) dispatch(ctx context.Context, v *plan.Vertex, event *domain.StepEvent) (domain.Outcome, error) {
	if guard := v.Step.Guard; guard != nil {
		ok, err := guard(r.kctx)
		if err != nil {
			return "", &domain.PlanError{Node: v.Name, Msg: "guard failed", Err: err}
		}
		if !ok {
			return domain.OutcomeSkipped, nil
		}
	}

	action, err := v.Materialize(r.kctx)
	if err != nil {
		return "", err
	}
	event.Kind = action.Kind()

	switch a := action.(type) {
	case *domain.Command:
		return r.command(ctx, v, a)
	case *domain.Expression:
		val, err := a.Eval(r.kctx)
		if err != nil {
			return "", classify(v, "expression "+a.Name, err)
		}
		if err := r.kctx.Put(a.Name, val); err != nil {
			return "", &domain.PlanError{Node: v.Name, Err: err}
		}
		r.logger.Debug("expression evaluated", "step", v.Name, "key", a.Name, "value", val)
		return domain.OutcomeEvaluated, nil
	case *domain.Assertion:
		ok, err := a.Check(r.kctx)
		if err != nil {
			return "", classify(v, "assertion", err)
		}
		if !ok {
			return "", &domain.RuntimeFailure{Node: v.Name, Msg: a.Message, Err: domain.ErrAssertion}
		}
		return domain.OutcomeEvaluated, nil
	default:
		return "", &domain.PlanError{Node: v.Name, Msg: fmt.Sprintf("unsupported action %T", action), Err: domain.ErrInvalidStep}
	}
}

func (r *run) command(ctx context.Context, v *plan.Vertex, cmd *domain.Command) (domain.Outcome, error) {
	argv := cmd.Args()
	if len(argv) == 0 {
		return "", &domain.PlanError{Node: v.Name, Err: domain.ErrEmptyArgv}
	}
	if err := r.claims.Claim(v, cmd.Outputs); err != nil {
		return "", err
	}

	set := domain.WriteSetID(cmd.Outputs)
	earlier := r.writers[set]
	id := domain.WriterID(set, len(earlier))
	if len(cmd.Outputs) > 0 {
		r.writers[set] = append(earlier, id)
		if rec, ok := r.records[id]; ok {
			current, err := r.fp.take(cmd)
			if err != nil {
				return "", &domain.RuntimeFailure{Node: v.Name, Command: cmd.Describe(), Msg: "cannot fingerprint", Err: err}
			}
			if complete(current) && rec.Matches(current) {
				if err := r.setFresh(v, true); err != nil {
					return "", err
				}
				return domain.OutcomeFresh, nil
			}
		}
	}

	r.logger.Info("running", "step", v.Name, "cmd", cmd.Describe())
	res, err := r.runner.Run(ctx, domain.Invocation{
		Argv:   argv,
		Dir:    cmd.Dir,
		Env:    cmd.Env,
		Stdout: cmd.Stdout,
	})
	if err != nil {
		return "", &domain.RuntimeFailure{Node: v.Name, Command: cmd.Describe(), Err: err}
	}
	if res.ExitCode != 0 {
		if _, ok := r.records[id]; ok {
			delete(r.records, id)
			r.dirty = true
		}
		return "", &domain.RuntimeFailure{
			Node:     v.Name,
			Command:  cmd.Describe(),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      domain.ErrCommandFailed,
		}
	}

	if len(cmd.Outputs) > 0 {
		fp, err := r.fp.take(cmd)
		if err != nil {
			return "", &domain.RuntimeFailure{Node: v.Name, Command: cmd.Describe(), Msg: "cannot fingerprint", Err: err}
		}
		if complete(fp) {
			r.records[id] = fp
			// earlier writers of the set now see the files as left by this one
			for _, prev := range earlier {
				if rec, ok := r.records[prev]; ok {
					rec.Outputs = fp.Outputs
					r.records[prev] = rec
				}
			}
		} else {
			r.logger.Warn("declared output missing after run", "step", v.Name)
			delete(r.records, id)
		}
		r.dirty = true
	}
	if err := r.setFresh(v, false); err != nil {
		return "", err
	}
	return domain.OutcomeRan, nil
}

func (r *run) setFresh(v *plan.Vertex, fresh bool) error {
	if v.Step.FreshKey == "" {
		return nil
	}
	if err := r.kctx.Put(v.Step.FreshKey, fresh); err != nil {
		return &domain.PlanError{Node: v.Name, Err: err}
	}
	return nil
}

// classify maps a callback error to the failure class it belongs to:
// context misuse is a plan defect, anything else failed at run time.
func classify(v *plan.Vertex, what string, err error) error {
	if plan.IsOrdering(err) {
		return &domain.PlanError{Node: v.Name, Msg: what, Err: err}
	}
	return &domain.RuntimeFailure{Node: v.Name, Msg: what, Err: err}
}
