package kiln

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/kiln/internal/presentation/tui"
	"github.com/aretw0/kiln/pkg/domain"
)

// Runner drives a direct execution against an Output, printing one status
// line per step and a summary. It lets different frontends (CLI, tests)
// share the same presentation.
type Runner struct {
	Output io.Writer
	// Headless suppresses the plan overview printed before the run.
	Headless bool
	Renderer ContentRenderer
	Vars     map[string]string
}

// ContentRenderer is a function that transforms markdown before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner writing to w.
func NewRunner(w io.Writer) *Runner {
	return &Runner{Output: w}
}

// Run executes target on engine. Step lines are written as steps finish,
// alongside any hooks the engine already has.
func (r *Runner) Run(ctx context.Context, engine *Engine, target string) (*domain.RunReport, error) {
	if r.Output == nil {
		return nil, fmt.Errorf("output writer must be set (use os.Stdout)")
	}

	if !r.Headless {
		dag, err := engine.Build(target)
		if err != nil {
			return nil, err
		}
		overview := tui.PlanReport(engine.Name, dag)
		if r.Renderer != nil {
			if rendered, err := r.Renderer(overview); err == nil {
				overview = rendered
			}
		}
		fmt.Fprintln(r.Output, strings.TrimSpace(overview))
		fmt.Fprintln(r.Output)
	}

	status := tui.NewStatus(r.Output)
	report, err := engine.run(ctx, target, r.Vars, status.Hooks())
	if report != nil {
		status.Summary(report)
	}
	return report, err
}
