package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Profile picks the color profile for w: plain text unless w is a terminal.
func Profile(w io.Writer) termenv.Profile {
	if !IsTerminal(w) {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// Status prints one line per finished step.
type Status struct {
	mu      sync.Mutex
	w       io.Writer
	profile termenv.Profile
}

func NewStatus(w io.Writer) *Status {
	return &Status{w: w, profile: Profile(w)}
}

var outcomeColors = map[domain.Outcome]string{
	domain.OutcomeRan:       "#60a5fa",
	domain.OutcomeFresh:     "#34d399",
	domain.OutcomeSkipped:   "#9ca3af",
	domain.OutcomeEvaluated: "#a78bfa",
	domain.OutcomeFailed:    "#f87171",
}

// Hooks returns lifecycle hooks that feed the status output.
func (s *Status) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepFinish: func(_ context.Context, e *domain.StepEvent) {
			s.Step(e)
		},
	}
}

// Step prints the line for e.
func (s *Status) Step(e *domain.StepEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag := s.profile.String(fmt.Sprintf("%-9s", e.Outcome)).Foreground(s.profile.Color(outcomeColors[e.Outcome]))
	if e.Outcome == domain.OutcomeFailed {
		tag = tag.Bold()
	}
	line := fmt.Sprintf("%s %s", tag, e.Step)
	if e.Outcome == domain.OutcomeRan {
		line += s.profile.String(fmt.Sprintf(" (%s)", e.Duration.Round(time.Millisecond))).Faint().String()
	}
	fmt.Fprintln(s.w, line)
	if e.Err != nil {
		fmt.Fprintln(s.w, s.profile.String("  "+e.Err.Error()).Foreground(s.profile.Color(outcomeColors[domain.OutcomeFailed])))
	}
}

// Summary prints the totals of a run.
func (s *Status) Summary(r *domain.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := r.Finished.Sub(r.Started).Round(time.Millisecond)
	fmt.Fprintf(s.w, "%d ran, %d fresh, %d skipped, %d evaluated in %s\n",
		r.Count(domain.OutcomeRan), r.Count(domain.OutcomeFresh),
		r.Count(domain.OutcomeSkipped), r.Count(domain.OutcomeEvaluated), total)
}
