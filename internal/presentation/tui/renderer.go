package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/kiln/pkg/plan"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render, nil
}

// PlanReport describes a flattened plan as a markdown document.
func PlanReport(name string, dag *plan.DAG) string {
	var sb strings.Builder
	title := dag.Root()
	if name != "" {
		title = name + " / " + title
	}
	fmt.Fprintf(&sb, "# Plan %s\n\n", title)
	fmt.Fprintf(&sb, "%d steps in %d groups.\n\n", dag.Len(), len(dag.Groups()))

	sb.WriteString("| # | Step | Group | Kind | Action | After |\n")
	sb.WriteString("|---|------|-------|------|--------|-------|\n")
	for i, v := range dag.Order() {
		kind, action := "deferred", "_resolved at run time_"
		if v.Step.Static() {
			kind = string(v.Step.Action.Kind())
			action = "`" + strings.ReplaceAll(v.Step.Action.Describe(), "|", "\\|") + "`"
		}
		if v.Step.Guard != nil {
			kind += " (guarded)"
		}
		var after []string
		for _, d := range dag.Deps(v) {
			after = append(after, d.Name)
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %s |\n", i+1, v.Name, v.Group, kind, action, strings.Join(after, ", "))
	}

	var outputs []string
	for _, v := range dag.Sinks() {
		if c, ok := v.Step.Command(); ok {
			outputs = append(outputs, c.Outputs...)
		}
	}
	if len(outputs) > 0 {
		sb.WriteString("\n## Final outputs\n\n")
		for _, o := range outputs {
			fmt.Fprintf(&sb, "- `%s`\n", o)
		}
	}
	return sb.String()
}

// WritePlanReport writes the report to w, styled when w is a terminal.
func WritePlanReport(w io.Writer, name string, dag *plan.DAG) error {
	md := PlanReport(name, dag)
	if !IsTerminal(w) {
		_, err := io.WriteString(w, md)
		return err
	}
	render, err := NewRenderer()
	if err != nil {
		return err
	}
	out, err := render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
