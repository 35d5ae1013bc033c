package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
)

// GraphOverlay contains run results to visualize on the graph.
type GraphOverlay struct {
	// Outcomes maps step names to what happened to them.
	Outcomes map[string]domain.Outcome
	// Failed is the step that aborted the run, if any.
	Failed string
}

// GenerateMermaid produces a Mermaid flowchart of a flattened plan.
// Steps are grouped into one subgraph per dependency group and shaped by action:
// - Command: [Rectangle]
// - Expression: [/Parallelogram/]
// - Assertion: {Rhombus}
// - Deferred: [[Subroutine]]
// Edges into guarded steps are dotted.
func GenerateMermaid(dag *plan.DAG, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	byGroup := make(map[string][]*plan.Vertex)
	for _, v := range dag.Order() {
		byGroup[v.Group] = append(byGroup[v.Group], v)
	}
	for _, group := range dag.Groups() {
		members := byGroup[group]
		if len(members) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("g_"+group), group)
		for _, v := range members {
			opener, closer := shape(v.Step)
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", nodeID(v), opener, label(v), closer)
		}
		sb.WriteString("    end\n")
	}

	for _, v := range dag.Order() {
		arrow := "-->"
		if v.Step.Guard != nil {
			arrow = "-.->"
		}
		for _, d := range dag.Deps(v) {
			fmt.Fprintf(&sb, "    %s %s %s\n", nodeID(d), arrow, nodeID(v))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds
		sb.WriteString("    classDef ran fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef fresh fill:#e8f5e9,stroke:#2e7d32,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:4px,color:#000;\n")

		for _, v := range dag.Order() {
			outcome, ok := overlay.Outcomes[v.Name]
			if v.Name == overlay.Failed {
				outcome, ok = domain.OutcomeFailed, true
			}
			if !ok {
				continue
			}
			class := string(outcome)
			if outcome == domain.OutcomeEvaluated {
				class = "ran"
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", nodeID(v), class)
		}
	}

	return sb.String()
}

func shape(s *plan.Step) (string, string) {
	if !s.Static() {
		return "[[", "]]"
	}
	switch s.Action.Kind() {
	case domain.KindExpression:
		return "[/", "/]"
	case domain.KindAssertion:
		return "{", "}"
	}
	return "[", "]"
}

func label(v *plan.Vertex) string {
	text := v.Name
	if v.Step.Static() {
		text += "<br/>" + v.Step.Action.Describe()
	}
	if v.Step.FreshKey != "" {
		text += "<br/>fresh: " + v.Step.FreshKey
	}
	return strings.ReplaceAll(text, "\"", "'")
}

func nodeID(v *plan.Vertex) string {
	return fmt.Sprintf("s%d", v.ID)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "#", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// OverlayFromReport builds an overlay from a finished or aborted run.
func OverlayFromReport(r *domain.RunReport) *GraphOverlay {
	o := &GraphOverlay{Outcomes: make(map[string]domain.Outcome, len(r.Steps))}
	for _, s := range r.Steps {
		o.Outcomes[s.Step] = s.Outcome
		if s.Outcome == domain.OutcomeFailed {
			o.Failed = s.Step
		}
	}
	return o
}
