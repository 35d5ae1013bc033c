package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/kiln/internal/presentation/graph"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/dsl"
	"github.com/aretw0/kiln/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kernelDAG(t *testing.T) *plan.DAG {
	t.Helper()
	b := dsl.New()
	codegen := b.Group("codegen", dsl.Cmd("constcodegen", "-t", "build/").Out("build/constants.rs"))
	kernel := b.Group("kernel", dsl.Seq(
		dsl.Run(dsl.Cmd("ld", "-o", "build/kernel.elf").Out("build/kernel.elf")).
			Requires(codegen).Fresh("kernel_fresh").Label("link"),
		dsl.Do(dsl.Expr("imgsize", func(*domain.Context) (int64, error) { return 1, nil })).Label("size"),
		dsl.Do(dsl.Assert("fits", func(*domain.Context) (bool, error) { return true, nil })).Label("check"),
		dsl.DeferCmd(func(*domain.Context) (*dsl.CommandBuilder, error) {
			return dsl.Cmd("cp"), nil
		}).Unless("kernel_fresh").Label("copy"),
	))
	dag, err := b.Build(kernel)
	require.NoError(t, err)
	return dag
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(kernelDAG(t), nil)

	tests := []struct {
		name     string
		contains []string
	}{
		{
			name:     "Header",
			contains: []string{"graph TD\n"},
		},
		{
			name: "Subgraphs per group",
			contains: []string{
				"subgraph g_codegen[\"codegen\"]",
				"subgraph g_kernel[\"kernel\"]",
			},
		},
		{
			name: "Shapes",
			contains: []string{
				"[\"link<br/>ld -o build/kernel.elf<br/>fresh: kernel_fresh\"]",
				"[/\"size<br/>expr imgsize\"/]",
				"{\"check<br/>assert fits\"}",
				"[[\"copy\"]]",
			},
		},
		{
			name:     "Guarded edge is dotted",
			contains: []string{"s3 -.-> s4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
	assert.NotContains(t, out, "Overlay Styles")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	dag := kernelDAG(t)
	report := &domain.RunReport{Steps: []domain.StepResult{
		{Step: "codegen#1", Outcome: domain.OutcomeFresh},
		{Step: "link", Outcome: domain.OutcomeRan},
		{Step: "size", Outcome: domain.OutcomeEvaluated},
		{Step: "check", Outcome: domain.OutcomeFailed},
	}}

	out := graph.GenerateMermaid(dag, graph.OverlayFromReport(report))
	assert.Contains(t, out, "classDef failed")
	assert.Contains(t, out, "class s0 fresh;")
	assert.Contains(t, out, "class s2 ran;")
	assert.Contains(t, out, "class s3 failed;")
	assert.False(t, strings.Contains(out, "class s4 "), "copy did not run")
}
