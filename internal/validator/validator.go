package validator

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/aretw0/kiln/internal/ninja"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
)

// Report summarizes a plan that passed validation.
type Report struct {
	Root  string
	Steps int
	// Unreachable lists groups the root group never expands.
	Unreachable []string
	// Warnings are problems that only one of the two backends rejects.
	Warnings []string
}

// ValidatePlan flattens every group in reg and lowers the root group to ninja.
// All planning errors are joined into the returned error.
func ValidatePlan(reg *plan.Registry, root string, opts ninja.Options) (*Report, error) {
	if err := reg.Err(); err != nil {
		return nil, err
	}
	if root == "" {
		return nil, errors.New("plan has no root group")
	}

	var errs []error
	dags := make(map[string]*plan.DAG)
	for _, name := range reg.Names() {
		dag, err := plan.Build(reg, plan.Ref(name))
		if err != nil {
			errs = append(errs, fmt.Errorf("group '%s': %w", name, err))
			continue
		}
		dags[name] = dag
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("found %d errors:\n%w", len(errs), errors.Join(errs...))
	}

	dag, ok := dags[root]
	if !ok {
		return nil, &domain.PlanError{Node: root, Err: domain.ErrUnknownGroup}
	}

	report := &Report{Root: root, Steps: dag.Len()}
	expanded := dag.Groups()
	for _, name := range reg.Names() {
		if !slices.Contains(expanded, name) {
			report.Unreachable = append(report.Unreachable, name)
		}
	}

	for _, v := range dag.Order() {
		cmd, ok := v.Step.Command()
		if !ok {
			continue
		}
		if len(cmd.Outputs) == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("step '%s' declares no outputs: it always runs and cannot be serialized", v.Name))
		}
	}

	if err := ninja.Render(io.Discard, dag, opts); err != nil {
		if errors.Is(err, domain.ErrEmptyOutputs) {
			return report, nil
		}
		// values only known at run time are not a defect of the plan
		if errors.Is(err, domain.ErrUnresolved) {
			report.Warnings = append(report.Warnings, err.Error())
			return report, nil
		}
		return nil, fmt.Errorf("ninja lowering: %w", err)
	}
	return report, nil
}
