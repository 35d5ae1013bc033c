package plan

import (
	"errors"
	"maps"

	"github.com/aretw0/kiln/pkg/domain"
)

// Materialize resolves the step's action against c. Deferred steps are
// built now; commands get the step's env overlay merged over their own.
// The returned command is a copy, the plan itself is never mutated.
func (v *Vertex) Materialize(c *domain.Context) (domain.Action, error) {
	s := v.Step
	action := s.Action
	if s.Deferred != nil {
		var err error
		action, err = s.Deferred(c)
		if err != nil {
			return nil, &domain.PlanError{Node: v.Name, Msg: "cannot materialize deferred step", Err: err}
		}
		if action == nil {
			return nil, &domain.PlanError{Node: v.Name, Msg: "deferred step produced no action", Err: domain.ErrInvalidStep}
		}
		if s.FreshKey != "" && action.Kind() != domain.KindCommand {
			return nil, &domain.PlanError{Node: v.Name, Msg: "freshness key on a non-command step", Err: domain.ErrInvalidStep}
		}
	}

	cmd, ok := action.(*domain.Command)
	if !ok || len(s.Env) == 0 {
		return action, nil
	}
	merged := *cmd
	merged.Env = maps.Clone(cmd.Env)
	if merged.Env == nil {
		merged.Env = make(map[string]string, len(s.Env))
	}
	maps.Copy(merged.Env, s.Env)
	return &merged, nil
}

// IsOrdering reports whether err stems from reading the Context before the
// key was written, or reading it as the wrong type.
func IsOrdering(err error) bool {
	return errors.Is(err, domain.ErrMissingKey) ||
		errors.Is(err, domain.ErrKeyType) ||
		errors.Is(err, domain.ErrKeyRewritten)
}
