package schema

import (
	"maps"
	"slices"
)

// Schema maps variable names to their declared types.
type Schema map[string]Type

// Apply returns a copy of vars with every declared variable coerced to its type.
// A declared variable that is absent or null is an error. All failures are reported together.
func Apply(schema Schema, vars map[string]any) (map[string]any, error) {
	return apply(schema, vars, true)
}

// ApplyPartial is Apply without the requirement that every declared variable has a value.
// It checks defaults that overrides may complete later.
func ApplyPartial(schema Schema, vars map[string]any) (map[string]any, error) {
	return apply(schema, vars, false)
}

func apply(schema Schema, vars map[string]any, required bool) (map[string]any, error) {
	out := maps.Clone(vars)
	if out == nil {
		out = make(map[string]any)
	}
	if len(schema) == 0 {
		return out, nil
	}

	var errs []error
	for _, key := range slices.Sorted(maps.Keys(schema)) {
		value, ok := vars[key]
		if !ok || value == nil {
			if !required {
				continue
			}
			errs = append(errs, &ValidationError{Key: key, Reason: "required", missing: true})
			continue
		}
		coerced, err := schema[key].Coerce(value)
		if err != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: err.Error(), Value: value})
			continue
		}
		out[key] = coerced
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return out, nil
}

// Names returns the type name of every declared variable.
func (s Schema) Names() map[string]string {
	names := make(map[string]string, len(s))
	for k, t := range s {
		names[k] = t.Name()
	}
	return names
}
