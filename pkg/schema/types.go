package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// Type converts a raw variable value into its declared type.
type Type interface {
	// Name returns the type as written in a plan document (e.g. "int", "[string]").
	Name() string
	// Coerce returns value converted to the type, or an error if it cannot be.
	Coerce(value any) (any, error)
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Coerce(value any) (any, error) {
	return cast.ToStringE(value)
}

// intType parses strings with base prefixes, so "0x5000" is 20480.
type intType struct{}

func (intType) Name() string { return "int" }

func (intType) Coerce(value any) (any, error) {
	if f, ok := value.(float64); ok && f != float64(int64(f)) {
		return nil, fmt.Errorf("expected int, got float (not a whole number)")
	}
	if _, ok := value.(bool); ok {
		return nil, fmt.Errorf("expected int, got bool")
	}
	return cast.ToInt64E(value)
}

type floatType struct{}

func (floatType) Name() string { return "float" }

func (floatType) Coerce(value any) (any, error) {
	if _, ok := value.(bool); ok {
		return nil, fmt.Errorf("expected float, got bool")
	}
	return cast.ToFloat64E(value)
}

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) Coerce(value any) (any, error) {
	switch value.(type) {
	case bool, string:
		return cast.ToBoolE(value)
	default:
		return nil, fmt.Errorf("expected bool, got %T", value)
	}
}

// sliceType accepts lists, and comma-separated strings from the command line.
type sliceType struct {
	elem Type
}

func (t sliceType) Name() string { return "[" + t.elem.Name() + "]" }

func (t sliceType) Coerce(value any) (any, error) {
	var items []any
	switch v := value.(type) {
	case string:
		if v != "" {
			for _, part := range strings.Split(v, ",") {
				items = append(items, strings.TrimSpace(part))
			}
		}
	default:
		var err error
		items, err = cast.ToSliceE(value)
		if err != nil {
			strs, serr := cast.ToStringSliceE(value)
			if serr != nil {
				return nil, fmt.Errorf("expected list, got %T", value)
			}
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		}
	}

	out := make([]any, len(items))
	for i, item := range items {
		c, err := t.elem.Coerce(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

type enumType struct {
	values []string
}

func (t enumType) Name() string { return strings.Join(t.values, "|") }

func (t enumType) Coerce(value any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(t.values, s) {
		return nil, fmt.Errorf("expected one of %s, got %q", t.Name(), s)
	}
	return s, nil
}

type customType struct {
	name   string
	coerce func(any) (any, error)
}

func (t customType) Name() string { return t.name }

func (t customType) Coerce(value any) (any, error) { return t.coerce(value) }

// String creates a string type.
func String() Type { return stringType{} }

// Int creates an integer type. Values are stored as int64.
func Int() Type { return intType{} }

// Float creates a float type. Values are stored as float64.
func Float() Type { return floatType{} }

// Bool creates a boolean type.
func Bool() Type { return boolType{} }

// Slice creates a list type whose elements are coerced to elem.
func Slice(elem Type) Type { return sliceType{elem: elem} }

// Enum creates a string type restricted to values.
func Enum(values ...string) Type { return enumType{values: values} }

// Custom creates a type from a user-defined conversion.
func Custom(name string, coerce func(any) (any, error)) Type {
	return customType{name: name, coerce: coerce}
}

// ParseType converts a type name to a Type.
// Supports "string", "int", "float", "bool", "[T]" lists and "a|b|c" enums.
func ParseType(typeStr string) (Type, error) {
	typeStr = strings.TrimSpace(typeStr)
	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elem, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	if strings.Contains(typeStr, "|") {
		values := strings.Split(typeStr, "|")
		for i, v := range values {
			values[i] = strings.TrimSpace(v)
			if values[i] == "" {
				return nil, fmt.Errorf("empty value in enum %q", typeStr)
			}
		}
		return Enum(values...), nil
	}

	switch typeStr {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// ParseTypeMap converts a map of variable names to type names into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
