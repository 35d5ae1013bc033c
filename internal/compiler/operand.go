package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/kiln/internal/dto"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/spf13/cast"
)

// operand is a value computed while the plan runs.
type operand struct {
	literal  any
	text     *template
	fileSize *template
	from     string

	div, add       int64
	hasDiv, hasAdd bool
}

func compileOperand(raw any) (operand, error) {
	switch v := raw.(type) {
	case nil:
		return operand{}, fmt.Errorf("missing operand")
	case map[string]any:
		var spec dto.OperandSpec
		if err := decode(v, &spec); err != nil {
			return operand{}, err
		}
		return compileOperandSpec(spec)
	case string:
		t, err := parseTemplate(v)
		if err != nil {
			return operand{}, err
		}
		return operand{text: &t}, nil
	default:
		return operand{literal: v}, nil
	}
}

func compileOperandSpec(spec dto.OperandSpec) (operand, error) {
	var op operand
	sources := 0
	if spec.Value != nil {
		sources++
		inner, err := compileOperand(spec.Value)
		if err != nil {
			return operand{}, err
		}
		op = inner
	}
	if spec.FileSize != "" {
		sources++
		t, err := parseTemplate(spec.FileSize)
		if err != nil {
			return operand{}, err
		}
		op.fileSize = &t
	}
	if spec.From != "" {
		sources++
		op.from = spec.From
	}
	if sources != 1 {
		return operand{}, fmt.Errorf("operand needs exactly one of value, file_size and from")
	}

	if spec.Div != nil {
		n, err := cast.ToInt64E(spec.Div)
		if err != nil {
			return operand{}, fmt.Errorf("div: %w", err)
		}
		if n == 0 {
			return operand{}, fmt.Errorf("div must not be zero")
		}
		op.div, op.hasDiv = n, true
	}
	if spec.Add != nil {
		n, err := cast.ToInt64E(spec.Add)
		if err != nil {
			return operand{}, fmt.Errorf("add: %w", err)
		}
		op.add, op.hasAdd = n, true
	}
	return op, nil
}

func (o operand) eval(c *domain.Context, baseDir string) (any, error) {
	base, err := o.base(c, baseDir)
	if err != nil {
		return nil, err
	}
	if !o.hasDiv && !o.hasAdd {
		return base, nil
	}

	if sh, ok := base.(domain.Shell); ok {
		script := sh.String()
		if o.hasDiv {
			script = fmt.Sprintf("%s / %d", script, o.div)
		}
		if o.hasAdd {
			script = fmt.Sprintf("%s + %d", script, o.add)
		}
		return domain.Shell{Script: "echo $(( " + script + " ))"}, nil
	}

	n, err := cast.ToInt64E(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyType, err)
	}
	if o.hasDiv {
		n /= o.div
	}
	return n + o.add, nil
}

func (o operand) base(c *domain.Context, baseDir string) (any, error) {
	switch {
	case o.fileSize != nil:
		path, err := o.fileSize.renderString(c)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		fi, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		return fi.Size(), nil
	case o.from != "":
		return c.Value(o.from)
	case o.text != nil:
		// a lone reference keeps the type of the stored value
		if len(o.text.parts) == 1 && o.text.parts[0].key != "" {
			return c.Value(o.text.parts[0].key)
		}
		s, raw, err := o.text.render(c)
		if err != nil {
			return nil, err
		}
		if raw {
			return domain.Shell{Script: "echo " + s}, nil
		}
		return s, nil
	}
	return o.literal, nil
}

var comparisons = map[string]func(int) bool{
	"<":  func(c int) bool { return c < 0 },
	"<=": func(c int) bool { return c <= 0 },
	"==": func(c int) bool { return c == 0 },
	"!=": func(c int) bool { return c != 0 },
	">=": func(c int) bool { return c >= 0 },
	">":  func(c int) bool { return c > 0 },
}

// compare orders l and r numerically when both are numbers, as strings otherwise.
func compare(l, r any) (int, error) {
	for _, v := range []any{l, r} {
		if _, ok := v.(domain.Shell); ok {
			return 0, fmt.Errorf("%w: comparison needs values known before the build", domain.ErrUnresolved)
		}
	}
	lf, lok := number(l)
	rf, rok := number(r)
	if lok && rok {
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		}
		return 0, nil
	}
	ls, err := cast.ToStringE(l)
	if err != nil {
		return 0, err
	}
	rs, err := cast.ToStringE(r)
	if err != nil {
		return 0, err
	}
	switch {
	case ls < rs:
		return -1, nil
	case ls > rs:
		return 1, nil
	}
	return 0, nil
}

func number(v any) (float64, bool) {
	if _, ok := v.(bool); ok {
		return 0, false
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f, true
	}
	if n, err := cast.ToInt64E(v); err == nil {
		return float64(n), true
	}
	return 0, false
}
