package compiler

import (
	"fmt"
	"strings"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/spf13/cast"
)

// template is a string with ${KEY} references into the Context.
// "$${" stands for a literal "${".
type template struct {
	source string
	parts  []part
}

type part struct {
	lit string
	key string
}

func parseTemplate(s string) (template, error) {
	t := template{source: s}
	var lit strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "$${"):
			lit.WriteString("${")
			i += 2
		case strings.HasPrefix(s[i:], "${"):
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return template{}, fmt.Errorf("unterminated reference in %q", s)
			}
			key := strings.TrimSpace(s[i+2 : i+end])
			if key == "" {
				return template{}, fmt.Errorf("empty reference in %q", s)
			}
			if lit.Len() > 0 {
				t.parts = append(t.parts, part{lit: lit.String()})
				lit.Reset()
			}
			t.parts = append(t.parts, part{key: key})
			i += end
		default:
			lit.WriteByte(s[i])
		}
	}
	if lit.Len() > 0 || len(t.parts) == 0 {
		t.parts = append(t.parts, part{lit: lit.String()})
	}
	return t, nil
}

// static reports whether the template references no keys.
func (t template) static() bool {
	for _, p := range t.parts {
		if p.key != "" {
			return false
		}
	}
	return true
}

// literal returns the text of a static template.
func (t template) literal() string {
	var b strings.Builder
	for _, p := range t.parts {
		b.WriteString(p.lit)
	}
	return b.String()
}

// render substitutes the referenced values. raw reports that a value is a
// domain.Shell, which must reach the shell unquoted.
func (t template) render(c *domain.Context) (out string, raw bool, err error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.key == "" {
			b.WriteString(p.lit)
			continue
		}
		v, err := c.Value(p.key)
		if err != nil {
			return "", false, err
		}
		if sh, ok := v.(domain.Shell); ok {
			b.WriteString(sh.String())
			raw = true
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return "", false, fmt.Errorf("%w: %q: %v", domain.ErrKeyType, p.key, err)
		}
		b.WriteString(s)
	}
	return b.String(), raw, nil
}

// renderString is render for fields where shell values are not allowed.
func (t template) renderString(c *domain.Context) (string, error) {
	s, raw, err := t.render(c)
	if err != nil {
		return "", err
	}
	if raw {
		return "", fmt.Errorf("%w: %q needs a value known before the build", domain.ErrKeyType, t.source)
	}
	return s, nil
}

type templates []template

func parseTemplates(in []string) (templates, error) {
	out := make(templates, len(in))
	for i, s := range in {
		t, err := parseTemplate(s)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (ts templates) static() bool {
	for _, t := range ts {
		if !t.static() {
			return false
		}
	}
	return true
}

func (ts templates) render(c *domain.Context) ([]string, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	out := make([]string, len(ts))
	for i, t := range ts {
		s, err := t.renderString(c)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
