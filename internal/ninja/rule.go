package ninja

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/kiln/pkg/domain"
)

// ruleKey is the canonical form of a rule hashed into its name.
type ruleKey struct {
	Shape       string   `json:"shape"`
	Command     []string `json:"command"`
	Outputs     []string `json:"outputs"`
	Description string   `json:"description,omitempty"`
	Depfile     string   `json:"depfile,omitempty"`
	Deps        string   `json:"deps,omitempty"`
	Generator   bool     `json:"generator,omitempty"`
	Pool        string   `json:"pool,omitempty"`
	Restat      bool     `json:"restat,omitempty"`
}

// RuleName derives cmd_<shape>_<digest> from the rule, its inputs and its
// dyndep file. Any differing field yields a different name.
func RuleName(e *Entry) string {
	key, _ := json.Marshal(ruleKey{
		Shape:       e.Shape,
		Command:     e.Lines,
		Outputs:     e.Outputs,
		Description: e.Description,
		Depfile:     e.Depfile,
		Deps:        e.Deps,
		Generator:   e.Generator,
		Pool:        e.Pool,
		Restat:      e.Restat,
	})
	inputs, _ := json.Marshal(struct {
		Inputs    []string `json:"inputs"`
		OrderOnly []string `json:"order_only,omitempty"`
	}{e.Inputs, e.OrderOnly})
	dyndep, _ := json.Marshal(e.Dyndep)

	h := sha256.New()
	h.Write(key)
	h.Write(inputs)
	h.Write(dyndep)
	return "cmd_" + identifier(e.Shape) + "_" + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// identifier keeps the characters ninja accepts in a rule name.
func identifier(s string) string {
	if s == "" {
		return "cmd"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		}
		return '_'
	}, s)
}

// commandLines renders a command as shell lines. A working directory
// becomes "cd dir" ... "cd -" around the command.
func commandLines(cmd *domain.Command) []string {
	line := shellLine(cmd)
	switch {
	case cmd.Dir != "" && cmd.Stdout != "":
		// the redirect target is relative to the build root, not to Dir
		return []string{"(cd " + quote(cmd.Dir) + " && " + line + ") > " + quote(cmd.Stdout)}
	case cmd.Stdout != "":
		return []string{line + " > " + quote(cmd.Stdout)}
	case cmd.Dir != "":
		return []string{"cd " + quote(cmd.Dir), line, "cd -"}
	}
	return []string{line}
}

func shellLine(cmd *domain.Command) string {
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(cmd.Env)) {
		parts = append(parts, k+"="+quote(cmd.Env[k]))
	}
	for _, a := range cmd.Argv {
		switch {
		case !a.Present:
		case a.Raw:
			parts = append(parts, a.Value)
		default:
			parts = append(parts, quote(a.Value))
		}
	}
	return strings.Join(parts, " ")
}

// quote returns s as a single POSIX shell word.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_@%+=:,./-", r):
		default:
			safe = false
		}
		if !safe {
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
