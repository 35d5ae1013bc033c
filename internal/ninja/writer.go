package ninja

import (
	"fmt"
	"io"
	"strings"
)

// Writer emits ninja syntax line by line. The first write error sticks and
// is returned by Err; later calls are no-ops.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Err() error { return w.err }

func (w *Writer) Newline() {
	w.raw("\n")
}

func (w *Writer) Comment(text string) {
	for _, line := range strings.Split(text, "\n") {
		w.line(0, "# "+line)
	}
}

// Variable writes "key = value". Empty values are skipped.
func (w *Writer) Variable(key, value string, indent int) {
	if value == "" {
		return
	}
	w.line(indent, key+" = "+value)
}

func (w *Writer) Pool(name string, depth int) {
	w.line(0, "pool "+name)
	w.Variable("depth", fmt.Sprint(depth), 1)
}

// Rule writes a rule block. Attributes are written only when set. Command
// text has "$" doubled; several lines are chained with "&&".
func (w *Writer) Rule(e *Entry) {
	w.line(0, "rule "+e.Rule)

	lines := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = strings.ReplaceAll(l, "$", "$$")
	}
	if len(lines) > 1 {
		w.line(1, "command = "+lines[0]+" $")
		for _, l := range lines[1 : len(lines)-1] {
			w.line(2, "&& "+l+" $")
		}
		w.line(2, "&& "+lines[len(lines)-1])
	} else if len(lines) == 1 {
		w.Variable("command", lines[0], 1)
	}

	w.Variable("description", e.Description, 1)
	w.Variable("depfile", e.Depfile, 1)
	if e.Generator {
		w.Variable("generator", "1", 1)
	}
	w.Variable("pool", e.Pool, 1)
	if e.Restat {
		w.Variable("restat", "1", 1)
	}
	w.Variable("deps", e.Deps, 1)
}

// Build writes the edge binding the entry's rule to its paths.
func (w *Writer) Build(e *Entry) {
	var b strings.Builder
	b.WriteString("build ")
	b.WriteString(strings.Join(escapeAll(e.Outputs), " "))
	b.WriteString(": ")
	b.WriteString(e.Rule)
	if len(e.Inputs) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(escapeAll(e.Inputs), " "))
	}
	if len(e.OrderOnly) > 0 {
		b.WriteString(" || ")
		b.WriteString(strings.Join(escapeAll(e.OrderOnly), " "))
	}
	w.line(0, b.String())
	w.Variable("pool", e.Pool, 1)
	w.Variable("dyndep", e.Dyndep, 1)
}

// Entry writes a rule, its edge and a separating blank line.
func (w *Writer) Entry(e *Entry) {
	w.Rule(e)
	w.Build(e)
	w.Newline()
}

func (w *Writer) Include(path string) {
	w.line(0, "include "+Escape(path))
}

func (w *Writer) Subninja(path string) {
	w.line(0, "subninja "+Escape(path))
}

func (w *Writer) Default(paths []string) {
	if len(paths) == 0 {
		return
	}
	w.line(0, "default "+strings.Join(escapeAll(paths), " "))
}

func (w *Writer) line(indent int, text string) {
	w.raw(strings.Repeat("  ", indent) + text + "\n")
}

func (w *Writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}
