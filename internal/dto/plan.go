package dto

// PlanDocument is the decoded form of a plan.yaml file.
// It uses "mapstructure" tags so unknown keys can be rejected while decoding.
type PlanDocument struct {
	Name string         `json:"name" mapstructure:"name"`
	Root string         `json:"root" mapstructure:"root"`
	Vars map[string]any `json:"vars" mapstructure:"vars"`
	// Types declares variable types as "int", "bool", "[string]", "a|b" and so on.
	Types  map[string]string   `json:"types" mapstructure:"types"`
	Ninja  NinjaConfig         `json:"ninja" mapstructure:"ninja"`
	Groups map[string]NodeSpec `json:"groups" mapstructure:"groups"`
}

// NinjaConfig holds the top-level settings of the generated ninja file.
type NinjaConfig struct {
	RequiredVersion string         `json:"required_version" mapstructure:"required_version"`
	BuildDir        string         `json:"builddir" mapstructure:"builddir"`
	Defaults        []string       `json:"defaults" mapstructure:"defaults"`
	Pools           map[string]int `json:"pools" mapstructure:"pools"`
	Include         []string       `json:"include" mapstructure:"include"`
	Subninja        []string       `json:"subninja" mapstructure:"subninja"`
	Header          []string       `json:"header" mapstructure:"header"`
}

// NodeSpec is one plan node. Exactly one field is set.
type NodeSpec struct {
	Step     *StepSpec  `json:"step,omitempty" mapstructure:"step"`
	Sequence []NodeSpec `json:"sequence,omitempty" mapstructure:"sequence"`
	Parallel []NodeSpec `json:"parallel,omitempty" mapstructure:"parallel"`
	Ref      string     `json:"ref,omitempty" mapstructure:"ref"`
}

// StepSpec describes a step. Exactly one of Cmd, Expr and Assert is set.
type StepSpec struct {
	Label string `json:"label" mapstructure:"label"`

	// Cmd entries are strings, null (absent) or {arg, when} maps.
	Cmd    []any       `json:"cmd" mapstructure:"cmd"`
	Expr   *ExprSpec   `json:"expr" mapstructure:"expr"`
	Assert *AssertSpec `json:"assert" mapstructure:"assert"`

	Inputs  []string          `json:"inputs" mapstructure:"inputs"`
	Outputs []string          `json:"outputs" mapstructure:"outputs"`
	Dir     string            `json:"dir" mapstructure:"dir"`
	Stdout  string            `json:"stdout" mapstructure:"stdout"`
	Env     map[string]string `json:"env" mapstructure:"env"`
	Depfile string            `json:"depfile" mapstructure:"depfile"`

	Requires []string   `json:"requires" mapstructure:"requires"`
	When     *GuardSpec `json:"when" mapstructure:"when"`
	Fresh    string     `json:"fresh" mapstructure:"fresh"`

	// Scheduler hints
	Description string `json:"description" mapstructure:"description"`
	Shape       string `json:"shape" mapstructure:"shape"`
	Deps        string `json:"deps" mapstructure:"deps"`
	Pool        string `json:"pool" mapstructure:"pool"`
	Restat      bool   `json:"restat" mapstructure:"restat"`
	Generator   bool   `json:"generator" mapstructure:"generator"`
	Dyndep      string `json:"dyndep" mapstructure:"dyndep"`
}

// ConditionalArg is a cmd entry present only when the boolean key When is true.
type ConditionalArg struct {
	Arg  string `json:"arg" mapstructure:"arg"`
	When string `json:"when" mapstructure:"when"`
}

// GuardSpec runs the step when Key is true, or when Not is false.
type GuardSpec struct {
	Key string `json:"key" mapstructure:"key"`
	Not string `json:"not" mapstructure:"not"`
}

// OperandSpec computes a value: a literal, a file size or another key,
// optionally integer-divided by Div and then offset by Add.
type OperandSpec struct {
	Value    any    `json:"value" mapstructure:"value"`
	FileSize string `json:"file_size" mapstructure:"file_size"`
	From     string `json:"from" mapstructure:"from"`
	Div      any    `json:"div" mapstructure:"div"`
	Add      any    `json:"add" mapstructure:"add"`
}

// ExprSpec stores an operand under Name. Shell is the equivalent snippet
// used when the value is only known at build time.
type ExprSpec struct {
	Name        string `json:"name" mapstructure:"name"`
	OperandSpec `mapstructure:",squash"`
	Shell       string `json:"shell" mapstructure:"shell"`
}

// AssertSpec compares two operands. Shell, when set, is the command ninja
// runs to check the same condition; it reads Inputs.
type AssertSpec struct {
	Left    any      `json:"left" mapstructure:"left"`
	Op      string   `json:"op" mapstructure:"op"`
	Right   any      `json:"right" mapstructure:"right"`
	Message string   `json:"message" mapstructure:"message"`
	Shell   string   `json:"shell" mapstructure:"shell"`
	Inputs  []string `json:"inputs" mapstructure:"inputs"`
}
