package domain

import "time"

// Invocation is a fully materialized subprocess request.
type Invocation struct {
	Argv []string
	Dir  string
	// Env is overlaid on the parent environment.
	Env    map[string]string
	Stdout string
}

// ProcessResult is what the subprocess boundary reports back.
type ProcessResult struct {
	ExitCode int
	Stderr   string
	Duration time.Duration
}

// StepResult is one line of a RunReport.
type StepResult struct {
	Step     string        `json:"step"`
	Kind     ActionKind    `json:"kind"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// RunReport summarizes one executor run.
type RunReport struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Steps    []StepResult   `json:"steps"`
	Context  map[string]any `json:"context"`
}

// Count returns how many steps completed with o.
func (r *RunReport) Count(o Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}
