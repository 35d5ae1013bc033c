package domain

import (
	"context"
	"time"
)

// Outcome describes how a step completed.
type Outcome string

const (
	OutcomeRan       Outcome = "ran"
	OutcomeFresh     Outcome = "fresh"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeEvaluated Outcome = "evaluated"
	OutcomeFailed    Outcome = "failed"
)

// StepEvent is emitted around every step the executor visits.
type StepEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Step      string        `json:"step"`
	Kind      ActionKind    `json:"kind"`
	Outcome   Outcome       `json:"outcome,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for executor observability.
type LifecycleHooks struct {
	OnStepStart  func(context.Context, *StepEvent)
	OnStepFinish func(context.Context, *StepEvent)
}

// ChainHooks calls each set of hooks in order.
func ChainHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *StepEvent) {
			for _, h := range hooks {
				if h.OnStepStart != nil {
					h.OnStepStart(ctx, e)
				}
			}
		},
		OnStepFinish: func(ctx context.Context, e *StepEvent) {
			for _, h := range hooks {
				if h.OnStepFinish != nil {
					h.OnStepFinish(ctx, e)
				}
			}
		},
	}
}
