package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/domain"
)

// forcedExitCode is the status used when a second signal arrives mid-step.
const forcedExitCode = 130

// SignalContext is cancelled by the first SIGINT or SIGTERM. The executor then
// stops before the next step while the running subprocess finishes; a second
// signal exits the process at once.
type SignalContext struct {
	context.Context
	cancel context.CancelFunc

	sigCh chan os.Signal
	done  chan struct{}
	once  sync.Once
	exit  func(int)

	mu  sync.Mutex
	sig os.Signal
}

// NewSignalContext creates a SignalContext derived from parent.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		cancel:  cancel,
		sigCh:   make(chan os.Signal, 2),
		done:    make(chan struct{}),
		exit:    os.Exit,
	}
	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go sc.watch()
	return sc
}

func (sc *SignalContext) watch() {
	defer signal.Stop(sc.sigCh)

	select {
	case sig := <-sc.sigCh:
		sc.mu.Lock()
		sc.sig = sig
		sc.mu.Unlock()
		sc.cancel()
		printSystemMessage("Received %v, stopping after the current step (repeat to force).", sig)
	case <-sc.done:
		return
	}

	select {
	case <-sc.sigCh:
		sc.exit(forcedExitCode)
	case <-sc.done:
	}
}

// Cancel releases the context and stops listening for signals.
func (sc *SignalContext) Cancel() {
	sc.once.Do(func() { close(sc.done) })
	sc.cancel()
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sig
}

// createLogger configures the application logger on stderr.
// Without a level only warnings and errors are printed.
func createLogger(level string) (*slog.Logger, error) {
	if level == "" {
		level = "warn"
	}
	l, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(l), nil
}

// ParseVars turns repeated --var KEY=VALUE flags into Context overrides.
func ParseVars(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q: expected KEY=VALUE", p)
		}
		out[k] = v
	}
	return out, nil
}

// printSystemMessage prints a standardized system message to stdout.
func printSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("step started", "step", e.Step, "kind", e.Kind, "run", e.RunID)
		},
		OnStepFinish: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.Debug("step failed", "step", e.Step, "err", e.Err)
			}
		},
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}

// handleExecutionError maps an interrupted run to a clean exit.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}
