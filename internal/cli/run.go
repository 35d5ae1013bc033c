package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/presentation/tui"
	"github.com/aretw0/kiln/pkg/observability"
)

// NinjaOutputEnv overrides the default path of generated ninja files.
const NinjaOutputEnv = "KILN_NINJA_OUTPUT"

// RunOptions contains the configuration shared by the plan commands.
type RunOptions struct {
	PlanPath    string
	Target      string
	Vars        []string // KEY=VALUE
	LogLevel    string
	Fingerprint string
	ToolsPath   string
	RedisURL    string
	MetricsFile string
	Headless    bool
	Watch       bool
}

// Execute handles the 'run' command, dispatching to watch mode when asked.
func Execute(opts RunOptions) error {
	if opts.Watch {
		if opts.Headless {
			return fmt.Errorf("--watch and --headless cannot be used together")
		}
		return RunWatch(opts)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	err := runOnce(sigCtx, opts, os.Stdout)
	if sig := sigCtx.Signal(); sig != nil {
		printSystemMessage("Interrupted by %v.", sig)
	}
	return handleExecutionError(err)
}

func runOnce(ctx context.Context, opts RunOptions, out io.Writer) error {
	overrides, err := ParseVars(opts.Vars)
	if err != nil {
		return err
	}
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	engine, closer, err := createEngine(opts, logger, metrics.Hooks())
	if err != nil {
		return err
	}
	defer closer()

	r := kiln.NewRunner(out)
	r.Headless = opts.Headless
	r.Vars = overrides
	if !opts.Headless && tui.IsTerminal(out) {
		if render, err := tui.NewRenderer(); err == nil {
			r.Renderer = render
		}
	}

	_, runErr := r.Run(ctx, engine, opts.Target)
	metrics.RecordRun(runErr)
	if opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Warn("cannot write metrics", "path", opts.MetricsFile, "err", err)
		}
	}
	return runErr
}

// WriteNinja serializes the target to output, KILN_NINJA_OUTPUT, or
// build.ninja next to the plan, in that order. "-" writes to stdout.
// The file is replaced only when serialization succeeds.
func WriteNinja(opts RunOptions, output string) (string, error) {
	planPath, err := ResolvePlan(opts.PlanPath)
	if err != nil {
		return "", err
	}
	opts.PlanPath = planPath
	overrides, err := ParseVars(opts.Vars)
	if err != nil {
		return "", err
	}
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return "", err
	}
	engine, closer, err := createEngine(opts, logger, noHooks)
	if err != nil {
		return "", err
	}
	defer closer()

	if output == "" {
		output = os.Getenv(NinjaOutputEnv)
	}
	if output == "" {
		output = filepath.Join(filepath.Dir(opts.PlanPath), "build.ninja")
	}

	var buf bytes.Buffer
	if err := engine.Ninja(&buf, opts.Target, overrides); err != nil {
		return "", err
	}
	if output == "-" {
		_, err := buf.WriteTo(os.Stdout)
		return output, err
	}

	tmp := output + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write ninja file: %w", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write ninja file: %w", err)
	}
	logger.Info("ninja file written", "path", output)
	return output, nil
}
