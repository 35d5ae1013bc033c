package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/runtime"
	"github.com/aretw0/kiln/pkg/adapters/process"
	redisstore "github.com/aretw0/kiln/pkg/adapters/redis"
	"github.com/aretw0/kiln/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

var noHooks = domain.LifecycleHooks{}

// planCandidates are tried in order when --plan points at a directory.
var planCandidates = []string{"kiln.yaml", "kiln.yml", "plan.yaml", "plan.yml"}

// createEngine initializes a kiln engine with standard CLI conventions.
// The returned func releases the fingerprint store.
func createEngine(opts RunOptions, logger *slog.Logger, hooks domain.LifecycleHooks) (*kiln.Engine, func(), error) {
	planPath, err := ResolvePlan(opts.PlanPath)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {}

	engineOpts := []kiln.Option{
		kiln.WithLogger(logger),
		kiln.WithLifecycleHooks(domain.ChainHooks(createDebugHooks(logger), hooks)),
	}

	mode, err := runtime.ParseFingerprintMode(opts.Fingerprint)
	if err != nil {
		return nil, nil, err
	}
	engineOpts = append(engineOpts, kiln.WithFingerprintMode(mode))

	// Tool aliases: an explicit path must load, the default next to the plan may be absent.
	toolsPath := opts.ToolsPath
	if toolsPath == "" {
		toolsPath = filepath.Join(filepath.Dir(planPath), "tools.yaml")
	}
	tools, err := process.LoadTools(toolsPath)
	if err != nil {
		return nil, nil, err
	}
	if len(tools) > 0 {
		logger.Debug("tool aliases loaded", "path", toolsPath, "count", len(tools))
		engineOpts = append(engineOpts, kiln.WithProcessRunner(process.NewRunner(
			process.WithRegistry(tools),
			process.WithBaseDir(filepath.Dir(planPath)),
		)))
	}

	if opts.RedisURL != "" {
		redisOpts, err := backend.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --redis url: %w", err)
		}
		client := backend.NewClient(redisOpts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("cannot reach redis: %w", err)
		}
		store := redisstore.NewFromClient(client, redisstore.WithProject(projectName(planPath)))
		engineOpts = append(engineOpts, kiln.WithStore(store), kiln.WithLocker(store.Locker()))
		closer = func() { store.Close() }
	}

	engine, err := kiln.New(planPath, engineOpts...)
	if err != nil {
		closer()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, closer, nil
}

// ResolvePlan maps a file or directory argument to a plan document.
func ResolvePlan(path string) (string, error) {
	if path == "" {
		path = "."
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("plan not found: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range planCandidates {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no plan document in %s (looked for %v)", path, planCandidates)
}

// projectName scopes shared fingerprints to the absolute plan directory.
func projectName(planPath string) string {
	abs, err := filepath.Abs(filepath.Dir(planPath))
	if err != nil {
		return filepath.Base(filepath.Dir(planPath))
	}
	return abs
}

// OpenEngine creates an engine for the read-only commands.
func OpenEngine(opts RunOptions) (*kiln.Engine, func(), error) {
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return createEngine(opts, logger, noHooks)
}
