package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/presentation/tui"
	"github.com/fsnotify/fsnotify"
)

// settle is how long the watcher waits for a burst of writes to end.
const settle = 100 * time.Millisecond

// RunWatch runs the plan, then runs it again each time the plan document or
// a source input changes, until interrupted.
func RunWatch(opts RunOptions) error {
	tui.PrintBanner(os.Stdout, tui.Profile(os.Stdout))

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	for {
		if err := runOnce(sigCtx, opts, os.Stdout); err != nil && !isInterrupted(err) {
			printSystemMessage("Run failed: %v", err)
		}
		if sigCtx.Err() != nil {
			printSystemMessage("Watcher stopped.")
			return nil
		}

		paths, err := watchedFiles(opts)
		if err != nil {
			return err
		}
		printSystemMessage("Waiting for changes...")
		changed, err := waitForChange(sigCtx, paths)
		if err != nil {
			return err
		}
		if changed == "" {
			printSystemMessage("Watcher stopped.")
			return nil
		}
		printSystemMessage("Change detected in '%s'.", changed)
	}
}

// watchedFiles returns the plan document and the inputs of the target's
// static commands that no command produces. A plan that does not load
// yields only the document, so fixing it triggers the next run.
func watchedFiles(opts RunOptions) ([]string, error) {
	planPath, err := ResolvePlan(opts.PlanPath)
	if err != nil {
		return nil, err
	}
	planPath, err = filepath.Abs(planPath)
	if err != nil {
		return nil, err
	}
	paths := []string{planPath}

	eng, err := kiln.New(planPath)
	if err != nil {
		return paths, nil
	}
	dag, err := eng.Build(opts.Target)
	if err != nil {
		return paths, nil
	}

	produced := make(map[string]bool)
	var inputs []string
	for _, v := range dag.Order() {
		cmd, ok := v.Step.Command()
		if !ok {
			continue
		}
		for _, o := range cmd.Outputs {
			produced[filepath.Clean(o)] = true
		}
		inputs = append(inputs, cmd.Inputs...)
	}
	base := filepath.Dir(planPath)
	for _, in := range inputs {
		if produced[filepath.Clean(in)] {
			continue
		}
		if !filepath.IsAbs(in) {
			in = filepath.Join(base, in)
		}
		if !slices.Contains(paths, in) {
			paths = append(paths, in)
		}
	}
	return paths, nil
}

// waitForChange blocks until one of paths is written, created, removed or
// renamed, and returns it. It returns "" when ctx is done.
func waitForChange(ctx context.Context, paths []string) (string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("cannot start watcher: %w", err)
	}
	defer w.Close()

	want := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		p = filepath.Clean(p)
		want[p] = true
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		// a missing directory cannot be watched; its files count as unchanged
		if err := w.Add(dir); err == nil {
			dirs[dir] = true
		}
	}

	var changed string
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return "", nil
		case ev, ok := <-w.Events:
			if !ok {
				return "", nil
			}
			if !want[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				changed = ev.Name
				timer = time.After(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return "", nil
			}
			return "", fmt.Errorf("watcher: %w", err)
		case <-timer:
			return changed, nil
		}
	}
}
