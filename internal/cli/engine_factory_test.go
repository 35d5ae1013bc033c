package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPlan = `
name: cli
groups:
  all:
    sequence:
      - step: {label: gen, cmd: [sh, -c, "cat src/in.txt > build/out.txt"], inputs: [src/in.txt], outputs: [build/out.txt]}
      - step: {label: pack, cmd: [cp, build/out.txt, build/pack.txt], inputs: [build/out.txt], outputs: [build/pack.txt]}
`

func createProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "in.txt"), []byte("data\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte(testPlan), 0o644))
	return dir
}

func TestResolvePlan(t *testing.T) {
	t.Run("Directory with kiln.yaml", func(t *testing.T) {
		dir := createProject(t)
		got, err := ResolvePlan(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "kiln.yaml"), got)
	})

	t.Run("Fallback to plan.yaml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.yaml"), nil, 0o644))
		got, err := ResolvePlan(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "plan.yaml"), got)
	})

	t.Run("Explicit file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "image.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		got, err := ResolvePlan(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("Empty directory", func(t *testing.T) {
		_, err := ResolvePlan(t.TempDir())
		assert.ErrorContains(t, err, "no plan document")
	})
}

func TestParseVars(t *testing.T) {
	got, err := ParseVars([]string{"A=1", "B=x=y", "C="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, got)

	_, err = ParseVars([]string{"nope"})
	assert.Error(t, err)
	_, err = ParseVars([]string{"=1"})
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	dir := createProject(t)
	metrics := filepath.Join(dir, "kiln.prom")
	opts := RunOptions{PlanPath: dir, Headless: true, MetricsFile: metrics}

	var out bytes.Buffer
	require.NoError(t, runOnce(context.Background(), opts, &out))
	assert.Contains(t, out.String(), "2 ran, 0 fresh")

	data, err := os.ReadFile(filepath.Join(dir, "build", "pack.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data\n", string(data))

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `kiln_steps_total{kind="command",outcome="ran"} 2`)

	out.Reset()
	require.NoError(t, runOnce(context.Background(), opts, &out))
	assert.Contains(t, out.String(), "0 ran, 2 fresh")
}

func TestRunOnce_BadFingerprintMode(t *testing.T) {
	dir := createProject(t)
	err := runOnce(context.Background(), RunOptions{PlanPath: dir, Fingerprint: "mtime"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWriteNinja(t *testing.T) {
	dir := createProject(t)

	t.Run("Default next to the plan", func(t *testing.T) {
		path, err := WriteNinja(RunOptions{PlanPath: filepath.Join(dir, "kiln.yaml")}, "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "build.ninja"), path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "default build/pack.txt\n")
	})

	t.Run("Environment override", func(t *testing.T) {
		want := filepath.Join(t.TempDir(), "out.ninja")
		t.Setenv(NinjaOutputEnv, want)
		path, err := WriteNinja(RunOptions{PlanPath: dir}, "")
		require.NoError(t, err)
		assert.Equal(t, want, path)
		assert.FileExists(t, want)
	})
}

func TestWatchedFiles(t *testing.T) {
	dir := createProject(t)
	paths, err := watchedFiles(RunOptions{PlanPath: dir})
	require.NoError(t, err)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	// build/out.txt is produced by gen, so only the source is watched
	assert.Equal(t, []string{filepath.Join(abs, "kiln.yaml"), filepath.Join(abs, "src", "in.txt")}, paths)
}

func TestWaitForChange(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(target, []byte("a"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(200 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "other.txt"), []byte("b"), 0o644)
		os.WriteFile(target, []byte("b"), 0o644)
	}()

	changed, err := waitForChange(ctx, []string{target})
	require.NoError(t, err)
	assert.Equal(t, target, changed)
}

func TestWaitForChange_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	changed, err := waitForChange(ctx, []string{filepath.Join(t.TempDir(), "x")})
	require.NoError(t, err)
	assert.Empty(t, changed)
}
