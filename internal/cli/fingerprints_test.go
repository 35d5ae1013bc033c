package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprints(t *testing.T) {
	ctx := context.Background()
	opts := RunOptions{PlanPath: createProject(t), Headless: true}

	var out bytes.Buffer
	require.NoError(t, ListFingerprints(ctx, opts, &out))
	assert.Equal(t, "No fingerprints recorded.\n", out.String())

	require.NoError(t, runOnce(ctx, opts, &bytes.Buffer{}))

	out.Reset()
	require.NoError(t, ListFingerprints(ctx, opts, &out))
	assert.Contains(t, out.String(), "WRITE-SET")
	assert.Contains(t, out.String(), "build/out.txt")
	assert.Contains(t, out.String(), "build/pack.txt")

	n, err := ForgetFingerprints(ctx, opts, []string{"build/pack.txt", "build/missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out.Reset()
	require.NoError(t, runOnce(ctx, opts, &out))
	assert.Contains(t, out.String(), "1 ran, 1 fresh")

	n, err = ForgetFingerprints(ctx, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
