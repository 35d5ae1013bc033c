package domain_test

import (
	"testing"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_WriteOnce(t *testing.T) {
	c := domain.NewContext(map[string]any{"TARGET": "d7os"})

	require.NoError(t, c.Put("imgsize", 4096))
	err := c.Put("imgsize", 8192)
	assert.ErrorIs(t, err, domain.ErrKeyRewritten)

	err = c.Put("TARGET", "other")
	assert.ErrorIs(t, err, domain.ErrKeyRewritten, "seeded keys count as written")

	v, err := c.Value("imgsize")
	require.NoError(t, err)
	assert.Equal(t, 4096, v)
}

func TestContext_MissingKeyIsAnError(t *testing.T) {
	c := domain.NewContext(nil)

	_, err := c.Value("module_ata_fresh")
	assert.ErrorIs(t, err, domain.ErrMissingKey)
	assert.Contains(t, err.Error(), "module_ata_fresh")
	assert.False(t, c.Has("module_ata_fresh"))
}

func TestTypedKeys(t *testing.T) {
	c := domain.NewContext(nil)
	fresh := domain.NewKey[bool]("kernel_fresh")
	size := domain.NewKey[int64]("imgsize")

	require.NoError(t, domain.Set(c, fresh, true))
	got, err := domain.Get(c, fresh)
	require.NoError(t, err)
	assert.True(t, got)

	require.NoError(t, c.Put("imgsize", "not a number"))
	_, err = domain.Get(c, size)
	assert.ErrorIs(t, err, domain.ErrKeyType)
}

func TestContext_CloneIsIndependent(t *testing.T) {
	c := domain.NewContext(map[string]any{"a": 1})
	clone := c.Clone()
	require.NoError(t, clone.Put("b", 2))

	assert.False(t, c.Has("b"))
	assert.Equal(t, []string{"a", "b"}, clone.Keys())
	assert.Equal(t, map[string]any{"a": 1}, c.Snapshot())
}
