package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFingerprintStoreContract runs a suite of tests to verify that a FingerprintStore
// implementation adheres to the defined interface contract. The store must start empty.
func RunFingerprintStoreContract(t *testing.T, store FingerprintStore) {
	ctx := context.Background()
	id := domain.WriteSetID([]string{"build/kernel.elf"})
	record := domain.Fingerprint{
		Command: "ld -o build/kernel.elf build/kernel.a",
		Inputs: []domain.FileState{
			{Path: "build/kernel.a", Size: 2048, ModTime: 1700000000123456789},
		},
		Outputs: []domain.FileState{
			{Path: "build/kernel.elf", Size: 4096, ModTime: 1700000001000000000, Digest: "ab12"},
		},
		RecordedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	t.Run("Load Empty", func(t *testing.T) {
		records, err := store.Load(ctx)
		require.NoError(t, err, "Load of an empty store should not fail")
		assert.Empty(t, records)
	})

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, map[string]domain.Fingerprint{id: record})
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx)
		require.NoError(t, err, "Load should not return error")
		require.Contains(t, loaded, id)
		assert.True(t, record.Matches(loaded[id]), "loaded fingerprint should match the saved one")
		assert.True(t, record.RecordedAt.Equal(loaded[id].RecordedAt))
	})

	t.Run("Save Replaces", func(t *testing.T) {
		other := domain.WriteSetID([]string{"build/disk.img"})
		err := store.Save(ctx, map[string]domain.Fingerprint{other: {Command: "dd"}})
		require.NoError(t, err)

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Contains(t, loaded, other)
		assert.NotContains(t, loaded, id, "entries missing from Save should be dropped")
	})

	t.Run("Load Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		for k := range loaded {
			delete(loaded, k)
		}
		again, err := store.Load(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, again, "mutating a loaded map must not affect the store")
	})
}
