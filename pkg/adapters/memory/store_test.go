package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/kiln/pkg/adapters/memory"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunFingerprintStoreContract(t, memory.NewStore())
}

func TestMemoryStore_CountsSaves(t *testing.T) {
	store := memory.NewStore()
	assert.Equal(t, 0, store.Saves())
	_ = store.Save(context.Background(), nil)
	assert.Equal(t, 1, store.Saves())
}
