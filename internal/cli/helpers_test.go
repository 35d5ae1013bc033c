package cli

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalContext(t *testing.T) {
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	exited := make(chan int, 1)
	sc.exit = func(code int) { exited <- code }

	sc.sigCh <- os.Interrupt
	select {
	case <-sc.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by the first signal")
	}
	assert.Equal(t, os.Interrupt, sc.Signal())

	sc.sigCh <- os.Interrupt
	select {
	case code := <-exited:
		assert.Equal(t, forcedExitCode, code)
	case <-time.After(time.Second):
		t.Fatal("second signal did not force an exit")
	}
}

func TestSignalContext_Cancel(t *testing.T) {
	sc := NewSignalContext(context.Background())
	sc.Cancel()
	sc.Cancel()

	require.ErrorIs(t, sc.Err(), context.Canceled)
	assert.Nil(t, sc.Signal())
	assert.True(t, isInterrupted(sc.Err()))
	assert.NoError(t, handleExecutionError(sc.Err()))
}
