package ports

import (
	"context"

	"github.com/aretw0/kiln/pkg/domain"
)

// FingerprintStore persists fingerprints keyed by write-set identity
// (domain.WriteSetID, or domain.WriterID for ordered writers of one set). The executor loads it once before a run and saves
// it once after, so implementations need no per-entry locking.
type FingerprintStore interface {
	// Load returns every recorded fingerprint. An empty or missing store
	// yields an empty map and no error.
	Load(ctx context.Context) (map[string]domain.Fingerprint, error)

	// Save replaces the recorded fingerprints.
	Save(ctx context.Context, records map[string]domain.Fingerprint) error
}

// ProcessRunner executes one subprocess to completion.
// A non-zero exit is reported through ProcessResult.ExitCode, not as an error;
// the error is reserved for processes that could not be started.
type ProcessRunner interface {
	Run(ctx context.Context, inv domain.Invocation) (domain.ProcessResult, error)
}
