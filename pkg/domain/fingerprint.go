package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"time"
)

// FileState is the observed state of one path in a read-set or write-set.
type FileState struct {
	Path    string `json:"path"`
	Missing bool   `json:"missing,omitempty"`
	Size    int64  `json:"size"`
	// ModTime is stored as Unix nanoseconds so round trips compare exactly.
	ModTime int64  `json:"mod_time"`
	Digest  string `json:"digest,omitempty"`
}

// Fingerprint records what a command saw the last time it ran successfully.
type Fingerprint struct {
	Command    string      `json:"command"`
	Inputs     []FileState `json:"inputs"`
	Outputs    []FileState `json:"outputs"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Matches reports whether two fingerprints describe the same command and files.
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.Command == other.Command &&
		slices.Equal(f.Inputs, other.Inputs) &&
		slices.Equal(f.Outputs, other.Outputs)
}

// WriterID names the record of the nth ordered writer of one write-set
// within a run. The first writer keeps the bare write-set identity.
func WriterID(writeSet string, n int) string {
	if n == 0 {
		return writeSet
	}
	return writeSet + "." + strconv.Itoa(n)
}

// WriteSetID identifies a command by the set of paths it writes.
func WriteSetID(outputs []string) string {
	sorted := slices.Clone(outputs)
	slices.Sort(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:16])
}
