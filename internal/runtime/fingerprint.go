package runtime

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/zeebo/blake3"
)

// FingerprintMode selects how files are compared between runs.
type FingerprintMode string

const (
	// ModeStat compares size and modification time.
	ModeStat FingerprintMode = "stat"
	// ModeContent compares blake3 digests of the file contents.
	ModeContent FingerprintMode = "content"
)

// ParseFingerprintMode accepts "stat" or "content". Empty means stat.
func ParseFingerprintMode(s string) (FingerprintMode, error) {
	switch FingerprintMode(s) {
	case "", ModeStat:
		return ModeStat, nil
	case ModeContent:
		return ModeContent, nil
	}
	return "", fmt.Errorf("unknown fingerprint mode %q", s)
}

type fingerprinter struct {
	mode    FingerprintMode
	baseDir string
}

// take observes the read-set and write-set of cmd.
func (f fingerprinter) take(cmd *domain.Command) (domain.Fingerprint, error) {
	digest, err := commandDigest(cmd)
	if err != nil {
		return domain.Fingerprint{}, err
	}
	fp := domain.Fingerprint{Command: digest, RecordedAt: time.Now().UTC()}
	for _, p := range cmd.Inputs {
		st, err := f.state(p)
		if err != nil {
			return domain.Fingerprint{}, err
		}
		fp.Inputs = append(fp.Inputs, st)
	}
	for _, p := range cmd.Outputs {
		st, err := f.state(p)
		if err != nil {
			return domain.Fingerprint{}, err
		}
		fp.Outputs = append(fp.Outputs, st)
	}
	return fp, nil
}

// complete reports whether every output exists.
func complete(fp domain.Fingerprint) bool {
	for _, o := range fp.Outputs {
		if o.Missing {
			return false
		}
	}
	return true
}

func (f fingerprinter) resolve(p string) string {
	if filepath.IsAbs(p) || f.baseDir == "" {
		return p
	}
	return filepath.Join(f.baseDir, p)
}

func (f fingerprinter) state(p string) (domain.FileState, error) {
	full := f.resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.FileState{Path: p, Missing: true}, nil
		}
		return domain.FileState{}, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if info.IsDir() {
		return f.dirState(p, full)
	}

	st := domain.FileState{Path: p, Size: info.Size()}
	if f.mode != ModeContent {
		st.ModTime = info.ModTime().UnixNano()
		return st, nil
	}
	st.Digest, err = fileDigest(full)
	if err != nil {
		return domain.FileState{}, err
	}
	return st, nil
}

// dirState folds a directory tree into one entry: total size, newest mtime,
// and a digest over the sorted entries so additions and removals show up.
// Content mode leaves mtimes out entirely.
func (f fingerprinter) dirState(p, full string) (domain.FileState, error) {
	hasher := blake3.New()
	st := domain.FileState{Path: p}
	err := filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(full, path)
		st.Size += info.Size()

		var entry string
		if f.mode == ModeContent {
			digest, err := fileDigest(path)
			if err != nil {
				return err
			}
			entry = filepath.ToSlash(rel) + "\x00" + digest
		} else {
			st.ModTime = max(st.ModTime, info.ModTime().UnixNano())
			entry = fmt.Sprintf("%s\x00%d\x00%d", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano())
		}
		_, err = io.WriteString(hasher, entry+"\n")
		return err
	})
	if err != nil {
		return domain.FileState{}, fmt.Errorf("failed to walk %s: %w", p, err)
	}
	st.Digest = fmt.Sprintf("%x", hasher.Sum(nil))
	return st, nil
}

func fileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// commandDigest hashes everything about a command that changes what it writes.
func commandDigest(cmd *domain.Command) (string, error) {
	env := make([][2]string, 0, len(cmd.Env))
	for _, k := range slices.Sorted(maps.Keys(cmd.Env)) {
		env = append(env, [2]string{k, cmd.Env[k]})
	}
	canonical, err := json.Marshal(struct {
		Argv    []string    `json:"argv"`
		Dir     string      `json:"dir,omitempty"`
		Stdout  string      `json:"stdout,omitempty"`
		Env     [][2]string `json:"env,omitempty"`
		Inputs  []string    `json:"inputs,omitempty"`
		Outputs []string    `json:"outputs"`
	}{cmd.Args(), cmd.Dir, cmd.Stdout, env, cmd.Inputs, cmd.Outputs})
	if err != nil {
		return "", fmt.Errorf("canonicalize command: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash command: %w", err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
