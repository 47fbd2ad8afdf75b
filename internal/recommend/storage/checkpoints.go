// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package storage persists two-tower model checkpoints.
//
// Each checkpoint is a gob-encoded model.Envelope, gzip-compressed and
// protected by a SHA-256 checksum, stored as:
//
//	{name}_v{version}.gob.gz
//
// Versions are monotonically increasing per model name. Load with version 0
// resolves the latest version; Prune keeps only the newest N. Files are
// written to a temporary name and renamed into place, so a crashed write
// never leaves a truncated checkpoint under a real version.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/projectrank/internal/recommend/model"
)

const checkpointExt = ".gob.gz"

// ErrNoCheckpoint is returned when no checkpoint exists for a name/version.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Metadata describes a stored checkpoint.
type Metadata struct {
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	SavedAt   time.Time `json:"saved_at"`
	Checksum  string    `json:"checksum"`
	SizeBytes int64     `json:"size_bytes"`

	// Params is the number of tensors in the checkpoint.
	Params int `json:"params"`
}

// storedFile is the on-disk layout.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store manages checkpoint files in one directory. Training runs in a
// separate process, so the latest version is always resolved from the
// directory listing rather than remembered.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore opens (and creates if needed) a checkpoint directory.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	s := &Store{baseDir: baseDir}
	if _, err := s.listVersions(); err != nil {
		return nil, fmt.Errorf("scan checkpoints: %w", err)
	}
	return s, nil
}

// latest returns the newest version of name found on disk.
func (s *Store) latest(name string) (int, bool, error) {
	all, err := s.listVersions()
	if err != nil {
		return 0, false, fmt.Errorf("scan checkpoints: %w", err)
	}
	vs := all[name]
	if len(vs) == 0 {
		return 0, false, nil
	}
	return vs[0], true, nil
}

// listVersions returns every version per name, newest first.
func (s *Store) listVersions() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), checkpointExt) {
			continue
		}
		name, version := parseCheckpointFilename(strings.TrimSuffix(entry.Name(), checkpointExt))
		if name == "" {
			continue
		}
		out[name] = append(out[name], version)
	}
	for name := range out {
		sort.Sort(sort.Reverse(sort.IntSlice(out[name])))
	}
	return out, nil
}

// parseCheckpointFilename splits "two_tower_v3" into ("two_tower", 3).
func parseCheckpointFilename(base string) (name string, version int) {
	idx := strings.LastIndex(base, "_v")
	if idx <= 0 {
		return "", 0
	}
	v, err := strconv.Atoi(base[idx+2:])
	if err != nil || v <= 0 {
		return "", 0
	}
	return base[:idx], v
}

// Save writes env as the given version. version 0 allocates latest+1.
// It returns the version written.
func (s *Store) Save(ctx context.Context, name string, version int, env *model.Envelope) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if version == 0 {
		latest, _, err := s.latest(name)
		if err != nil {
			return 0, err
		}
		version = latest + 1
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(env); err != nil {
		return 0, fmt.Errorf("encode checkpoint: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return 0, fmt.Errorf("compress checkpoint: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return 0, fmt.Errorf("finalize compression: %w", err)
	}

	params := len(env.StateDict) + len(env.ModelStateDict) + len(env.Params)
	sf := storedFile{
		Metadata: Metadata{
			Name:      name,
			Version:   version,
			SavedAt:   time.Now(),
			Checksum:  hex.EncodeToString(sum[:]),
			SizeBytes: int64(compressed.Len()),
			Params:    params,
		},
		CompressedData: compressed.Bytes(),
	}

	path := s.path(name, version)
	tmp, err := os.CreateTemp(s.baseDir, ".ckpt-*")
	if err != nil {
		return 0, fmt.Errorf("create checkpoint file: %w", err)
	}
	werr := gob.NewEncoder(tmp).Encode(sf)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return 0, fmt.Errorf("write checkpoint file: %w", werr)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return 0, fmt.Errorf("publish checkpoint file: %w", err)
	}
	return version, nil
}

// Load reads a checkpoint. version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int) (*model.Envelope, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		latest, ok, err := s.latest(name)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, name)
		}
		version = latest
	}

	sf, err := s.readFile(name, version)
	if err != nil {
		return nil, nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress checkpoint: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // read-only

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed checkpoint: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch for %s v%d: expected %s, got %s", name, version, sf.Metadata.Checksum, got)
	}

	var env model.Envelope
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
		return nil, nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &env, &sf.Metadata, nil
}

func (s *Store) readFile(name string, version int) (*storedFile, error) {
	f, err := os.Open(s.path(name, version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s v%d", ErrNoCheckpoint, name, version)
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}
	return &sf, nil
}

// LatestVersion returns the newest version for name currently on disk.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok, err := s.latest(name)
	if err != nil {
		return 0, false
	}
	return v, ok
}

// List returns metadata of the latest version of every model name.
func (s *Store) List(ctx context.Context) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.listVersions()
	if err != nil {
		return nil, fmt.Errorf("scan checkpoints: %w", err)
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Metadata, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sf, err := s.readFile(name, all[name][0])
		if err != nil {
			continue
		}
		out = append(out, sf.Metadata)
	}
	return out, nil
}

// Prune removes all but the newest keep versions of name.
func (s *Store) Prune(ctx context.Context, name string, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.listVersions()
	if err != nil {
		return 0, fmt.Errorf("read directory: %w", err)
	}

	removed := 0
	versions := all[name]
	for i := keep; i < len(versions); i++ {
		if err := os.Remove(s.path(name, versions[i])); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s v%d: %w", name, versions[i], err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) path(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, checkpointExt))
}
