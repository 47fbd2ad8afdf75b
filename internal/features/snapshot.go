// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Feature store file layout under the configured directory.
const (
	UserMatrixFile  = "user_features.npy"
	ItemMatrixFile  = "item_features.npy"
	UserVocabFile   = "user_vocab.json"
	ItemVocabFile   = "item_vocab.json"
	MappingsDir     = "mappings"
	UsersMapFile    = "users.json"
	UsersRevFile    = "users_rev.json"
	ProjectsMapFile = "projects.json"
	ProjectsRevFile = "projects_rev.json"
)

// Snapshot is one consistent generation of the feature store.
// Nothing in a published Snapshot is mutated.
type Snapshot struct {
	Users      *Matrix
	Items      *Matrix
	UserIDs    *IDMap
	ProjectIDs *IDMap
	UserVocab  *Vocabulary
	ItemVocab  *Vocabulary
	BuiltAt    time.Time
}

// Validate checks that matrices and maps agree.
func (s *Snapshot) Validate() error {
	switch {
	case s.Users == nil || s.Items == nil:
		return errors.New("snapshot is missing a feature matrix")
	case s.UserIDs == nil || s.ProjectIDs == nil:
		return errors.New("snapshot is missing an id map")
	case s.ProjectIDs.Span() > s.Items.Rows():
		return fmt.Errorf("project map spans %d rows but item matrix has %d", s.ProjectIDs.Span(), s.Items.Rows())
	case s.UserIDs.Span() > s.Users.Rows():
		return fmt.Errorf("user map spans %d rows but user matrix has %d", s.UserIDs.Span(), s.Users.Rows())
	}
	return nil
}

// Store locates the feature files under one directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store root.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string        { return filepath.Join(s.dir, name) }
func (s *Store) mappingPath(name string) string { return filepath.Join(s.dir, MappingsDir, name) }

// Load reads every file of the store. Any missing file yields an error
// wrapping ErrMissingFile.
func (s *Store) Load() (*Snapshot, error) {
	users, err := LoadNPY(s.path(UserMatrixFile))
	if err != nil {
		return nil, err
	}
	items, err := LoadNPY(s.path(ItemMatrixFile))
	if err != nil {
		return nil, err
	}
	userIDs, err := LoadIDMap(s.mappingPath(UsersMapFile), s.mappingPath(UsersRevFile))
	if err != nil {
		return nil, err
	}
	projectIDs, err := LoadIDMap(s.mappingPath(ProjectsMapFile), s.mappingPath(ProjectsRevFile))
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Users:      users,
		Items:      items,
		UserIDs:    userIDs,
		ProjectIDs: projectIDs,
		BuiltAt:    time.Now(),
	}

	// Vocabularies are only needed to re-encode; inference runs without them.
	if v, err := LoadVocabulary(s.path(UserVocabFile)); err == nil {
		snap.UserVocab = v
	} else if !errors.Is(err, ErrMissingFile) {
		return nil, err
	}
	if v, err := LoadVocabulary(s.path(ItemVocabFile)); err == nil {
		snap.ItemVocab = v
	} else if !errors.Is(err, ErrMissingFile) {
		return nil, err
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("feature store %s: %w", s.dir, err)
	}
	return snap, nil
}

// Save writes every file of snap atomically (one file at a time).
func (s *Store) Save(snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := snap.UserIDs.Save(s.mappingPath(UsersMapFile), s.mappingPath(UsersRevFile)); err != nil {
		return err
	}
	if err := snap.ProjectIDs.Save(s.mappingPath(ProjectsMapFile), s.mappingPath(ProjectsRevFile)); err != nil {
		return err
	}
	if snap.UserVocab != nil {
		if err := snap.UserVocab.Save(s.path(UserVocabFile)); err != nil {
			return err
		}
	}
	if snap.ItemVocab != nil {
		if err := snap.ItemVocab.Save(s.path(ItemVocabFile)); err != nil {
			return err
		}
	}
	if err := SaveNPY(s.path(UserMatrixFile), snap.Users); err != nil {
		return err
	}
	return SaveNPY(s.path(ItemMatrixFile), snap.Items)
}

// SnapshotHolder publishes the current Snapshot to concurrent readers.
type SnapshotHolder struct {
	current atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil before the first Publish.
func (h *SnapshotHolder) Load() *Snapshot {
	return h.current.Load()
}

// Publish swaps in snap.
func (h *SnapshotHolder) Publish(snap *Snapshot) {
	h.current.Store(snap)
}
