// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// UserProfile is the raw profile of one user: interest and position names.
type UserProfile struct {
	ID     int64
	Tokens []string
}

// ProjectProfile is the raw profile of one project. Fields holds free-text
// tag columns (tools, hashtags, ...) that are tokenized.
type ProjectProfile struct {
	ID        int64
	Fields    []string
	CreatedAt time.Time
}

// Tokens returns the sorted, de-duplicated tokens of every field.
func (p *ProjectProfile) Tokens() []string {
	set := make(map[string]struct{})
	for _, f := range p.Fields {
		for _, t := range Tokenize(f) {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// EncodeStats summarizes one encoding run.
type EncodeStats struct {
	Users           int
	Projects        int
	UserVocab       int
	ItemVocab       int
	IgnoredUsers    int
	IgnoredProjects int
	UnknownTokens   int
	Locked          bool
}

// Encoder turns raw profiles into a new feature Snapshot.
type Encoder struct {
	store  *Store
	lock   bool
	logger zerolog.Logger
}

// NewEncoder creates an encoder writing to store. With lock set, the
// vocabularies and id maps already in store are reused and frozen.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEncoder(store *Store, lock bool, logger zerolog.Logger) *Encoder {
	return &Encoder{store: store, lock: lock, logger: logger}
}

// previous holds whatever the store already contains.
type previous struct {
	userVocab  *Vocabulary
	itemVocab  *Vocabulary
	userIDs    *IDMap
	projectIDs *IDMap
}

func (e *Encoder) loadPrevious() (*previous, error) {
	prev := &previous{}
	if !e.lock {
		return prev, nil
	}

	var err error
	if prev.userVocab, err = LoadVocabulary(e.store.path(UserVocabFile)); err != nil && !errors.Is(err, ErrMissingFile) {
		return nil, err
	}
	if prev.itemVocab, err = LoadVocabulary(e.store.path(ItemVocabFile)); err != nil && !errors.Is(err, ErrMissingFile) {
		return nil, err
	}
	if prev.userIDs, err = LoadIDMap(e.store.mappingPath(UsersMapFile), e.store.mappingPath(UsersRevFile)); err != nil && !errors.Is(err, ErrMissingFile) {
		return nil, err
	}
	if prev.projectIDs, err = LoadIDMap(e.store.mappingPath(ProjectsMapFile), e.store.mappingPath(ProjectsRevFile)); err != nil && !errors.Is(err, ErrMissingFile) {
		return nil, err
	}
	return prev, nil
}

// Encode builds matrices, vocabularies and id maps from the given profiles,
// saves them atomically and returns the new snapshot.
//
// User rows are addressed by user id (index == id). Project indices are
// assigned by ascending project id.
func (e *Encoder) Encode(ctx context.Context, users []UserProfile, projects []ProjectProfile) (*Snapshot, *EncodeStats, error) {
	prev, err := e.loadPrevious()
	if err != nil {
		return nil, nil, fmt.Errorf("load existing feature store: %w", err)
	}

	users = append([]UserProfile(nil), users...)
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	projects = append([]ProjectProfile(nil), projects...)
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })

	stats := &EncodeStats{Locked: e.lock}

	userVocab := pickVocabulary(prev.userVocab)
	if !userVocab.Locked() {
		for i := range users {
			for _, t := range users[i].Tokens {
				userVocab.Add(NormalizeToken(t))
			}
		}
	}
	userVocab.EnsureNonEmpty()

	itemVocab := pickVocabulary(prev.itemVocab)
	projectTokens := make([][]string, len(projects))
	for i := range projects {
		projectTokens[i] = projects[i].Tokens()
		if !itemVocab.Locked() {
			for _, t := range projectTokens[i] {
				itemVocab.Add(t)
			}
		}
	}
	itemVocab.EnsureNonEmpty()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	userIDs := prev.userIDs
	if userIDs != nil && userIDs.Len() > 0 {
		userIDs.Lock()
	} else {
		userIDs = NewIDMap()
		for i := range users {
			if users[i].ID < 0 {
				continue
			}
			if _, err := userIDs.Put(users[i].ID, int(users[i].ID)); err != nil {
				return nil, nil, fmt.Errorf("map user %d: %w", users[i].ID, err)
			}
		}
	}

	projectIDs := prev.projectIDs
	if projectIDs != nil && projectIDs.Len() > 0 {
		projectIDs.Lock()
	} else {
		projectIDs = NewIDMap()
		for i := range projects {
			if _, err := projectIDs.Put(projects[i].ID, projectIDs.Len()); err != nil {
				return nil, nil, fmt.Errorf("map project %d: %w", projects[i].ID, err)
			}
		}
	}

	ub := NewMatrixBuilder(userIDs.Span(), userVocab.Width())
	for i := range users {
		row, ok := userIDs.Index(users[i].ID)
		if !ok {
			stats.IgnoredUsers++
			continue
		}
		for _, t := range users[i].Tokens {
			col, ok := userVocab.Index(NormalizeToken(t))
			if !ok {
				stats.UnknownTokens++
				continue
			}
			ub.Set(row, col, 1)
		}
	}

	ib := NewMatrixBuilder(projectIDs.Span(), itemVocab.Width())
	for i := range projects {
		row, ok := projectIDs.Index(projects[i].ID)
		if !ok {
			stats.IgnoredProjects++
			continue
		}
		for _, t := range projectTokens[i] {
			col, ok := itemVocab.Index(t)
			if !ok {
				stats.UnknownTokens++
				continue
			}
			ib.Set(row, col, 1)
		}
	}

	snap := &Snapshot{
		Users:      ub.Build(),
		Items:      ib.Build(),
		UserIDs:    userIDs,
		ProjectIDs: projectIDs,
		UserVocab:  userVocab,
		ItemVocab:  itemVocab,
		BuiltAt:    time.Now(),
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := e.store.Save(snap); err != nil {
		return nil, nil, fmt.Errorf("save feature store: %w", err)
	}

	stats.Users = userIDs.Len()
	stats.Projects = projectIDs.Len()
	stats.UserVocab = userVocab.Len()
	stats.ItemVocab = itemVocab.Len()

	e.logger.Info().
		Int("users", stats.Users).
		Int("projects", stats.Projects).
		Int("user_rows", snap.Users.Rows()).
		Int("user_vocab", stats.UserVocab).
		Int("item_vocab", stats.ItemVocab).
		Int("ignored_users", stats.IgnoredUsers).
		Int("ignored_projects", stats.IgnoredProjects).
		Bool("locked", e.lock).
		Msg("Feature store encoded")

	return snap, stats, nil
}

// pickVocabulary reuses a persisted vocabulary (locked) or starts a new one.
func pickVocabulary(existing *Vocabulary) *Vocabulary {
	if existing != nil {
		existing.Lock()
		return existing
	}
	return NewVocabulary()
}
