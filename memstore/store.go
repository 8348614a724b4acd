// Package memstore provides an in-memory UserStore for single-station
// deployments and tests. IDs are snowflake-generated so records keep stable,
// sortable identifiers if the deployment later migrates to a database.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"

	authcore "github.com/weighops/authcore"
)

// Store is a map-backed [authcore.UserStore]. The zero value is not usable;
// construct with [New].
type Store struct {
	mu     sync.RWMutex
	node   *snowflake.Node
	byID   map[int64]*authcore.User
	byName map[string]int64
	codes  map[int64][]codeEntry
}

type codeEntry struct {
	hash [32]byte
	used bool
}

// New creates an empty Store.
func New() (*Store, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	return &Store{
		node:   node,
		byID:   make(map[int64]*authcore.User),
		byName: make(map[string]int64),
		codes:  make(map[int64][]codeEntry),
	}, nil
}

func nameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// GetByUsername looks up a user case-insensitively.
func (s *Store) GetByUsername(_ context.Context, username string) (*authcore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[nameKey(username)]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

// GetByID returns a copy of the user record.
func (s *Store) GetByID(_ context.Context, id int64) (*authcore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// Create inserts a new user, assigning a snowflake ID when none is set.
func (s *Store) Create(_ context.Context, user *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey(user.Username)
	if _, exists := s.byName[key]; exists {
		return authcore.ErrAccountExists
	}

	if user.ID == 0 {
		user.ID = s.node.Generate().Int64()
	}

	stored := *user
	s.byID[stored.ID] = &stored
	s.byName[key] = stored.ID
	return nil
}

// Update overwrites an existing user record.
func (s *Store) Update(_ context.Context, user *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, ok := s.byID[user.ID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	if priorKey, newKey := nameKey(prior.Username), nameKey(user.Username); priorKey != newKey {
		if _, exists := s.byName[newKey]; exists {
			return authcore.ErrAccountExists
		}
		delete(s.byName, priorKey)
		s.byName[newKey] = user.ID
	}

	stored := *user
	s.byID[user.ID] = &stored
	return nil
}

// GetBackupCodes returns the records whose codes have not been consumed.
func (s *Store) GetBackupCodes(_ context.Context, userID int64) ([]authcore.BackupCodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.codes[userID]
	out := make([]authcore.BackupCodeRecord, 0, len(entries))
	for _, e := range entries {
		if e.used {
			continue
		}
		out = append(out, authcore.BackupCodeRecord{Hash: e.hash})
	}
	return out, nil
}

// ReplaceBackupCodes swaps the whole batch, discarding consumption state.
func (s *Store) ReplaceBackupCodes(_ context.Context, userID int64, records []authcore.BackupCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]codeEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, codeEntry{hash: r.Hash})
	}
	s.codes[userID] = entries
	return nil
}

// ConsumeBackupCode marks a matching unspent code as used. It reports false
// when the hash is unknown or the code was already spent, so each code
// verifies at most once.
func (s *Store) ConsumeBackupCode(_ context.Context, userID int64, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.codes[userID]
	for i := range entries {
		if entries[i].hash != hash {
			continue
		}
		if entries[i].used {
			return false, nil
		}
		entries[i].used = true
		return true, nil
	}
	return false, nil
}
