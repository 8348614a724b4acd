package authcore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/weighops/authcore/internal/clock"
	"github.com/weighops/authcore/password"
)

var testStart = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	// Cheap hashing keeps the suite fast; production parameters are
	// covered in package password.
	cfg.Password = PasswordConfig{Iterations: 1000, SaltLength: 16, KeyLength: 16}
	cfg.Audit.Enabled = false
	return cfg
}

type mockUserStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*User
	byName map[string]int64
	codes  map[int64][]mockCode

	failUpdates bool
	readErr     error
}

type mockCode struct {
	hash [32]byte
	used bool
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byID:   make(map[int64]*User),
		byName: make(map[string]int64),
		codes:  make(map[int64][]mockCode),
	}
}

func (m *mockUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		return nil, m.readErr
	}
	id, ok := m.byName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *m.byID[id]
	return &out, nil
}

func (m *mockUserStore) GetByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m *mockUserStore) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(user.Username))
	if _, exists := m.byName[key]; exists {
		return ErrAccountExists
	}
	if user.ID == 0 {
		m.nextID++
		user.ID = m.nextID
	}
	stored := *user
	m.byID[stored.ID] = &stored
	m.byName[key] = stored.ID
	return nil
}

func (m *mockUserStore) Update(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdates {
		return ErrChallengeUnavailable
	}
	if _, ok := m.byID[user.ID]; !ok {
		return ErrUserNotFound
	}
	stored := *user
	m.byID[user.ID] = &stored
	return nil
}

func (m *mockUserStore) GetBackupCodes(_ context.Context, userID int64) ([]BackupCodeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []BackupCodeRecord
	for _, c := range m.codes[userID] {
		if !c.used {
			out = append(out, BackupCodeRecord{Hash: c.hash})
		}
	}
	return out, nil
}

func (m *mockUserStore) ReplaceBackupCodes(_ context.Context, userID int64, records []BackupCodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]mockCode, 0, len(records))
	for _, r := range records {
		entries = append(entries, mockCode{hash: r.Hash})
	}
	m.codes[userID] = entries
	return nil
}

func (m *mockUserStore) ConsumeBackupCode(_ context.Context, userID int64, hash [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.codes[userID]
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

func newTestEngine(t *testing.T, mutate ...func(*Builder)) (*Engine, *clock.Fake, *mockUserStore) {
	t.Helper()

	fc := clock.NewFake(testStart)
	store := newMockUserStore()

	b := New().
		WithConfig(testConfig()).
		WithUserStore(store).
		WithClock(fc)
	for _, f := range mutate {
		f(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, fc, store
}

func seedUser(t *testing.T, store *mockUserStore, username, pass string, role Role) *User {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{Iterations: 1000, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("hasher init failed: %v", err)
	}
	hash, err := hasher.Hash(pass)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	u := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    testStart,
	}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user failed: %v", err)
	}
	return u
}

func loginOK(t *testing.T, engine *Engine, username, pass string) *LoginResult {
	t.Helper()
	res, err := engine.Login(context.Background(), username, pass)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected successful login, got %q", res.Message)
	}
	return res
}
