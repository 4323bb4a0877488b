package auth

// Package auth contains simple hand-written test doubles for identity and directory ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider   = (*MockAuthProvider)(nil)
	_ ports.SessionStore   = (*MemorySessionStore)(nil)
	_ ports.KeyValueStore  = (*MemoryKV)(nil)
	_ ports.DirectoryAdmin = (*MemoryDirectory)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc         func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc      func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)
	PasswordLoginFunc func(ctx context.Context, email, password string) (domainauth.Identity, error)

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.Identity

	// Passwords maps email to password for PasswordLogin; nil accepts any password.
	Passwords map[string]string

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: domainauth.Identity{
			UserID: "mock-user-1",
			Name:   "Mock User",
			Email:  "mock.user@example.com",
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return m.defaultUser(), nil
}

func (m *MockAuthProvider) PasswordLogin(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if m.PasswordLoginFunc != nil {
		return m.PasswordLoginFunc(ctx, email, password)
	}
	if m.Passwords != nil {
		want, ok := m.Passwords[email]
		if !ok || want != password {
			return domainauth.Identity{}, ports.ErrInvalidCredentials
		}
	}
	user := m.defaultUser()
	if email != "" {
		user.Email = email
	}
	return user, nil
}

func (m *MockAuthProvider) defaultUser() domainauth.Identity {
	if m.DefaultUser.UserID == "" {
		return domainauth.Identity{
			UserID: "mock-user-1",
			Name:   "Mock User",
			Email:  "mock.user@example.com",
		}
	}
	return m.DefaultUser
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, key string, sess domainauth.Session) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, key string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[key]
	if !ok || key == "" {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// MemoryKV is an in-memory key-value store. TTLs are recorded but never enforced.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration

	// Err, when set, is returned from every call.
	Err error
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data[key] = append([]byte(nil), value...)
	m.ttls[key] = ttl
	return nil
}

func (m *MemoryKV) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = append([]byte(nil), value...)
	m.ttls[key] = ttl
	return true, nil
}

// TTL returns the ttl recorded for key.
func (m *MemoryKV) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *MemoryKV) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.data[key]
	delete(m.data, key)
	delete(m.ttls, key)
	return ok, nil
}

// Has reports whether key is present.
func (m *MemoryKV) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// MemoryDirectory is an in-memory role directory.
type MemoryDirectory struct {
	mu      sync.Mutex
	records map[string]domainauth.DirectoryRecord
	lookups int

	// Err, when set, is returned from LookupRole.
	Err error
	// BeforeLookup, when set, runs at the start of every LookupRole call.
	BeforeLookup func(userID string)
}

// NewMemoryDirectory seeds a directory with recs.
func NewMemoryDirectory(recs ...domainauth.DirectoryRecord) *MemoryDirectory {
	d := &MemoryDirectory{records: map[string]domainauth.DirectoryRecord{}}
	for _, r := range recs {
		d.records[r.UserID] = r
	}
	return d
}

func (d *MemoryDirectory) LookupRole(_ context.Context, userID string) (domainauth.DirectoryRecord, error) {
	if d.BeforeLookup != nil {
		d.BeforeLookup(userID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.Err != nil {
		return domainauth.DirectoryRecord{}, d.Err
	}
	rec, ok := d.records[userID]
	if !ok {
		return domainauth.DirectoryRecord{}, ports.ErrDirectoryRecordNotFound
	}
	return rec, nil
}

func (d *MemoryDirectory) Upsert(_ context.Context, rec domainauth.DirectoryRecord) error {
	if rec.UserID == "" {
		return errors.New("user id cannot be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[rec.UserID] = rec
	return nil
}

func (d *MemoryDirectory) SetStatus(_ context.Context, userID string, status domainauth.Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[userID]
	if !ok {
		return ports.ErrDirectoryRecordNotFound
	}
	rec.Status = status
	d.records[userID] = rec
	return nil
}

// Lookups returns the number of LookupRole calls.
func (d *MemoryDirectory) Lookups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}
