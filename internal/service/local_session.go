package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

const localSessionKeyPrefix = "local-session:"

// LocalSessionStore keeps the lower-trust fallback identity for one portal.
// It never contacts the identity provider.
type LocalSessionStore struct {
	kv     ports.KeyValueStore
	key    string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// LocalSessionStoreOptions groups dependencies for LocalSessionStore.
type LocalSessionStoreOptions struct {
	KV       ports.KeyValueStore // Required
	PortalID string              // Required
	TTL      time.Duration       // Optional: zero keeps the entry until cleared
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewLocalSessionStore constructs a LocalSessionStore.
func NewLocalSessionStore(opts LocalSessionStoreOptions) (*LocalSessionStore, error) {
	if opts.KV == nil {
		return nil, errors.New("KeyValueStore is required")
	}
	if opts.PortalID == "" {
		return nil, errors.New("portal ID is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LocalSessionStore{
		kv:     opts.KV,
		key:    localSessionKeyPrefix + opts.PortalID,
		ttl:    opts.TTL,
		logger: opts.Logger,
		now:    opts.Now,
	}, nil
}

// Save persists id, stamping SavedAt.
func (s *LocalSessionStore) Save(ctx context.Context, id domainauth.LocalIdentity) error {
	if id.UserID == "" {
		return errors.New("local identity requires a user ID")
	}
	id.SavedAt = s.now().UTC()
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal local identity: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data, s.ttl); err != nil {
		return fmt.Errorf("save local identity: %w", err)
	}
	return nil
}

// Load returns the cached identity and whether one was present.
// A corrupt entry is removed and reported as absent.
func (s *LocalSessionStore) Load(ctx context.Context) (domainauth.LocalIdentity, bool, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return domainauth.LocalIdentity{}, false, fmt.Errorf("load local identity: %w", err)
	}
	if data == nil {
		return domainauth.LocalIdentity{}, false, nil
	}
	var id domainauth.LocalIdentity
	if err := json.Unmarshal(data, &id); err != nil || id.UserID == "" {
		s.logger.WarnContext(ctx, "discarding unreadable local identity", "error", err)
		if _, delErr := s.kv.Delete(ctx, s.key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete unreadable local identity", "error", delErr)
		}
		return domainauth.LocalIdentity{}, false, nil
	}
	return id, true, nil
}

// Clear removes the cached identity. Clearing an empty store is not an error.
func (s *LocalSessionStore) Clear(ctx context.Context) error {
	if _, err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear local identity: %w", err)
	}
	return nil
}
