package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

var _ ports.IdentityService = (*IdentityClient)(nil)

// DefaultRemoteSessionTTL applies when the identity client is given no TTL.
const DefaultRemoteSessionTTL = 8 * time.Hour

// IdentityClientOptions groups dependencies for IdentityClient.
type IdentityClientOptions struct {
	PortalID   string             // Required: session key
	Provider   ports.AuthProvider // Required
	Sessions   ports.SessionStore // Required
	SessionTTL time.Duration      // Optional: defaults to DefaultRemoteSessionTTL
	Logger     *slog.Logger       // Optional
	Now        func() time.Time   // Optional
}

// IdentityClient implements ports.IdentityService for one portal by coordinating an
// AuthProvider with persisted sessions. Changes are delivered asynchronously, in the
// order they occurred, by a single dispatcher goroutine.
type IdentityClient struct {
	portalID string
	provider ports.AuthProvider
	sessions ports.SessionStore
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	handlers  map[uint64]ports.ChangeHandler
	nextID    uint64
	queue     []domainauth.Change
	expiry    *time.Timer
	expiryFor string // session ID the timer belongs to
	closed    bool

	wake chan struct{}
	done chan struct{}
}

// NewIdentityClient constructs an IdentityClient and starts its dispatcher.
// Close releases it.
func NewIdentityClient(opts IdentityClientOptions) (*IdentityClient, error) {
	if opts.PortalID == "" {
		return nil, errors.New("portal ID is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("AuthProvider is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultRemoteSessionTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &IdentityClient{
		portalID: opts.PortalID,
		provider: opts.Provider,
		sessions: opts.Sessions,
		ttl:      opts.SessionTTL,
		logger:   opts.Logger.With("component", "identity_client", "portal_id", opts.PortalID),
		now:      opts.Now,
		handlers: make(map[uint64]ports.ChangeHandler),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go c.dispatch()
	return c, nil
}

// GetCurrentSession returns the portal's live session or ports.ErrSessionNotFound.
// Store failures are reported as ports.ErrIdentityUnavailable.
func (c *IdentityClient) GetCurrentSession(ctx context.Context) (domainauth.Session, error) {
	sess, err := c.sessions.Get(ctx, c.portalID)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return domainauth.Session{}, err
		}
		return domainauth.Session{}, fmt.Errorf("%w: %w", ports.ErrIdentityUnavailable, err)
	}
	if sess.Expired(c.now()) {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	c.armExpiry(sess)
	return sess, nil
}

// SubscribeToChanges registers h until the returned function is called or the client closes.
func (c *IdentityClient) SubscribeToChanges(h ports.ChangeHandler) func() {
	if h == nil {
		return func() {}
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	c.nextID++
	id := c.nextID
	c.handlers[id] = h
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

// SignInWithPassword authenticates with the provider and establishes a session.
func (c *IdentityClient) SignInWithPassword(ctx context.Context, email, password string) (domainauth.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domainauth.Session{}, ports.ErrInvalidCredentials
	}
	id, err := c.provider.PasswordLogin(ctx, email, password)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("password login: %w", err)
	}
	return c.establish(ctx, id)
}

// SignInWithOAuth begins a redirect flow. The provider name is informational;
// the portal is bound to a single configured provider.
func (c *IdentityClient) SignInWithOAuth(ctx context.Context, provider, redirectURL string) (ports.OAuthStart, error) {
	if redirectURL == "" {
		return ports.OAuthStart{}, errors.New("redirect URL is required")
	}
	authURL, state, nonce, err := c.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return ports.OAuthStart{}, fmt.Errorf("begin auth flow: %w", err)
	}
	c.logger.DebugContext(ctx, "oauth flow started", "provider", provider)
	return ports.OAuthStart{URL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteOAuth exchanges the authorization code and establishes a session.
func (c *IdentityClient) CompleteOAuth(ctx context.Context, in ports.ExchangeInput) (domainauth.Session, error) {
	if in.Code == "" {
		return domainauth.Session{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Session{}, errors.New("state parameter is required")
	}
	if in.Nonce == "" {
		return domainauth.Session{}, errors.New("nonce parameter is required")
	}
	id, err := c.provider.Exchange(ctx, in)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return c.establish(ctx, id)
}

// SignOut deletes the portal session and notifies subscribers.
func (c *IdentityClient) SignOut(ctx context.Context) error {
	c.disarmExpiry()
	if err := c.sessions.Delete(ctx, c.portalID); err != nil {
		return fmt.Errorf("%w: delete session: %w", ports.ErrIdentityUnavailable, err)
	}
	c.emit(domainauth.Change{Kind: domainauth.SignedOut})
	return nil
}

// Close stops the dispatcher after pending changes are delivered and drops all handlers.
func (c *IdentityClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.mu.Unlock()

	c.signal()
	<-c.done

	c.mu.Lock()
	clear(c.handlers)
	c.mu.Unlock()
}

func (c *IdentityClient) establish(ctx context.Context, id domainauth.Identity) (domainauth.Session, error) {
	if id.UserID == "" {
		return domainauth.Session{}, errors.New("identity has no user ID")
	}
	now := c.now()
	sess := domainauth.Session{
		ID:        uuid.NewString(),
		Identity:  id,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	if err := c.sessions.Save(ctx, c.portalID, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("%w: save session: %w", ports.ErrIdentityUnavailable, err)
	}
	c.armExpiry(sess)
	c.emit(domainauth.Change{Kind: domainauth.SignedIn, Session: &sess})
	return sess, nil
}

// armExpiry schedules a SIGNED_OUT for sess unless its timer is already running.
func (c *IdentityClient) armExpiry(sess domainauth.Session) {
	if sess.ExpiresAt.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.expiryFor == sess.ID {
		return
	}
	if c.expiry != nil {
		c.expiry.Stop()
	}
	id := sess.ID
	c.expiryFor = id
	c.expiry = time.AfterFunc(sess.ExpiresAt.Sub(c.now()), func() { c.expire(id) })
}

func (c *IdentityClient) disarmExpiry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.expiryFor = ""
}

func (c *IdentityClient) expire(sessionID string) {
	c.mu.Lock()
	if c.closed || c.expiryFor != sessionID {
		c.mu.Unlock()
		return
	}
	c.expiry = nil
	c.expiryFor = ""
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.sessions.Delete(ctx, c.portalID); err != nil {
		c.logger.Warn("failed to delete expired session", "error", err)
	}
	c.logger.Info("session expired", "session_id", sessionID)
	c.emit(domainauth.Change{Kind: domainauth.SignedOut})
}

func (c *IdentityClient) emit(ch domainauth.Change) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, ch)
	c.mu.Unlock()
	c.signal()
}

func (c *IdentityClient) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers queued changes in order. It exits once the client is closed
// and the queue is drained.
func (c *IdentityClient) dispatch() {
	defer close(c.done)
	for range c.wake {
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				closed := c.closed
				c.mu.Unlock()
				if closed {
					return
				}
				break
			}
			ch := c.queue[0]
			c.queue = c.queue[1:]
			handlers := make([]ports.ChangeHandler, 0, len(c.handlers))
			for _, id := range slices.Sorted(maps.Keys(c.handlers)) {
				handlers = append(handlers, c.handlers[id])
			}
			c.mu.Unlock()

			for _, h := range handlers {
				c.deliver(h, ch)
			}
		}
	}
}

func (c *IdentityClient) deliver(h ports.ChangeHandler, ch domainauth.Change) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("identity change handler panicked", "change", string(ch.Kind), "error", fmt.Sprint(r))
		}
	}()
	h(ch)
}
