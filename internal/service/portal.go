package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/target/hotelease-portal/config"
	"github.com/target/hotelease-portal/internal/domain/event"
	"github.com/target/hotelease-portal/internal/eventbus"
	"github.com/target/hotelease-portal/internal/observability/metrics"
	"github.com/target/hotelease-portal/internal/ports"
)

var (
	// ErrRegistryClosed is returned once the registry has shut down.
	ErrRegistryClosed = errors.New("portal registry closed")
	// ErrReservedEventType is returned when a client tries to emit a navigate event.
	ErrReservedEventType = errors.New("event type is reserved")
)

// Portal is one browser client: its own navigation bus, identity session and arbitrator.
type Portal struct {
	ID         string
	Bus        *eventbus.Bus
	Identity   *IdentityClient
	Arbitrator *Arbitrator

	lastSeen atomic.Int64
}

func (p *Portal) touch(now time.Time) { p.lastSeen.Store(now.UnixNano()) }

// LastSeen reports when the portal was last used.
func (p *Portal) LastSeen() time.Time { return time.Unix(0, p.lastSeen.Load()) }

func (p *Portal) close() {
	p.Arbitrator.Close()
	p.Identity.Close()
	p.Bus.Close()
}

// PortalRegistryOptions groups dependencies for PortalRegistry.
type PortalRegistryOptions struct {
	Provider  ports.AuthProvider  // Required
	Sessions  ports.SessionStore  // Required: remote sessions keyed by portal ID
	KV        ports.KeyValueStore // Required: local sessions and local accounts
	Directory ports.Directory     // Required
	DomainBus *eventbus.Bus       // Required: shared across portals
	Accounts  *LocalAccounts      // Optional: built from KV when nil

	Arbitration config.ArbitrationConfig
	EventBus    config.EventBusConfig
	// Strict makes arbitrator invariant violations panic.
	Strict  bool
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// PortalRegistry owns every live portal and the shared domain event bus.
type PortalRegistry struct {
	opts     PortalRegistryOptions
	accounts *LocalAccounts
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	starts sync.WaitGroup

	mu      sync.Mutex
	portals map[string]*Portal
	closed  bool
}

// NewPortalRegistry validates options and constructs an empty registry.
func NewPortalRegistry(opts PortalRegistryOptions) (*PortalRegistry, error) {
	switch {
	case opts.Provider == nil:
		return nil, errors.New("AuthProvider is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionStore is required")
	case opts.KV == nil:
		return nil, errors.New("KeyValueStore is required")
	case opts.Directory == nil:
		return nil, errors.New("Directory is required")
	case opts.DomainBus == nil:
		return nil, errors.New("domain event bus is required")
	}
	opts.Arbitration.Sanitize()
	opts.EventBus.Sanitize()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	accounts := opts.Accounts
	if accounts == nil {
		var err error
		accounts, err = NewLocalAccounts(LocalAccountsOptions{KV: opts.KV, Now: opts.Now})
		if err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PortalRegistry{
		opts:     opts,
		accounts: accounts,
		logger:   opts.Logger.With("component", "portal_registry"),
		metrics:  opts.Metrics,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		portals:  make(map[string]*Portal),
	}, nil
}

// Accounts returns the local account service shared by all portals.
func (r *PortalRegistry) Accounts() *LocalAccounts { return r.accounts }

// GetOrCreate returns the portal for id, creating and starting it when unknown.
// An empty or malformed id yields a new portal with a fresh ID. created reports
// whether a new portal was made.
func (r *PortalRegistry) GetOrCreate(id string) (p *Portal, created bool, err error) {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, ErrRegistryClosed
	}
	if existing, ok := r.portals[id]; ok {
		existing.touch(r.now())
		return existing, false, nil
	}

	p, err = r.build(id)
	if err != nil {
		return nil, false, err
	}
	p.touch(r.now())
	r.portals[id] = p
	r.metrics.PortalsActive(len(r.portals))

	r.starts.Add(1)
	go func() {
		defer r.starts.Done()
		p.Arbitrator.Start(r.ctx)
	}()
	r.logger.Debug("portal created", "portal_id", id)
	return p, true, nil
}

// Get returns an existing portal without creating one.
func (r *PortalRegistry) Get(id string) (*Portal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portals[id]
	if ok {
		p.touch(r.now())
	}
	return p, ok
}

func (r *PortalRegistry) build(id string) (*Portal, error) {
	logger := r.opts.Logger.With("portal_id", id)
	cfg := r.opts.Arbitration

	bus := eventbus.New(eventbus.Options{
		Name:        "portal",
		Capacity:    r.opts.EventBus.LogCapacity,
		ReplayLimit: r.opts.EventBus.ReplayLimit,
		Logger:      logger,
		Observer:    r.observer(),
		Now:         r.now,
	})
	identity, err := NewIdentityClient(IdentityClientOptions{
		PortalID:   id,
		Provider:   r.opts.Provider,
		Sessions:   r.opts.Sessions,
		SessionTTL: cfg.RemoteSessionTTL,
		Logger:     logger,
		Now:        r.now,
	})
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("identity client: %w", err)
	}

	cleanup := func() {
		identity.Close()
		bus.Close()
	}
	resolver, err := NewRoleResolver(RoleResolverOptions{
		Directory: r.opts.Directory,
		Identity:  identity,
		Policy:    cfg.SuspensionCheck,
		Logger:    logger,
		Metrics:   r.metrics,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("role resolver: %w", err)
	}
	local, err := NewLocalSessionStore(LocalSessionStoreOptions{
		KV:       r.opts.KV,
		PortalID: id,
		TTL:      cfg.LocalSessionTTL,
		Logger:   logger,
		Now:      r.now,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("local session store: %w", err)
	}
	arb, err := NewArbitrator(ArbitratorOptions{
		PortalID: id,
		Bus:      bus,
		Identity: identity,
		Resolver: resolver,
		Local:    local,
		Accounts: r.accounts,
		Config:   cfg,
		Strict:   r.opts.Strict,
		Logger:   logger,
		Metrics:  r.metrics,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("arbitrator: %w", err)
	}
	return &Portal{ID: id, Bus: bus, Identity: identity, Arbitrator: arb}, nil
}

func (r *PortalRegistry) observer() eventbus.Observer {
	if r.metrics == nil {
		return nil
	}
	return r.metrics
}

// EvictIdle closes portals idle for longer than the configured TTL and returns how many.
func (r *PortalRegistry) EvictIdle(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := r.now().Add(-r.opts.Arbitration.PortalIdleTTL)

	r.mu.Lock()
	var idle []*Portal
	for id, p := range r.portals {
		if p.LastSeen().Before(cutoff) {
			idle = append(idle, p)
			delete(r.portals, id)
		}
	}
	remaining := len(r.portals)
	r.mu.Unlock()

	for _, p := range idle {
		p.close()
		r.logger.Info("evicted idle portal", "portal_id", p.ID, "last_seen", p.LastSeen())
	}
	if len(idle) > 0 {
		r.metrics.PortalsEvicted(len(idle))
		r.metrics.PortalsActive(remaining)
	}
	return len(idle), nil
}

// Len reports the number of live portals.
func (r *PortalRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.portals)
}

// EmitDomainEvent publishes a domain event on the shared bus.
// Navigate is reserved for arbitrators.
func (r *PortalRegistry) EmitDomainEvent(t event.Type, payload any) (event.Event, error) {
	t = event.Type(strings.TrimSpace(string(t)))
	if t == "" {
		return event.Event{}, errors.New("event type is required")
	}
	if t == event.Navigate {
		return event.Event{}, fmt.Errorf("%w: %s", ErrReservedEventType, t)
	}
	return r.opts.DomainBus.Publish(t, payload), nil
}

// SubscribeDomainEvents registers h on the shared domain bus.
func (r *PortalRegistry) SubscribeDomainEvents(h eventbus.Handler, opts eventbus.SubscribeOptions) (unsubscribe func()) {
	return r.opts.DomainBus.Subscribe(h, opts)
}

// RecentDomainEvents returns logged domain events newest first.
func (r *PortalRegistry) RecentDomainEvents(types []event.Type, limit int) []event.Event {
	return r.opts.DomainBus.RecentEvents(types, limit)
}

// Close shuts down every portal and waits for in-flight startups. It is idempotent.
func (r *PortalRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	portals := make([]*Portal, 0, len(r.portals))
	for _, p := range r.portals {
		portals = append(portals, p)
	}
	clear(r.portals)
	r.mu.Unlock()

	r.cancel()
	for _, p := range portals {
		p.close()
	}
	r.starts.Wait()
	r.metrics.PortalsActive(0)
	r.logger.Info("portal registry closed", "portals", len(portals))
}
