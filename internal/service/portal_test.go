package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/target/hotelease-portal/config"
	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/domain/event"
	"github.com/target/hotelease-portal/internal/domain/view"
	"github.com/target/hotelease-portal/internal/eventbus"
	authmocks "github.com/target/hotelease-portal/internal/mocks/auth"
	"github.com/target/hotelease-portal/internal/observability/metrics"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type registryFixture struct {
	registry  *PortalRegistry
	domainBus *eventbus.Bus
	sessions  *authmocks.MemorySessionStore
	directory *authmocks.MemoryDirectory
	clock     *testClock
	promReg   *prometheus.Registry
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	logger := discardLogger()
	f := &registryFixture{
		sessions:  authmocks.NewMemorySessionStore(),
		directory: authmocks.NewMemoryDirectory(activeRecord("user-1", domainauth.RoleStaff)),
		clock:     &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		promReg:   prometheus.NewRegistry(),
	}
	f.domainBus = eventbus.New(eventbus.Options{Name: "domain", Logger: logger})
	t.Cleanup(f.domainBus.Close)

	kv := authmocks.NewMemoryKV()
	accounts, err := NewLocalAccounts(LocalAccountsOptions{KV: kv, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	provider := authmocks.NewMockAuthProvider()
	provider.DefaultUser = domainauth.Identity{UserID: "user-1", Email: "user1@example.com"}

	f.registry, err = NewPortalRegistry(PortalRegistryOptions{
		Provider:  provider,
		Sessions:  f.sessions,
		KV:        kv,
		Directory: f.directory,
		DomainBus: f.domainBus,
		Accounts:  accounts,
		Arbitration: config.ArbitrationConfig{
			StartupTimeout: time.Second,
			PortalIdleTTL:  30 * time.Minute,
			LocalFallback:  true,
		},
		Logger:  logger,
		Metrics: metrics.New(f.promReg),
		Now:     f.clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(f.registry.Close)
	return f
}

func waitReady(t *testing.T, p *Portal) {
	t.Helper()
	select {
	case <-p.Arbitrator.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("portal %s did not resolve", p.ID)
	}
}

func TestPortalRegistry_GetOrCreate(t *testing.T) {
	f := newRegistryFixture(t)

	p, created, err := f.registry.GetOrCreate("")
	require.NoError(t, err)
	assert.True(t, created)
	_, parseErr := uuid.Parse(p.ID)
	require.NoError(t, parseErr, "a fresh portal gets a UUID")

	again, created, err := f.registry.GetOrCreate(p.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, p, again)

	other, created, err := f.registry.GetOrCreate("not-a-uuid")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "not-a-uuid", other.ID)

	assert.Equal(t, 2, f.registry.Len())
	assert.InDelta(t, 2, gaugeValue(t, f.promReg, "hotelease_portals_active"), 0)

	waitReady(t, p)
	assert.Equal(t, view.Home, p.Arbitrator.CurrentView())

	got, ok := f.registry.Get(p.ID)
	assert.True(t, ok)
	assert.Same(t, p, got)
	_, ok = f.registry.Get(uuid.NewString())
	assert.False(t, ok)
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) == 1 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPortalRegistry_PortalsAreIsolated(t *testing.T) {
	f := newRegistryFixture(t)

	a, _, err := f.registry.GetOrCreate(uuid.NewString())
	require.NoError(t, err)
	b, _, err := f.registry.GetOrCreate(uuid.NewString())
	require.NoError(t, err)
	waitReady(t, a)
	waitReady(t, b)

	snap, err := a.Arbitrator.RequestLogin(context.Background(), domainauth.Credentials{Email: "user1@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, view.StaffDashboard, snap.View)

	assert.Equal(t, view.Home, b.Arbitrator.CurrentView())
	_, err = f.sessions.Get(context.Background(), b.ID)
	assert.Error(t, err, "sessions are keyed per portal")
}

func TestPortalRegistry_EvictIdle(t *testing.T) {
	f := newRegistryFixture(t)

	idle, _, err := f.registry.GetOrCreate(uuid.NewString())
	require.NoError(t, err)
	busy, _, err := f.registry.GetOrCreate(uuid.NewString())
	require.NoError(t, err)
	waitReady(t, idle)
	waitReady(t, busy)

	f.clock.Advance(20 * time.Minute)
	_, ok := f.registry.Get(busy.ID)
	require.True(t, ok)
	f.clock.Advance(15 * time.Minute)

	n, err := f.registry.EvictIdle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.registry.Len())

	_, ok = f.registry.Get(idle.ID)
	assert.False(t, ok)
	_, ok = f.registry.Get(busy.ID)
	assert.True(t, ok)

	// The evicted portal's bus no longer accepts events.
	assert.Equal(t, event.Event{}, idle.Bus.Publish(event.Navigate, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.registry.EvictIdle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPortalRegistry_DomainEvents(t *testing.T) {
	f := newRegistryFixture(t)

	_, err := f.registry.EmitDomainEvent(event.Navigate, nil)
	require.ErrorIs(t, err, ErrReservedEventType)
	_, err = f.registry.EmitDomainEvent(" ", nil)
	require.Error(t, err)

	var mu sync.Mutex
	var seen []event.Type
	unsub := f.registry.SubscribeDomainEvents(func(ev event.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Type)
	}, eventbus.SubscribeOptions{EventTypes: []event.Type{event.RestaurantOrderCreated}})
	defer unsub()

	ev, err := f.registry.EmitDomainEvent(event.RestaurantOrderCreated, map[string]any{"table": 4})
	require.NoError(t, err)
	assert.NotZero(t, ev.Sequence)
	_, err = f.registry.EmitDomainEvent(event.TravelBookingCreated, nil)
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []event.Type{event.RestaurantOrderCreated}, seen)
	mu.Unlock()

	recent := f.registry.RecentDomainEvents(nil, 10)
	require.Len(t, recent, 2)
	assert.Equal(t, event.TravelBookingCreated, recent[0].Type)
}

func TestPortalRegistry_Close(t *testing.T) {
	f := newRegistryFixture(t)

	p, _, err := f.registry.GetOrCreate(uuid.NewString())
	require.NoError(t, err)

	f.registry.Close()
	f.registry.Close()

	assert.Equal(t, 0, f.registry.Len())
	_, _, err = f.registry.GetOrCreate(uuid.NewString())
	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.Equal(t, 0, p.Bus.SubscriberCount())
}

func TestNewPortalRegistry_Validation(t *testing.T) {
	_, err := NewPortalRegistry(PortalRegistryOptions{})
	require.Error(t, err)
}
