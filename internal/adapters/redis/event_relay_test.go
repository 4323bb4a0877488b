package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/hotelease-portal/internal/domain/event"
	"github.com/target/hotelease-portal/internal/eventbus"
	"github.com/target/hotelease-portal/internal/testutil"
)

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) RelayMessage(direction, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[direction+"/"+result]++
}

func (o *countingObserver) get(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[key]
}

type relayNode struct {
	bus   *eventbus.Bus
	relay *EventRelay
	obs   *countingObserver
}

func startRelayNode(t *testing.T, client redis.UniversalClient, id string) relayNode {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	bus := eventbus.New(eventbus.Options{Name: "domain", Logger: testutil.DiscardLogger()})
	obs := &countingObserver{}
	relay, err := NewEventRelay(EventRelayOptions{
		Client:     client,
		Channel:    "test:domain-events",
		InstanceID: id,
		Sink:       bus,
		Logger:     testutil.DiscardLogger(),
		Observer:   obs,
	})
	require.NoError(t, err)
	detach := relay.Attach(bus)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		detach()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("relay did not stop")
		}
		bus.Close()
	})

	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay not ready")
	}
	return relayNode{bus: bus, relay: relay, obs: obs}
}

func TestEventRelay_MirrorsDomainEventsBetweenInstances(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)

	a := startRelayNode(t, client, "instance-a")
	b := startRelayNode(t, client, "instance-b")

	a.bus.Publish(event.RestaurantOrderCreated, map[string]any{"order_id": "o-1"})

	require.Eventually(t, func() bool {
		return len(b.bus.RecentEvents(nil, 10)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := b.bus.RecentEvents(nil, 10)[0]
	assert.Equal(t, event.RestaurantOrderCreated, got.Type)
	assert.Equal(t, "instance-a", got.Source)
	raw, ok := got.Payload.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"order_id":"o-1"}`, string(raw))

	// b must not echo the relayed event back, and a ignores its own message.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, a.bus.RecentEvents(nil, 10), 1)
	assert.Equal(t, 1, a.obs.get(RelayOutbound+"/success"))
	assert.Equal(t, 0, b.obs.get(RelayOutbound+"/success"))
	assert.Equal(t, 1, b.obs.get(RelayInbound+"/success"))
}

func TestEventRelay_NavigateStaysLocal(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)

	a := startRelayNode(t, client, "instance-a")
	b := startRelayNode(t, client, "instance-b")

	a.bus.Publish(event.Navigate, event.NavigatePayload{View: "home"})
	a.bus.Publish(event.TravelBookingCreated, nil)

	require.Eventually(t, func() bool {
		return len(b.bus.RecentEvents(nil, 10)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, event.TravelBookingCreated, b.bus.RecentEvents(nil, 10)[0].Type)
	assert.Nil(t, b.bus.RecentEvents(nil, 10)[0].Payload)
}

func TestEventRelay_IgnoresMalformedMessages(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)

	a := startRelayNode(t, client, "instance-a")
	require.NoError(t, client.Publish(context.Background(), "test:domain-events", "not-json").Err())

	require.Eventually(t, func() bool {
		return a.obs.get(RelayInbound+"/error") == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, a.bus.RecentEvents(nil, 10))
}

func TestEventRelay_ForwardDropsWhenBufferFull(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	bus := eventbus.New(eventbus.Options{Logger: testutil.DiscardLogger()})
	t.Cleanup(bus.Close)
	obs := &countingObserver{}
	relay, err := NewEventRelay(EventRelayOptions{
		Client: client, Channel: "c", InstanceID: "x", Sink: bus,
		Logger: testutil.DiscardLogger(), Observer: obs, Buffer: 1,
	})
	require.NoError(t, err)

	relay.Forward(event.Event{Type: event.HousekeepingRequestCreated})
	relay.Forward(event.Event{Type: event.HousekeepingRequestCreated})
	relay.Forward(event.Event{Type: event.HousekeepingRequestCreated, Source: "remote"})

	assert.Equal(t, 1, obs.get(RelayOutbound+"/dropped"))
}

func TestNewEventRelay_Validation(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	bus := eventbus.New(eventbus.Options{})
	t.Cleanup(bus.Close)

	_, err := NewEventRelay(EventRelayOptions{Channel: "c", InstanceID: "x", Sink: bus})
	assert.Error(t, err)
	_, err = NewEventRelay(EventRelayOptions{Client: client, InstanceID: "x", Sink: bus})
	assert.Error(t, err)
	_, err = NewEventRelay(EventRelayOptions{Client: client, Channel: "c", Sink: bus})
	assert.Error(t, err)
	_, err = NewEventRelay(EventRelayOptions{Client: client, Channel: "c", InstanceID: "x"})
	assert.Error(t, err)
}
