package eventbus

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/target/hotelease-portal/internal/domain/event"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBus(t *testing.T, opts Options) *Bus {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := New(opts)
	t.Cleanup(b.Close)
	return b
}

func TestPublish_AssignsMonotonicSequence(t *testing.T) {
	b := newTestBus(t, Options{})

	first := b.Publish(event.RestaurantOrderCreated, "a")
	second := b.Publish(event.TravelBookingCreated, "b")

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.False(t, first.Timestamp.IsZero())
}

func TestRecentEvents_BoundedToCapacity(t *testing.T) {
	b := newTestBus(t, Options{})

	for i := 0; i < 250; i++ {
		b.Publish(event.HousekeepingRequestCreated, i)
	}

	got := b.RecentEvents(nil, 1000)
	require.Len(t, got, DefaultCapacity)
	for i, ev := range got {
		assert.Equal(t, uint64(250-i), ev.Sequence)
	}
}

func TestRecentEvents_DefaultLimitAndFilter(t *testing.T) {
	b := newTestBus(t, Options{})

	for i := 0; i < 80; i++ {
		b.Publish(event.RestaurantOrderCreated, i)
		if i%2 == 0 {
			b.Publish(event.TravelBookingCreated, i)
		}
	}

	assert.Len(t, b.RecentEvents(nil, 0), DefaultReplayLimit)

	travel := b.RecentEvents([]event.Type{event.TravelBookingCreated}, 5)
	require.Len(t, travel, 5)
	for i := 1; i < len(travel); i++ {
		assert.Equal(t, event.TravelBookingCreated, travel[i].Type)
		assert.Greater(t, travel[i-1].Sequence, travel[i].Sequence)
	}
}

func TestSubscribe_FilterByType(t *testing.T) {
	b := newTestBus(t, Options{})

	var got []event.Type
	unsub := b.Subscribe(func(ev event.Event) {
		got = append(got, ev.Type)
	}, SubscribeOptions{EventTypes: []event.Type{event.Navigate}})
	defer unsub()

	b.Publish(event.RestaurantOrderCreated, nil)
	b.Publish(event.Navigate, nil)

	assert.Equal(t, []event.Type{event.Navigate}, got)
}

func TestSubscribe_PanickingHandlerIsIsolated(t *testing.T) {
	b := newTestBus(t, Options{})

	var delivered atomic.Int32
	b.Subscribe(func(event.Event) { panic("boom") }, SubscribeOptions{})
	b.Subscribe(func(event.Event) { delivered.Add(1) }, SubscribeOptions{})

	assert.NotPanics(t, func() {
		b.Publish(event.Navigate, nil)
	})
	assert.Equal(t, int32(1), delivered.Load())
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := newTestBus(t, Options{})

	var a, c atomic.Int32
	unsubA := b.Subscribe(func(event.Event) { a.Add(1) }, SubscribeOptions{})
	b.Subscribe(func(event.Event) { c.Add(1) }, SubscribeOptions{})

	unsubA()
	assert.NotPanics(t, unsubA)
	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(event.Navigate, nil)
	assert.Equal(t, int32(0), a.Load())
	assert.Equal(t, int32(1), c.Load())
}

func TestUnsubscribe_AfterCloseIsNoop(t *testing.T) {
	b := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	unsub := b.Subscribe(func(event.Event) {}, SubscribeOptions{})
	b.Close()

	assert.NotPanics(t, unsub)
	assert.Equal(t, event.Event{}, b.Publish(event.Navigate, nil))
}

func TestSubscribe_DuringDispatchNotRetroactive(t *testing.T) {
	b := newTestBus(t, Options{})

	var late atomic.Int32
	var once sync.Once
	b.Subscribe(func(event.Event) {
		once.Do(func() {
			b.Subscribe(func(event.Event) { late.Add(1) }, SubscribeOptions{})
		})
	}, SubscribeOptions{})

	b.Publish(event.Navigate, "first")
	assert.Equal(t, int32(0), late.Load())

	b.Publish(event.Navigate, "second")
	assert.Equal(t, int32(1), late.Load())
}

func TestSubscribe_ReplayIsAsyncAndMostRecentFirst(t *testing.T) {
	b := newTestBus(t, Options{})
	for i := 0; i < 60; i++ {
		b.Publish(event.RestaurantOrderCreated, i)
	}
	b.Publish(event.Navigate, "skip")

	release := make(chan struct{})
	var mu sync.Mutex
	var seqs []uint64
	done := make(chan struct{})

	unsub := b.Subscribe(func(ev event.Event) {
		<-release
		mu.Lock()
		seqs = append(seqs, ev.Sequence)
		n := len(seqs)
		mu.Unlock()
		if n == DefaultReplayLimit {
			close(done)
		}
	}, SubscribeOptions{ReplayRecent: true, EventTypes: []event.Type{event.RestaurantOrderCreated}})
	defer unsub()

	// Subscribe returned while the replay handler is still blocked.
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seqs, DefaultReplayLimit)
	assert.Equal(t, uint64(60), seqs[0])
	assert.Equal(t, uint64(11), seqs[len(seqs)-1])
}

func TestSubscribe_LiveDeliveryOverlapsReplay(t *testing.T) {
	b := newTestBus(t, Options{})
	for i := range 3 {
		b.Publish(event.HousekeepingRequestCreated, i)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var got []any
	total := make(chan struct{})

	unsub := b.Subscribe(func(ev event.Event) {
		if ev.Payload != "live" {
			once.Do(func() { close(entered) })
			<-release
		}
		mu.Lock()
		got = append(got, ev.Payload)
		n := len(got)
		mu.Unlock()
		if n == 4 {
			close(total)
		}
	}, SubscribeOptions{ReplayRecent: true})
	defer unsub()

	<-entered
	// The replay goroutine is parked inside the handler; a live publish still
	// reaches the same handler on this goroutine.
	b.Publish(event.HousekeepingRequestUpdated, "live")
	mu.Lock()
	assert.Equal(t, []any{"live"}, got)
	mu.Unlock()

	close(release)
	select {
	case <-total:
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not complete")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"live", 2, 1, 0}, got)
}

func TestPublish_ConcurrentPublishersKeepUniqueSequences(t *testing.T) {
	b := newTestBus(t, Options{Capacity: 1000})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Publish(event.TravelBookingUpdated, i)
			}
		}()
	}
	wg.Wait()

	got := b.RecentEvents(nil, 1000)
	require.Len(t, got, 400)
	seen := make(map[uint64]bool, len(got))
	for _, ev := range got {
		assert.False(t, seen[ev.Sequence])
		seen[ev.Sequence] = true
	}
}

type countingObserver struct {
	published atomic.Int32
	panicked  atomic.Int32
	subs      atomic.Int32
}

func (o *countingObserver) EventPublished(string, event.Type)  { o.published.Add(1) }
func (o *countingObserver) HandlerPanicked(string, event.Type) { o.panicked.Add(1) }
func (o *countingObserver) SubscribersChanged(_ string, n int) { o.subs.Store(int32(n)) }

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	b := newTestBus(t, Options{Observer: obs})

	unsub := b.Subscribe(func(event.Event) { panic("x") }, SubscribeOptions{})
	assert.Equal(t, int32(1), obs.subs.Load())

	b.Publish(event.Navigate, nil)
	assert.Equal(t, int32(1), obs.published.Load())
	assert.Equal(t, int32(1), obs.panicked.Load())

	unsub()
	assert.Equal(t, int32(0), obs.subs.Load())
}
