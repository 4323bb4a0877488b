// Package eventbus provides a bounded, replayable, in-process publish/subscribe bus.
//
// Publish appends to a fixed-size event log and dispatches synchronously to a
// snapshot of the subscribers taken under the lock; handlers run outside the lock.
// A panicking handler is recovered and logged without affecting other handlers.
package eventbus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/hotelease-portal/internal/domain/event"
)

const (
	// DefaultCapacity is the size of the event log.
	DefaultCapacity = 100
	// DefaultReplayLimit caps replay-on-subscribe and the default RecentEvents limit.
	DefaultReplayLimit = 50
)

// Handler receives published events. A handler runs on the publishing goroutine,
// and replay runs on its own goroutine, so one handler may be called concurrently
// and must be safe for concurrent use.
type Handler func(event.Event)

// Observer receives bus telemetry. Implementations must be safe for concurrent use.
type Observer interface {
	EventPublished(bus string, t event.Type)
	HandlerPanicked(bus string, t event.Type)
	SubscribersChanged(bus string, count int)
}

// Options configures a Bus.
type Options struct {
	Name        string // label for logs and metrics
	Capacity    int
	ReplayLimit int
	Logger      *slog.Logger
	Observer    Observer
	Now         func() time.Time
}

// SubscribeOptions controls a single subscription.
type SubscribeOptions struct {
	// ReplayRecent delivers matching logged events asynchronously, most recent first.
	// Replayed events may reach the handler concurrently with, and after, live ones.
	ReplayRecent bool
	// EventTypes filters delivery; empty accepts every type.
	EventTypes []event.Type
}

type subscription struct {
	id      uint64
	handler Handler
	filter  event.TypeSet
	active  atomic.Bool
}

// Bus is safe for concurrent use.
type Bus struct {
	name        string
	replayLimit int
	logger      *slog.Logger
	observer    Observer
	now         func() time.Time

	mu     sync.Mutex
	seq    uint64
	ring   []event.Event
	head   int // index of the oldest entry
	size   int
	subs   []*subscription
	nextID uint64
	closed bool

	replays sync.WaitGroup
}

// New constructs a Bus with defaults applied.
func New(opts Options) *Bus {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.ReplayLimit <= 0 {
		opts.ReplayLimit = DefaultReplayLimit
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bus{
		name:        opts.Name,
		replayLimit: opts.ReplayLimit,
		logger:      opts.Logger.With("component", "eventbus", "bus", opts.Name),
		observer:    opts.Observer,
		now:         opts.Now,
		ring:        make([]event.Event, opts.Capacity),
	}
}

// Publish records an event and delivers it to current subscribers.
// It never fails; after Close it is a no-op and returns the zero Event.
func (b *Bus) Publish(t event.Type, payload any) event.Event {
	return b.PublishWithSource(t, payload, "")
}

// PublishWithSource is Publish for events that originated elsewhere.
func (b *Bus) PublishWithSource(t event.Type, payload any, source string) event.Event {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return event.Event{}
	}
	b.seq++
	ev := event.Event{
		Type:      t,
		Payload:   payload,
		Sequence:  b.seq,
		Timestamp: b.now(),
		Source:    source,
	}
	b.appendLocked(ev)
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.filter.Accepts(t) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	if b.observer != nil {
		b.observer.EventPublished(b.name, t)
	}
	for _, s := range targets {
		b.deliver(s, ev)
	}
	return ev
}

func (b *Bus) appendLocked(ev event.Event) {
	capacity := len(b.ring)
	if b.size < capacity {
		b.ring[(b.head+b.size)%capacity] = ev
		b.size++
		return
	}
	// Full: overwrite the oldest.
	b.ring[b.head] = ev
	b.head = (b.head + 1) % capacity
}

// recentLocked returns matching events newest first, at most limit.
func (b *Bus) recentLocked(filter event.TypeSet, limit int) []event.Event {
	capacity := len(b.ring)
	out := make([]event.Event, 0, min(limit, b.size))
	for i := b.size - 1; i >= 0 && len(out) < limit; i-- {
		ev := b.ring[(b.head+i)%capacity]
		if filter.Accepts(ev.Type) {
			out = append(out, ev)
		}
	}
	return out
}

func (b *Bus) deliver(s *subscription, ev event.Event) {
	if !s.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_type", string(ev.Type),
				"sequence", ev.Sequence,
				"subscription", s.id,
				"error", fmt.Sprint(r),
			)
			if b.observer != nil {
				b.observer.HandlerPanicked(b.name, ev.Type)
			}
		}
	}()
	s.handler(ev)
}

// Subscribe registers h. The returned function removes it and is idempotent.
// Publishes already dispatching when Subscribe is called are not delivered to h.
func (b *Bus) Subscribe(h Handler, opts SubscribeOptions) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}
	s := &subscription{handler: h, filter: event.NewTypeSet(opts.EventTypes...)}
	s.active.Store(true)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.nextID++
	s.id = b.nextID
	b.subs = append(b.subs, s)
	count := len(b.subs)
	var backlog []event.Event
	if opts.ReplayRecent {
		backlog = b.recentLocked(s.filter, b.replayLimit)
	}
	if len(backlog) > 0 {
		b.replays.Add(1)
	}
	b.mu.Unlock()

	if b.observer != nil {
		b.observer.SubscribersChanged(b.name, count)
	}
	if len(backlog) > 0 {
		go func() {
			defer b.replays.Done()
			for _, ev := range backlog {
				b.deliver(s, ev)
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(s) })
	}
}

func (b *Bus) remove(s *subscription) {
	s.active.Store(false)
	b.mu.Lock()
	removed := false
	for i, cur := range b.subs {
		if cur.id == s.id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			removed = true
			break
		}
	}
	count := len(b.subs)
	b.mu.Unlock()
	if removed && b.observer != nil {
		b.observer.SubscribersChanged(b.name, count)
	}
}

// RecentEvents returns logged events newest first, filtered by types when given.
// A non-positive limit uses the replay limit.
func (b *Bus) RecentEvents(types []event.Type, limit int) []event.Event {
	if limit <= 0 {
		limit = b.replayLimit
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recentLocked(event.NewTypeSet(types...), limit)
}

// SubscriberCount reports the number of registered handlers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops all subscribers and waits for pending replays.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.active.Store(false)
	}
	if b.observer != nil && len(subs) > 0 {
		b.observer.SubscribersChanged(b.name, 0)
	}
	b.replays.Wait()
}
