package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/hotelease-portal/internal/domain/event"
	"github.com/target/hotelease-portal/internal/eventbus"
	"github.com/target/hotelease-portal/internal/ports"
)

// Relay directions and results reported to the RelayObserver.
const (
	RelayOutbound = "outbound"
	RelayInbound  = "inbound"

	relayOK      = "success"
	relayError   = "error"
	relayDropped = "dropped"
)

const defaultRelayBuffer = 256

// RelayObserver receives relay telemetry.
type RelayObserver interface {
	RelayMessage(direction, result string)
}

// EventRelayOptions configures an EventRelay.
type EventRelayOptions struct {
	Client     redis.UniversalClient
	Channel    string
	InstanceID string
	// Sink receives events relayed from other instances.
	Sink     ports.EventSink
	Logger   *slog.Logger
	Observer RelayObserver
	Buffer   int
}

// relayEnvelope is the wire format on the pub/sub channel.
type relayEnvelope struct {
	Origin    string          `json:"origin"`
	Type      event.Type      `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventRelay mirrors local domain events to a Redis channel and replays events
// published by other instances into the local sink. Navigate events stay local,
// and relayed events are never forwarded again.
type EventRelay struct {
	client   redis.UniversalClient
	channel  string
	origin   string
	sink     ports.EventSink
	logger   *slog.Logger
	observer RelayObserver

	out       chan relayEnvelope
	ready     chan struct{}
	readyOnce sync.Once
}

// NewEventRelay validates options and constructs a relay. Call Run to start it.
func NewEventRelay(opts EventRelayOptions) (*EventRelay, error) {
	if opts.Client == nil {
		return nil, errors.New("event relay: redis client is required")
	}
	if opts.Channel == "" {
		return nil, errors.New("event relay: channel is required")
	}
	if opts.InstanceID == "" {
		return nil, errors.New("event relay: instance id is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("event relay: sink is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultRelayBuffer
	}
	return &EventRelay{
		client:   opts.Client,
		channel:  opts.Channel,
		origin:   opts.InstanceID,
		sink:     opts.Sink,
		logger:   opts.Logger.With("component", "event_relay", "channel", opts.Channel),
		observer: opts.Observer,
		out:      make(chan relayEnvelope, opts.Buffer),
		ready:    make(chan struct{}),
	}, nil
}

// Attach subscribes Forward to every event on bus.
func (r *EventRelay) Attach(bus *eventbus.Bus) (detach func()) {
	return bus.Subscribe(r.Forward, eventbus.SubscribeOptions{})
}

// Ready is closed once the channel subscription is confirmed.
func (r *EventRelay) Ready() <-chan struct{} { return r.ready }

// Forward queues a locally-originated event for publication. It never blocks;
// when the buffer is full the event is dropped and logged.
func (r *EventRelay) Forward(ev event.Event) {
	if ev.Type == event.Navigate || ev.Source != "" {
		return
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		r.logger.Warn("event relay: payload not serializable", "event_type", string(ev.Type), "error", err)
		r.observe(RelayOutbound, relayError)
		return
	}
	env := relayEnvelope{Origin: r.origin, Type: ev.Type, Payload: payload, Timestamp: ev.Timestamp}
	select {
	case r.out <- env:
	default:
		r.logger.Warn("event relay: outbound buffer full, dropping event", "event_type", string(ev.Type))
		r.observe(RelayOutbound, relayDropped)
	}
}

// Run subscribes to the channel and pumps events in both directions until ctx is done.
func (r *EventRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			r.logger.Debug("event relay: close subscription", "error", err)
		}
	}()

	// Receive blocks until the SUBSCRIBE is acknowledged.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("event relay subscribe %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("event relay started", "instance", r.origin)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.receiveLoop(gctx, pubsub.Channel()) })
	g.Go(func() error { return r.publishLoop(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (r *EventRelay) receiveLoop(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("event relay: subscription channel closed")
			}
			r.handleInbound(msg.Payload)
		}
	}
}

func (r *EventRelay) handleInbound(raw string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Warn("event relay: malformed message", "error", err)
		r.observe(RelayInbound, relayError)
		return
	}
	if env.Origin == r.origin || env.Origin == "" || env.Type == "" || env.Type == event.Navigate {
		return
	}
	var payload any
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		payload = env.Payload
	}
	r.sink.PublishWithSource(env.Type, payload, env.Origin)
	r.observe(RelayInbound, relayOK)
}

func (r *EventRelay) publishLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-r.out:
			data, err := json.Marshal(env)
			if err != nil {
				r.observe(RelayOutbound, relayError)
				continue
			}
			if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Warn("event relay: publish failed", "event_type", string(env.Type), "error", err)
				r.observe(RelayOutbound, relayError)
				continue
			}
			r.observe(RelayOutbound, relayOK)
		}
	}
}

func (r *EventRelay) observe(direction, result string) {
	if r.observer != nil {
		r.observer.RelayMessage(direction, result)
	}
}
