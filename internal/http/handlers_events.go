package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/domain/event"
	"github.com/target/hotelease-portal/internal/eventbus"
	"github.com/target/hotelease-portal/internal/service"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500

	streamBuffer            = 64
	defaultStreamHeartbeat  = 25 * time.Second
	sseEventView            = "view"
	sseRetryMillis          = 3000
	domainEventMinimumLevel = domainauth.RoleStaff
)

// EventHandlers exposes the shared domain event bus and each portal's navigation stream.
type EventHandlers struct {
	Registry *service.PortalRegistry
	// Heartbeat is the idle interval between keep-alive comments on a stream.
	Heartbeat time.Duration
	Logger    *slog.Logger
}

func (h *EventHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type emitEventRequest struct {
	Type    event.Type      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Emit publishes a domain event. navigate is reserved for arbitrators.
// POST /api/events {"type": "...", "payload": {...}}.
func (h *EventHandlers) Emit(w http.ResponseWriter, r *http.Request) {
	var req emitEventRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	ev, err := h.Registry.EmitDomainEvent(req.Type, payload)
	if err != nil {
		params := classifyError(err)
		if params.Code == http.StatusInternalServerError {
			params = ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_event", Err: err}
		}
		WriteError(w, params)
		return
	}
	WriteJSON(w, http.StatusCreated, ev)
}

type listEventsResponse struct {
	Events []event.Event `json:"events"`
}

// List returns recent domain events newest first.
// GET /api/events?types=a,b&limit=N.
func (h *EventHandlers) List(w http.ResponseWriter, r *http.Request) {
	events := h.Registry.RecentDomainEvents(parseTypes(r), parseLimit(r, defaultEventLimit, maxEventLimit))
	if events == nil {
		events = []event.Event{}
	}
	WriteJSON(w, http.StatusOK, listEventsResponse{Events: events})
}

// Stream pushes this portal's navigate events as server-sent events. Staff and
// above also receive domain events, starting with a replay of recent ones.
// GET /api/events/stream[?types=a,b].
func (h *EventHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	p, ok := PortalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
		return
	}
	ctx := r.Context()
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", sseRetryMillis); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger().ErrorContext(ctx, "event stream unsupported by response writer", "error", err)
		return
	}

	ch := make(chan event.Event, streamBuffer)
	var dropped atomic.Int64
	send := func(ev event.Event) {
		select {
		case ch <- ev:
		default:
			dropped.Add(1)
		}
	}
	privileged := func() bool {
		snap := p.Arbitrator.Snapshot()
		return snap.Authenticated && snap.Role.AtLeast(domainEventMinimumLevel)
	}

	unsubNav := p.Bus.Subscribe(send, eventbus.SubscribeOptions{EventTypes: []event.Type{event.Navigate}})
	defer unsubNav()
	// Role is re-checked per event so a logout mid-stream stops domain delivery.
	unsubDomain := h.Registry.SubscribeDomainEvents(func(ev event.Event) {
		if privileged() {
			send(ev)
		}
	}, eventbus.SubscribeOptions{ReplayRecent: privileged(), EventTypes: parseTypes(r)})
	defer unsubDomain()

	if err := writeSSE(w, sseEventView, p.Arbitrator.Snapshot()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultStreamHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := dropped.Load(); n > 0 {
				h.logger().WarnContext(ctx, "event stream dropped events for a slow client", "portal_id", p.ID, "dropped", n)
			}
			return
		case ev := <-ch:
			if err := writeSSE(w, string(ev.Type), ev); err != nil {
				return
			}
		case <-ticker.C:
			// Keep the portal alive while the client is only listening.
			h.Registry.Get(p.ID)
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeSSE writes a single server-sent event with a JSON data line.
func writeSSE(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return errors.Join(errStreamClosed, err)
	}
	return nil
}

var errStreamClosed = errors.New("event stream closed")
