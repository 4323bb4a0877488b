// Package event holds the immutable event envelope carried by the event bus.
package event

import (
	"time"

	"github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/domain/view"
)

// Type is an open set; the bus never requires a closed enum.
type Type string

// Well-known types agreed between producers and consumers.
const (
	Navigate                   Type = "navigate"
	HousekeepingRequestCreated Type = "housekeeping_request_created"
	HousekeepingRequestUpdated Type = "housekeeping_request_updated"
	RestaurantOrderCreated     Type = "restaurant_order_created"
	RestaurantOrderUpdated     Type = "restaurant_order_updated"
	TravelBookingCreated       Type = "travel_booking_created"
	TravelBookingUpdated       Type = "travel_booking_updated"
)

// Event is immutable once published.
type Event struct {
	Type      Type      `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	// Source names the originating instance for relayed events; empty when local.
	Source string `json:"source,omitempty"`
}

// NavigatePayload is published with every Navigate event.
type NavigatePayload struct {
	View     view.State `json:"view"`
	Role     auth.Role  `json:"role,omitempty"`
	PortalID string     `json:"portal_id,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// TypeSet is a filter over event types. A nil or empty set accepts everything.
type TypeSet map[Type]struct{}

// NewTypeSet builds a filter from the given types.
func NewTypeSet(types ...Type) TypeSet {
	if len(types) == 0 {
		return nil
	}
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Accepts reports whether t passes the filter.
func (s TypeSet) Accepts(t Type) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[t]
	return ok
}
