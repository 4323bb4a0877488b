package config

import "strings"

const (
	defaultEventLogCapacity = 100
	defaultEventReplayLimit = 50
)

// EventBusConfig sizes the in-process buses and controls the Redis relay.
type EventBusConfig struct {
	// LogCapacity is the number of recent events kept per bus.
	LogCapacity int `env:"EVENTBUS_LOG_CAPACITY" envDefault:"100"`

	// ReplayLimit caps replay-on-subscribe and the default recent-events limit.
	ReplayLimit int `env:"EVENTBUS_REPLAY_LIMIT" envDefault:"50"`

	// RelayEnabled mirrors domain events across broker instances through Redis pub/sub.
	RelayEnabled bool `env:"EVENTBUS_RELAY_ENABLED" envDefault:"false"`

	// RelayChannel is the pub/sub channel used by the relay.
	RelayChannel string `env:"EVENTBUS_RELAY_CHANNEL" envDefault:"hotelease:domain-events"`
}

// Sanitize applies guardrails to event bus configuration values.
func (e *EventBusConfig) Sanitize() {
	if e.LogCapacity <= 0 {
		e.LogCapacity = defaultEventLogCapacity
	}
	if e.ReplayLimit <= 0 {
		e.ReplayLimit = defaultEventReplayLimit
	}
	if e.ReplayLimit > e.LogCapacity {
		e.ReplayLimit = e.LogCapacity
	}
	e.RelayChannel = strings.TrimSpace(e.RelayChannel)
	if e.RelayChannel == "" {
		e.RelayEnabled = false
	}
}
