// Package webhook delivers memory lifecycle events to external HTTP
// endpoints: HMAC-SHA256 signed payloads, an event-type filter per
// registration, and exponential-backoff retry on transient failures only.
package webhook

import (
	"time"

	"github.com/google/uuid"

	"github.com/rookmemory/rook/internal/events"
)

// RetryPolicy bounds exponential-backoff retry of a single delivery.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy holds the standard exponential-backoff retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Config is a single webhook registration.
type Config struct {
	ID          string
	URL         string
	Secret      string
	Events      map[events.EventType]struct{}
	RetryPolicy RetryPolicy
	Timeout     time.Duration
	Enabled     bool
}

// NewConfig builds a Config with an assigned ID and sensible defaults,
// subscribed to all event types until WithEvents narrows it.
func NewConfig(url string) Config {
	return Config{
		ID:          uuid.NewString(),
		URL:         url,
		Events:      map[events.EventType]struct{}{},
		RetryPolicy: DefaultRetryPolicy(),
		Timeout:     30 * time.Second,
		Enabled:     true,
	}
}

// WithSecret sets the HMAC signing secret.
func (c Config) WithSecret(secret string) Config {
	c.Secret = secret
	return c
}

// WithEvents narrows delivery to the given event types; an empty set (the
// NewConfig default) means all events.
func (c Config) WithEvents(types ...events.EventType) Config {
	set := make(map[events.EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	c.Events = set
	return c
}

// WithRetryPolicy overrides the retry policy.
func (c Config) WithRetryPolicy(policy RetryPolicy) Config {
	c.RetryPolicy = policy
	return c
}

// ShouldReceive reports whether this registration wants the given event
// type delivered.
func (c Config) ShouldReceive(eventType events.EventType) bool {
	if !c.Enabled {
		return false
	}
	if len(c.Events) == 0 {
		return true
	}
	_, ok := c.Events[eventType]
	return ok
}
