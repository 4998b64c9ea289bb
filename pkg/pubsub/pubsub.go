package pubsub

import (
	"context"
	"encoding/json"
)

// TopicLoadFactors carries one event per (re)computation
const TopicLoadFactors = "load_factors"

// Event types published on TopicLoadFactors
const (
	EventComputed = "computed"
	EventError    = "error"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per-topic, increases by one per publish
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events. It is closed when the
	// subscription or the publisher is closed.
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// ComputeEvent describes the outcome of one load-factor computation
type ComputeEvent struct {
	Source    string         `json:"source"` // file path, "request" or "args"
	Entry     string         `json:"entry"`
	Loads     map[string]int `json:"loads,omitempty"`
	Unreached []string       `json:"unreached,omitempty"`
	Cycles    []string       `json:"cycles,omitempty"`
	Error     string         `json:"error,omitempty"`
	Line      string         `json:"line,omitempty"` // offending declaration on parse errors
	LineNum   int            `json:"lineNumber,omitempty"`
}
