package pubsub

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by a publisher that has been shut down
var ErrClosed = errors.New("publisher is closed")

// Topics published by the planner
const (
	TopicCatalogStatus = "catalog_status" // load/reload progress
	TopicSelection     = "selection"      // selection and conflict set after every change
	TopicGenerator     = "generator"      // finished generator runs
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "catalog_status", "selection")
	Type    string          `json:"type"`    // Event type (e.g., "loading", "ready", "toggled")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// SubscribeSince resumes after the last event version a client saw
	SubscribeSince(ctx context.Context, topic string, lastVersion int) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// CatalogStatus represents catalog load state
type CatalogStatus struct {
	State    string         `json:"state"`   // loading, building, ready, error
	Message  string         `json:"message"` // Human-readable status message
	Step     int            `json:"step"`    // Current step number (1-based)
	Total    int            `json:"total"`   // Total number of steps
	Counts   map[string]int `json:"counts,omitempty"`
	Vertices int            `json:"vertices,omitempty"`
	Edges    int            `json:"edges,omitempty"`
}

// SelectionData is published whenever the selection or its conflicts change
type SelectionData struct {
	Selected   []string `json:"selected"`
	Conflicts  []string `json:"conflicts"`
	Violations int      `json:"violations"`
	Version    int      `json:"version"`
}

// GeneratorData summarizes a finished generator run
type GeneratorData struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Picked  int    `json:"picked"`
	Score   int    `json:"score"`
	Applied bool   `json:"applied"`
}

// ConfigureDefaults sets the buffering used by the planner topics: late
// subscribers get the latest status and selection immediately.
func ConfigureDefaults(p *SSEPublisher) {
	p.ConfigureTopic(TopicCatalogStatus, TopicConfig{BufferSize: 1})
	p.ConfigureTopic(TopicSelection, TopicConfig{BufferSize: 1})
	p.ConfigureTopic(TopicGenerator, TopicConfig{BufferSize: 5, ReplayAll: true})
}
