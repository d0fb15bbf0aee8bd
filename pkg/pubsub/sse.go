package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/course-planner/pkg/logging"
)

// subscriberQueue is the per-subscription channel capacity. A subscriber
// that falls this far behind loses events rather than stalling the planner.
const subscriberQueue = 64

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // New subscribers get the whole buffer instead of only its last event
}

// topicState is everything the publisher tracks for one topic
type topicState struct {
	config  TopicConfig
	version int
	buffer  []Event
	subs    map[*sseSubscription]struct{}
}

// SSEPublisher implements Publisher using Server-Sent Events. Events of a
// topic carry increasing versions; replay and live delivery happen under
// the same lock, so a subscriber always sees versions in order.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates a new SSE-based publisher
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

// topic returns the state of name, creating it on first use. Callers hold mu.
func (p *SSEPublisher) topic(name string) *topicState {
	t, ok := p.topics[name]
	if !ok {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic. Shrinking the
// buffer drops the oldest events.
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.topic(topic)
	t.config = config
	t.trim()
}

// Subscribe creates a new subscription to a topic. Buffered events are
// replayed first according to the topic configuration.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	return p.subscribe(ctx, topic, -1)
}

// SubscribeSince resumes a subscription: every buffered event newer than
// lastVersion is replayed, whatever the topic's replay setting. Events that
// already left the buffer are gone.
func (p *SSEPublisher) SubscribeSince(ctx context.Context, topic string, lastVersion int) (Subscription, error) {
	if lastVersion < 0 {
		lastVersion = 0
	}
	return p.subscribe(ctx, topic, lastVersion)
}

func (p *SSEPublisher) subscribe(ctx context.Context, topic string, lastVersion int) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	t := p.topic(topic)
	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, subscriberQueue+t.config.BufferSize),
		done:      make(chan struct{}),
		publisher: p,
	}
	t.subs[sub] = struct{}{}

	replay := t.replay(lastVersion)
	for _, event := range replay {
		sub.events <- event
	}
	if len(replay) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", topic, "count", len(replay), "since", lastVersion)
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// replay picks the buffered events a subscriber should start with.
// lastVersion < 0 marks a fresh subscriber.
func (t *topicState) replay(lastVersion int) []Event {
	if len(t.buffer) == 0 {
		return nil
	}
	if lastVersion >= 0 {
		var out []Event
		for _, e := range t.buffer {
			if e.Version > lastVersion {
				out = append(out, e)
			}
		}
		return out
	}
	if t.config.ReplayAll {
		return append([]Event(nil), t.buffer...)
	}
	return []Event{t.buffer[len(t.buffer)-1]}
}

func (t *topicState) trim() {
	n := t.config.BufferSize
	switch {
	case n <= 0:
		t.buffer = nil
	case len(t.buffer) > n:
		t.buffer = append([]Event(nil), t.buffer[len(t.buffer)-n:]...)
	}
}

// Publish sends an event to all subscribers of a topic
func (p *SSEPublisher) Publish(topic string, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topic(topic)
	t.version++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    jsonData,
		Version: t.version,
	}

	if t.config.BufferSize > 0 {
		t.buffer = append(t.buffer, event)
		t.trim()
	}

	for sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", topic, "type", eventType, "version", event.Version)
		}
	}
	return nil
}

// Close shuts down the publisher and ends every subscription
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			sub.end()
		}
		t.subs = nil
	}
	return nil
}

// Subscribers returns the number of open subscriptions per topic
func (p *SSEPublisher) Subscribers() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make(map[string]int, len(p.topics))
	for name, t := range p.topics {
		if len(t.subs) > 0 {
			counts[name] = len(t.subs)
		}
	}
	return counts
}

// sseSubscription implements Subscription. Its channel is closed exactly
// once, under the publisher lock, so Publish never sends on a closed channel.
type sseSubscription struct {
	topic     string
	events    chan Event
	done      chan struct{}
	publisher *SSEPublisher
	closed    bool
}

// Topic returns the subscription topic
func (s *sseSubscription) Topic() string {
	return s.topic
}

// Events returns the event channel. It is closed when the subscription ends.
func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

// Close ends the subscription
func (s *sseSubscription) Close() error {
	p := s.publisher
	p.mu.Lock()
	defer p.mu.Unlock()

	if t := p.topics[s.topic]; t != nil && t.subs != nil {
		delete(t.subs, s)
	}
	s.end()
	return nil
}

// end closes the channel once. Callers hold the publisher lock.
func (s *sseSubscription) end() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
	close(s.done)
}

// WriteSSE writes an event to an SSE response writer
// Format: "id: {version}\ndata: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, jsonData)
	return err
}
