package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// collect reads events until n have arrived or wait passes without one
func collect(sub Subscription, n int, wait time.Duration) []int {
	var versions []int
	for len(versions) < n {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return versions
			}
			versions = append(versions, event.Version)
		case <-time.After(wait):
			return versions
		}
	}
	return versions
}

func TestReplayOnSubscribe(t *testing.T) {
	tests := []struct {
		name      string
		config    TopicConfig
		published int
		want      []int
	}{
		{"replay all keeps the newest", TopicConfig{BufferSize: 3, ReplayAll: true}, 5, []int{3, 4, 5}},
		{"replay last only", TopicConfig{BufferSize: 5}, 3, []int{3}},
		{"no buffer", TopicConfig{}, 3, nil},
		{"nothing published", TopicConfig{BufferSize: 2, ReplayAll: true}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := NewSSEPublisher()
			defer pub.Close()
			pub.ConfigureTopic("test", tt.config)

			for i := 1; i <= tt.published; i++ {
				if err := pub.Publish("test", "event", map[string]int{"num": i}); err != nil {
					t.Fatalf("Failed to publish event %d: %v", i, err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			sub, err := pub.Subscribe(ctx, "test")
			if err != nil {
				t.Fatalf("Failed to subscribe: %v", err)
			}
			defer sub.Close()

			// Ask for one more than expected to catch extra replays
			got := collect(sub, len(tt.want)+1, 50*time.Millisecond)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("replayed versions %v, want %v", got, tt.want)
			}

			// Live events follow the replay
			pub.Publish("test", "event", map[string]int{"num": 99})
			live := collect(sub, 1, 100*time.Millisecond)
			if len(live) != 1 || live[0] != tt.published+1 {
				t.Errorf("live versions %v, want [%d]", live, tt.published+1)
			}
		})
	}
}

func TestShrinkingBufferDropsOldest(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(TopicGenerator, TopicConfig{BufferSize: 5, ReplayAll: true})
	for i := 0; i < 4; i++ {
		pub.Publish(TopicGenerator, "ok", GeneratorData{})
	}
	pub.ConfigureTopic(TopicGenerator, TopicConfig{BufferSize: 2, ReplayAll: true})

	sub, err := pub.Subscribe(context.Background(), TopicGenerator)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()
	if got := collect(sub, 3, 50*time.Millisecond); !reflect.DeepEqual(got, []int{3, 4}) {
		t.Errorf("replayed versions %v, want [3 4]", got)
	}
}

func TestClosedPublisher(t *testing.T) {
	pub := NewSSEPublisher()
	pub.Close()

	if err := pub.Publish(TopicSelection, "toggled", SelectionData{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close: got %v, want ErrClosed", err)
	}
	if _, err := pub.Subscribe(context.Background(), TopicSelection); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe after Close: got %v, want ErrClosed", err)
	}
}

func TestDefaultTopicsReplayLatestSelection(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	ConfigureDefaults(pub)

	pub.Publish(TopicSelection, "toggled", SelectionData{Selected: []string{"A"}})
	pub.Publish(TopicSelection, "toggled", SelectionData{Selected: []string{"A", "D"}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicSelection)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	if got := pub.Subscribers()[TopicSelection]; got != 1 {
		t.Errorf("Subscribers = %d, want 1", got)
	}

	select {
	case event := <-sub.Events():
		var data SelectionData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if len(data.Selected) != 2 || event.Version != 2 {
			t.Errorf("replayed %+v (version %d), want the latest selection", data, event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for replayed selection")
	}
}

func TestSubscribeSinceResumes(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	ConfigureDefaults(pub)

	for i := 1; i <= 4; i++ {
		pub.Publish(TopicGenerator, "ok", GeneratorData{Score: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.SubscribeSince(ctx, TopicGenerator, 2)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	for _, want := range []int{3, 4} {
		select {
		case event := <-sub.Events():
			if event.Version != want {
				t.Errorf("Expected version %d, got %d", want, event.Version)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for version %d", want)
		}
	}

	// A resumed selection stream gets nothing when it is up to date
	pub.Publish(TopicSelection, "toggled", SelectionData{})
	up, err := pub.SubscribeSince(ctx, TopicSelection, 1)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer up.Close()
	select {
	case event := <-up.Events():
		t.Errorf("Received unexpected event version %d", event.Version)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestCancelledSubscriptionCloses(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := pub.Subscribe(ctx, TopicSelection)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("Received an event, want a closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("Events channel was not closed after cancel")
	}

	if got := pub.Subscribers()[TopicSelection]; got != 0 {
		t.Errorf("Subscribers = %d after cancel, want 0", got)
	}
	// Publishing after the subscriber left must not panic
	if err := pub.Publish(TopicSelection, "reset", SelectionData{}); err != nil {
		t.Errorf("Publish: %v", err)
	}
	sub.Close()
}

func TestPublisherCloseEndsSubscriptions(t *testing.T) {
	pub := NewSSEPublisher()
	sub, err := pub.Subscribe(context.Background(), TopicGenerator)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	pub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("Events channel still open after publisher Close")
	}
	if err := sub.Close(); err != nil {
		t.Errorf("Close after publisher Close: %v", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSSE(&buf, Event{Topic: TopicGenerator, Type: "done", Data: json.RawMessage(`{"score":3}`), Version: 7})
	if err != nil {
		t.Fatalf("WriteSSE: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "id: 7\ndata: {") || !strings.HasSuffix(out, "}\n\n") {
		t.Errorf("unexpected frame %q", out)
	}
	if !strings.Contains(out, `"topic":"generator"`) {
		t.Errorf("frame missing topic: %q", out)
	}
}
