package watcher

import (
	"context"
	"time"

	"github.com/ritzau/course-planner/pkg/logging"
)

// Debouncer batches rapid file system events so that an editor saving four
// files produces one reload
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer. Events are released after
// quietPeriod without input, or maxWait after the first pending event.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// run processes events and applies debouncing logic. Timers are only read
// from this goroutine.
func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet       <-chan time.Time
		deadline    <-chan time.Time
		accumulated = make(map[ChangeType][]string)
		eventCount  int
	)

	flush := func() {
		quiet, deadline = nil, nil
		if eventCount == 0 {
			return
		}

		logging.Debug("flushing accumulated events", "count", eventCount)

		// Send modifications first, then removals
		for _, t := range []ChangeType{ChangeTypeModified, ChangeTypeRemoved} {
			if paths := accumulated[t]; len(paths) > 0 {
				d.output <- ChangeEvent{Type: t, Paths: dedupe(paths), Timestamp: time.Now()}
			}
		}

		// Reset accumulators
		accumulated = make(map[ChangeType][]string)
		eventCount = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			// Accumulate event
			accumulated[event.Type] = append(accumulated[event.Type], event.Paths...)
			eventCount++

			// Reset quiet period timer; the max wait timer starts on the first event
			quiet = time.After(d.quietPeriod)
			if deadline == nil {
				deadline = time.After(d.maxWait)
			}

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
