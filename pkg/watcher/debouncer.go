package watcher

import (
	"context"
	"time"

	"github.com/ritzau/load-factors/pkg/logging"
)

// Debouncer folds bursts of change events into one, emitted after a quiet
// period or at the latest maxWait after the first event of the burst
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
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

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		pending  *ChangeEvent
		quiet    *time.Timer
		deadline *time.Timer
	)

	stop := func(t *time.Timer) {
		if t != nil {
			t.Stop()
		}
	}

	flush := func() {
		stop(quiet)
		stop(deadline)
		quiet, deadline = nil, nil
		if pending == nil {
			return
		}

		logging.Debug("flushing accumulated events", "count", pending.Count, "type", pending.Type.String())
		event := *pending
		pending = nil
		select {
		case d.output <- event:
		case <-ctx.Done():
		}
	}

	timerC := func(t *time.Timer) <-chan time.Time {
		if t == nil {
			return nil
		}
		return t.C
	}

	for {
		select {
		case <-ctx.Done():
			stop(quiet)
			stop(deadline)
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			if pending == nil {
				e := event
				pending = &e
				deadline = time.NewTimer(d.maxWait)
			} else {
				pending.Count += event.Count
				pending.Timestamp = event.Timestamp
				// A later create/write supersedes a remove (editor save via rename)
				pending.Type = event.Type
			}

			stop(quiet)
			quiet = time.NewTimer(d.quietPeriod)

		case <-timerC(quiet):
			flush()

		case <-timerC(deadline):
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
