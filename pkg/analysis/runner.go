package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ritzau/load-factors/pkg/analysis/api"
	"github.com/ritzau/load-factors/pkg/cycles"
	"github.com/ritzau/load-factors/pkg/graph"
	"github.com/ritzau/load-factors/pkg/loadfactor"
	"github.com/ritzau/load-factors/pkg/logging"
	"github.com/ritzau/load-factors/pkg/output"
	"github.com/ritzau/load-factors/pkg/pubsub"
)

// Options configures a single run
type Options struct {
	Entry  string
	Strict bool   // fail instead of warn when the graph has cycles
	Reason string // e.g. "initial analysis", "file changed"
}

// Runner computes load factors from a source, publishes the outcome and
// remembers the last successful report
type Runner struct {
	publisher pubsub.Publisher
	mu        sync.Mutex // serializes runs
	last      *output.Report
}

// NewRunner creates a runner. publisher may be nil.
func NewRunner(publisher pubsub.Publisher) *Runner {
	return &Runner{publisher: publisher}
}

// Run reads declarations from src and computes load factors from opts.Entry.
// Malformed declarations and, in strict mode, cycles are returned as errors
// and published as error events.
func (r *Runner) Run(ctx context.Context, src api.Source, opts Options) (*output.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	logging.DebugContext(ctx, "starting analysis", "source", src.Name(), "entry", opts.Entry, "reason", opts.Reason)

	lines, err := src.Declarations(ctx)
	if err != nil {
		r.publishError(src.Name(), opts.Entry, err)
		return nil, fmt.Errorf("reading declarations from %s: %w", src.Name(), err)
	}

	result, err := loadfactor.Analyze(api.Texts(lines), opts.Entry)
	if err != nil {
		var malformed *loadfactor.MalformedDeclarationError
		if errors.As(err, &malformed) {
			malformed.LineNumber = lines[malformed.Index].Number
		}
		r.publishError(src.Name(), opts.Entry, err)
		return nil, err
	}

	sg := graph.BuildServiceGraph(result.Graph, result.Declared)
	if opts.Strict {
		if err := cycles.Check(sg); err != nil {
			r.publishError(src.Name(), opts.Entry, err)
			return nil, err
		}
	}
	found := cycles.FindServiceCycles(sg)
	if len(found) > 0 {
		logging.WarnContext(ctx, "dependency graph has cycles", "count", len(found))
	}

	report := &output.Report{
		Source: src.Name(),
		Result: result,
		Cycles: found,
	}
	r.last = report
	r.publish(pubsub.EventComputed, newComputeEvent(report))

	logging.InfoContext(ctx, "computed load factors",
		"source", src.Name(),
		"entry", opts.Entry,
		"services", len(result.Loads),
		"durationMs", time.Since(start).Milliseconds())

	return report, nil
}

// Last returns the most recent successful report, or nil
func (r *Runner) Last() *output.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Runner) publishError(sourceName, entry string, err error) {
	event := pubsub.ComputeEvent{
		Source: sourceName,
		Entry:  entry,
		Error:  err.Error(),
	}
	var malformed *loadfactor.MalformedDeclarationError
	if errors.As(err, &malformed) {
		event.Line = malformed.Line
		event.LineNum = malformed.LineNumber
	}
	r.publish(pubsub.EventError, event)
}

func (r *Runner) publish(eventType string, event pubsub.ComputeEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(pubsub.TopicLoadFactors, eventType, event); err != nil {
		logging.Warn("failed to publish event", "type", eventType, "error", err)
	}
}

func newComputeEvent(report *output.Report) pubsub.ComputeEvent {
	event := pubsub.ComputeEvent{
		Source:    report.Source,
		Entry:     report.Result.Entry,
		Loads:     report.Result.Loads,
		Unreached: report.Result.Unreached,
	}
	for _, c := range report.Cycles {
		event.Cycles = append(event.Cycles, c.String())
	}
	return event
}
