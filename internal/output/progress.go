package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/visitforge/visitforge/internal/engine"
	"github.com/visitforge/visitforge/internal/metrics"
)

// ProgressReporter displays a one-line real-time status update.
type ProgressReporter struct {
	state     *engine.RunState
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(state *engine.RunState, collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		state:     state,
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			elapsed := time.Since(p.start)
			snap := p.state.Snapshot()
			stats := p.collector.Stats(elapsed)

			inFlight := snap.VisitsStarted - snap.VisitsCompleted - snap.VisitsAbandoned
			line := fmt.Sprintf("\rVisits: %d started, %d done, %d in flight | Hits: %d (%.1f/s)",
				snap.VisitsStarted, snap.VisitsCompleted, inFlight, stats.Total, stats.HitsPerSec)
			if stats.Failures > 0 {
				line += fmt.Sprintf(" | Failures: %d", stats.Failures)
			}
			if stats.Total > 0 {
				line += fmt.Sprintf(" | P99: %.1fms", stats.P99LatencyMs)
			}
			fmt.Fprint(p.writer, line)
		case <-p.done:
			return
		}
	}
}
