package engine

import "sync/atomic"

// RunState holds the live counters a run exposes to progress reporting and
// the dashboard. All methods are safe for concurrent use.
type RunState struct {
	visitsStarted   int64
	visitsCompleted int64
	visitsAbandoned int64
	eventsSent      int64
	eventsFailed    int64
	composeFailures int64
}

// Snapshot is a consistent-enough copy of the counters at one instant.
type Snapshot struct {
	VisitsStarted   int64 `json:"visits_started"`
	VisitsCompleted int64 `json:"visits_completed"`
	VisitsAbandoned int64 `json:"visits_abandoned"`
	EventsSent      int64 `json:"events_sent"`
	EventsFailed    int64 `json:"events_failed"`
	ComposeFailures int64 `json:"compose_failures,omitempty"`
}

func NewRunState() *RunState { return &RunState{} }

func (s *RunState) VisitStarted()   { atomic.AddInt64(&s.visitsStarted, 1) }
func (s *RunState) VisitCompleted() { atomic.AddInt64(&s.visitsCompleted, 1) }
func (s *RunState) VisitAbandoned() { atomic.AddInt64(&s.visitsAbandoned, 1) }
func (s *RunState) EventSent()      { atomic.AddInt64(&s.eventsSent, 1) }
func (s *RunState) EventFailed()    { atomic.AddInt64(&s.eventsFailed, 1) }
func (s *RunState) ComposeFailed()  { atomic.AddInt64(&s.composeFailures, 1) }

// VisitsStarted reports how many visits have begun so far.
func (s *RunState) VisitsStarted() int64 {
	return atomic.LoadInt64(&s.visitsStarted)
}

func (s *RunState) Snapshot() Snapshot {
	return Snapshot{
		VisitsStarted:   atomic.LoadInt64(&s.visitsStarted),
		VisitsCompleted: atomic.LoadInt64(&s.visitsCompleted),
		VisitsAbandoned: atomic.LoadInt64(&s.visitsAbandoned),
		EventsSent:      atomic.LoadInt64(&s.eventsSent),
		EventsFailed:    atomic.LoadInt64(&s.eventsFailed),
		ComposeFailures: atomic.LoadInt64(&s.composeFailures),
	}
}
