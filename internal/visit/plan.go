// Package visit models one simulated user session: an ordered, timed sequence
// of tracked events composed ahead of execution.
package visit

import (
	"fmt"
	"time"
)

// Kind identifies one trackable action within a visit.
type Kind string

const (
	KindPageview Kind = "pageview"
	KindSearch   Kind = "search"
	KindOutlink  Kind = "outlink"
	KindDownload Kind = "download"
)

// Event is one trackable action. URL carries the page URL for pageviews and
// searches, and the clicked target for outlinks and downloads (possibly a
// site-relative path for downloads; resolution happens at request build time).
type Event struct {
	Kind     Kind
	URL      string
	Referrer string
	Delay    time.Duration // pause before this event fires

	// Search payload, sampled at compose time so request building stays pure.
	SearchTerm     string
	SearchCategory string
	SearchCount    int
}

// Plan is a fully composed visit: events in firing order plus the trailing
// dwell that pads the visit out to its sampled total duration. A plan is
// consumed by exactly one runner and never shared.
type Plan struct {
	Events      []Event
	Dwell       time.Duration
	Duration    time.Duration // sampled target duration for the whole visit
	Category    string
	Subcategory string
	UserAgent   string
}

// InvariantError reports a malformed plan. It signals a programming error in
// composition, not a recoverable runtime condition.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("visit plan invariant violated: %s", e.Reason)
}

// Validate checks the structural invariants every composed plan must satisfy.
func (p *Plan) Validate() error {
	if len(p.Events) == 0 {
		return &InvariantError{Reason: "plan has no events"}
	}
	if len(p.Events) > 1 && p.Events[0].Kind != KindPageview {
		return &InvariantError{Reason: fmt.Sprintf("%s event at index 0", p.Events[0].Kind)}
	}
	var delays time.Duration
	for i, evt := range p.Events {
		if evt.Delay < 0 {
			return &InvariantError{Reason: fmt.Sprintf("negative delay at index %d", i)}
		}
		delays += evt.Delay
		switch evt.Kind {
		case KindOutlink, KindDownload:
			if len(p.Events) > 1 && evt.Referrer == "" {
				return &InvariantError{Reason: fmt.Sprintf("%s at index %d has no referrer", evt.Kind, i)}
			}
		case KindSearch:
			if evt.SearchTerm == "" {
				return &InvariantError{Reason: fmt.Sprintf("search at index %d has no term", i)}
			}
		}
	}
	if p.Dwell < 0 {
		return &InvariantError{Reason: "negative dwell"}
	}
	if delays <= p.Duration && delays+p.Dwell != p.Duration {
		return &InvariantError{Reason: "delays plus dwell do not sum to the visit duration"}
	}
	if delays > p.Duration && p.Dwell != 0 {
		return &InvariantError{Reason: "dwell not clamped to zero"}
	}
	return nil
}

// Pageviews counts the pageview events in the plan.
func (p *Plan) Pageviews() int {
	n := 0
	for _, evt := range p.Events {
		if evt.Kind == KindPageview {
			n++
		}
	}
	return n
}
