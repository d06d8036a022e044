// Package engine dispatches visits at the configured rate and drives each
// one through its event timeline on a bounded worker pool.
package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visitforge/visitforge/internal/config"
	"github.com/visitforge/visitforge/internal/metrics"
	"github.com/visitforge/visitforge/internal/tracker"
	"github.com/visitforge/visitforge/internal/visit"
)

// PlanSource produces visit plans. *visit.Composer is the production
// implementation; tests substitute fixed plans.
type PlanSource interface {
	Compose() (*visit.Plan, error)
}

// Tracer observes visit and event lifecycles. The finish callbacks take the
// outcome error; the headers returned by StartEvent are attached to the
// outgoing tracking request.
type Tracer interface {
	StartVisit(ctx context.Context, plan *visit.Plan, vc tracker.VisitContext) (context.Context, func(err error))
	StartEvent(ctx context.Context, evt visit.Event, index int) (context.Context, http.Header, func(err error))
}

type noopTracer struct{}

func (noopTracer) StartVisit(ctx context.Context, _ *visit.Plan, _ tracker.VisitContext) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (noopTracer) StartEvent(ctx context.Context, _ visit.Event, _ int) (context.Context, http.Header, func(error)) {
	return ctx, nil, func(error) {}
}

// Options configure an Engine. Config, Composer, Router and Sender are
// required; the rest default to working no-ops.
type Options struct {
	Config    *config.Config
	Composer  PlanSource
	Router    *tracker.Router
	Sender    tracker.Sender
	Collector *metrics.Collector
	State     *RunState
	Tracer    Tracer
	EventLog  *log.Logger // outlink/download hits, nil disables
}

// Result captures a finished run.
type Result struct {
	Dispatched int64
	Counters   Snapshot
	Elapsed    time.Duration
}

// Engine coordinates paced visit dispatch over a fixed worker pool.
type Engine struct {
	opt   Options
	pacer *Pacer
}

func New(opt Options) (*Engine, error) {
	if opt.Config == nil || opt.Composer == nil || opt.Router == nil || opt.Sender == nil {
		return nil, fmt.Errorf("engine: config, composer, router and sender are required")
	}
	if opt.Collector == nil {
		opt.Collector = metrics.NewCollector()
	}
	if opt.State == nil {
		opt.State = NewRunState()
	}
	if opt.Tracer == nil {
		opt.Tracer = noopTracer{}
	}
	return &Engine{
		opt:   opt,
		pacer: NewPacer(opt.Config.TargetVisitsPerDay, opt.Config.Concurrency),
	}, nil
}

// State exposes the live counters for progress reporting.
func (e *Engine) State() *RunState { return e.opt.State }

// TargetRate reports the pacing target in visits per second.
func (e *Engine) TargetRate() float64 { return e.pacer.TargetRate() }

// Run dispatches visits until ctx is cancelled, the auto-stop deadline
// passes, or the total-visit cap is reached. In-flight visits get the
// configured graceful-shutdown window before they are abandoned.
func (e *Engine) Run(ctx context.Context) Result {
	start := time.Now()
	cfg := e.opt.Config

	stopCtx, stopCancel := context.WithCancel(ctx)
	defer stopCancel()
	if cfg.AutoStopAfter > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(stopCtx, cfg.AutoStopAfter)
		stopCtx = deadlineCtx
		defer deadlineCancel()
	}

	// In-flight sends outlive the stop signal by the grace window, so they
	// run on their own context rather than stopCtx. stopping fires as soon
	// as a stop is requested: runners finish the send in progress but do
	// not begin another event.
	visitCtx, visitCancel := context.WithCancel(context.Background())
	defer visitCancel()
	stopping := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		close(stopping)
	}()

	var dispatched int64
	permits := make(chan struct{}, cfg.Concurrency)

	// Scheduler: serializes pacing so workers can never overshoot the
	// dispatch rate between them.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		defer close(permits)
		for {
			if stopCtx.Err() != nil {
				return
			}
			if cfg.MaxTotalVisits > 0 && atomic.LoadInt64(&dispatched) >= int64(cfg.MaxTotalVisits) {
				return
			}
			if err := e.pacer.Wait(stopCtx); err != nil {
				return
			}
			// Count before releasing the permit so workers only run
			// allocated visits.
			atomic.AddInt64(&dispatched, 1)
			select {
			case permits <- struct{}{}:
			case <-stopCtx.Done():
				atomic.AddInt64(&dispatched, -1)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for i := 0; i < cfg.Concurrency; i++ {
		rng := e.workerRand(i)
		go func() {
			defer wg.Done()
			for range permits {
				e.runVisit(visitCtx, stopping, rng)
			}
		}()
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	// Every stop trigger gets the same bounded drain: once dispatch ends,
	// in-flight visits may play out within the shutdown budget, after
	// which they are cancelled and counted abandoned.
	<-schedDone
	grace := time.NewTimer(cfg.GracefulShutdown)
	select {
	case <-workersDone:
		grace.Stop()
	case <-grace.C:
		visitCancel()
		<-workersDone
	}

	return Result{
		Dispatched: atomic.LoadInt64(&dispatched),
		Counters:   e.opt.State.Snapshot(),
		Elapsed:    time.Since(start),
	}
}

func (e *Engine) workerRand(worker int) *rand.Rand {
	seed := e.opt.Config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed + int64(worker)*7919))
}

// runVisit plays one composed visit end to end. A failed hit does not end
// the visit; a stop request or context cancellation abandons it at the next
// suspension point.
func (e *Engine) runVisit(ctx context.Context, stopping <-chan struct{}, rng *rand.Rand) {
	select {
	case <-stopping:
		return
	default:
	}

	plan, err := e.opt.Composer.Compose()
	if err != nil {
		e.opt.State.ComposeFailed()
		return
	}

	tgt := e.opt.Router.Next()
	vc := tracker.NewVisitContext(rng, plan.UserAgent, time.Now())

	e.opt.State.VisitStarted()
	visitSpanCtx, finishVisit := e.opt.Tracer.StartVisit(ctx, plan, vc)

	total := len(plan.Events)
	var lastErr error
	for i, evt := range plan.Events {
		if !e.sleep(ctx, stopping, evt.Delay) {
			finishVisit(ctx.Err())
			e.opt.State.VisitAbandoned()
			return
		}
		if err := e.sendEvent(visitSpanCtx, evt, i, total, vc, tgt); err != nil {
			lastErr = err
		}
	}
	if !e.sleep(ctx, stopping, plan.Dwell) {
		finishVisit(ctx.Err())
		e.opt.State.VisitAbandoned()
		return
	}

	finishVisit(lastErr)
	e.opt.State.VisitCompleted()
}

func (e *Engine) sendEvent(ctx context.Context, evt visit.Event, index, total int, vc tracker.VisitContext, tgt tracker.Target) error {
	params, err := tracker.BuildParams(evt, index, total, vc, tgt)
	if err != nil {
		e.opt.State.EventFailed()
		e.opt.Collector.RecordHit(evt.Kind, 0, err)
		return err
	}

	eventCtx, headers, finishEvent := e.opt.Tracer.StartEvent(ctx, evt, index)

	began := time.Now()
	err = e.opt.Sender.Send(eventCtx, tracker.Hit{
		Target:    tgt,
		Params:    params,
		UserAgent: vc.UserAgent,
		Headers:   headers,
	})
	latency := time.Since(began)

	finishEvent(err)
	e.opt.Collector.RecordHit(evt.Kind, latency, err)
	if err != nil {
		e.opt.State.EventFailed()
		e.opt.Router.RecordFailure(tgt.Name, err)
		return err
	}
	e.opt.State.EventSent()
	e.opt.Router.RecordSuccess(tgt.Name, latency)
	e.logEvent(vc, evt)
	return nil
}

func (e *Engine) logEvent(vc tracker.VisitContext, evt visit.Event) {
	if e.opt.EventLog == nil {
		return
	}
	switch evt.Kind {
	case visit.KindOutlink, visit.KindDownload:
		e.opt.EventLog.Printf("visit=%s %s %s", vc.VisitID, evt.Kind, evt.URL)
	}
}

// sleep waits d or reports false if ctx ended or a stop was requested
// first. Zero and negative durations return immediately.
func (e *Engine) sleep(ctx context.Context, stopping <-chan struct{}, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-stopping:
		return false
	default:
	}
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stopping:
		return false
	case <-timer.C:
		return true
	}
}
