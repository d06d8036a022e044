package engine_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/visitforge/visitforge/internal/config"
	"github.com/visitforge/visitforge/internal/engine"
	"github.com/visitforge/visitforge/internal/tracker"
	"github.com/visitforge/visitforge/internal/visit"
)

type fixedComposer struct {
	plan visit.Plan
}

func (f *fixedComposer) Compose() (*visit.Plan, error) {
	p := f.plan
	events := make([]visit.Event, len(f.plan.Events))
	copy(events, f.plan.Events)
	p.Events = events
	return &p, nil
}

type failingComposer struct{}

func (failingComposer) Compose() (*visit.Plan, error) {
	return nil, &visit.InvariantError{Reason: "empty catalog"}
}

type fakeSender struct {
	sent       int64
	inFlight   int64
	maxFlight  int64
	delay      time.Duration
	err        error
	lastParams atomic.Value
}

func (f *fakeSender) Send(ctx context.Context, hit tracker.Hit) error {
	current := atomic.AddInt64(&f.inFlight, 1)
	for {
		max := atomic.LoadInt64(&f.maxFlight)
		if current <= max || atomic.CompareAndSwapInt64(&f.maxFlight, max, current) {
			break
		}
	}
	defer atomic.AddInt64(&f.inFlight, -1)

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}
	atomic.AddInt64(&f.sent, 1)
	f.lastParams.Store(hit.Params)
	return f.err
}

func testConfig() *config.Config {
	return &config.Config{
		TargetURL:        "https://matomo.example.com",
		SiteID:           1,
		Concurrency:      4,
		MaxTotalVisits:   10,
		GracefulShutdown: time.Second,
		Seed:             11,
	}
}

func testRouter(t *testing.T) *tracker.Router {
	t.Helper()
	targets := []tracker.Target{{Name: "t", URL: "https://matomo.example.com", SiteID: 1, Weight: 1, Enabled: true}}
	router, err := tracker.NewRouter(targets, config.RoutingRoundRobin, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func shortPlan() visit.Plan {
	return visit.Plan{
		Events: []visit.Event{
			{Kind: visit.KindPageview, URL: "https://shop.example.com/"},
			{Kind: visit.KindPageview, URL: "https://shop.example.com/products/", Referrer: "https://shop.example.com/"},
		},
		UserAgent: "Mozilla/5.0 (test)",
	}
}

func TestEngineDispatchesExactlyMaxTotalVisits(t *testing.T) {
	sender := &fakeSender{}
	eng, err := engine.New(engine.Options{
		Config:   testConfig(),
		Composer: &fixedComposer{plan: shortPlan()},
		Router:   testRouter(t),
		Sender:   sender,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := eng.Run(context.Background())
	if result.Dispatched != 10 {
		t.Fatalf("dispatched = %d, want 10", result.Dispatched)
	}
	if result.Counters.VisitsCompleted != 10 {
		t.Errorf("completed = %d, want 10", result.Counters.VisitsCompleted)
	}
	if result.Counters.VisitsAbandoned != 0 {
		t.Errorf("abandoned = %d, want 0", result.Counters.VisitsAbandoned)
	}
	if got := atomic.LoadInt64(&sender.sent); got != 20 {
		t.Errorf("hits sent = %d, want 20 (2 per visit)", got)
	}
}

func TestEngineBoundsConcurrency(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 3
	cfg.MaxTotalVisits = 12
	sender := &fakeSender{delay: 20 * time.Millisecond}

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Composer: &fixedComposer{plan: shortPlan()},
		Router:   testRouter(t),
		Sender:   sender,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.Run(context.Background())

	if max := atomic.LoadInt64(&sender.maxFlight); max > 3 {
		t.Errorf("max in-flight sends = %d, want <= 3", max)
	}
}

func TestEngineFailedHitDoesNotAbandonVisit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalVisits = 1
	sender := &fakeSender{err: errors.New("status 500")}

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Composer: &fixedComposer{plan: shortPlan()},
		Router:   testRouter(t),
		Sender:   sender,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result := eng.Run(context.Background())

	if result.Counters.VisitsCompleted != 1 {
		t.Errorf("completed = %d, want 1", result.Counters.VisitsCompleted)
	}
	if result.Counters.EventsFailed != 2 {
		t.Errorf("events failed = %d, want 2", result.Counters.EventsFailed)
	}
	if result.Counters.EventsSent != 0 {
		t.Errorf("events sent = %d, want 0", result.Counters.EventsSent)
	}
}

func TestEngineComposeFailureCounted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalVisits = 3

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Composer: failingComposer{},
		Router:   testRouter(t),
		Sender:   &fakeSender{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result := eng.Run(context.Background())

	if result.Counters.ComposeFailures != 3 {
		t.Errorf("compose failures = %d, want 3", result.Counters.ComposeFailures)
	}
	if result.Counters.VisitsStarted != 0 {
		t.Errorf("visits started = %d, want 0", result.Counters.VisitsStarted)
	}
}

func TestEngineGracefulShutdownAbandonsLingeringVisits(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 2
	cfg.MaxTotalVisits = 2
	cfg.GracefulShutdown = 50 * time.Millisecond

	plan := shortPlan()
	plan.Dwell = 10 * time.Second

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Composer: &fixedComposer{plan: plan},
		Router:   testRouter(t),
		Sender:   &fakeSender{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result := eng.Run(ctx)
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("Run took %s, expected a bounded graceful shutdown", elapsed)
	}
	if result.Counters.VisitsAbandoned != 2 {
		t.Errorf("abandoned = %d, want 2", result.Counters.VisitsAbandoned)
	}
	if result.Counters.VisitsCompleted != 0 {
		t.Errorf("completed = %d, want 0", result.Counters.VisitsCompleted)
	}
}

// timestampSender records when each hit arrived so tests can assert that
// nothing was sent past a cutoff.
type timestampSender struct {
	mu    sync.Mutex
	times []time.Time
}

func (s *timestampSender) Send(ctx context.Context, hit tracker.Hit) error {
	s.mu.Lock()
	s.times = append(s.times, time.Now())
	s.mu.Unlock()
	return nil
}

func (s *timestampSender) sentAfter(cutoff time.Time) (after, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ts := range s.times {
		if ts.After(cutoff) {
			after++
		}
	}
	return after, len(s.times)
}

func TestEngineStopsEventDispatchOnCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 1
	cfg.MaxTotalVisits = 1
	cfg.GracefulShutdown = 500 * time.Millisecond

	events := make([]visit.Event, 40)
	for i := range events {
		events[i] = visit.Event{
			Kind:  visit.KindPageview,
			URL:   "https://shop.example.com/",
			Delay: 25 * time.Millisecond,
		}
	}
	plan := visit.Plan{Events: events, UserAgent: "Mozilla/5.0 (test)"}

	sender := &timestampSender{}
	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Composer: &fixedComposer{plan: plan},
		Router:   testRouter(t),
		Sender:   sender,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cutoff := make(chan time.Time, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		cutoff <- time.Now()
		cancel()
	}()

	result := eng.Run(ctx)

	// At most the one in-flight send may land past the cancellation; the
	// runner must not begin further events while the grace window runs.
	after, total := sender.sentAfter(<-cutoff)
	if after > 1 {
		t.Errorf("events sent after cancellation = %d (total %d), want at most 1", after, total)
	}
	if total >= 40 {
		t.Errorf("all %d events sent despite mid-visit cancellation", total)
	}
	if result.Counters.VisitsAbandoned != 1 {
		t.Errorf("abandoned = %d, want 1", result.Counters.VisitsAbandoned)
	}
}

func TestEngineCapStopHonorsGraceBound(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 2
	cfg.MaxTotalVisits = 2
	cfg.GracefulShutdown = 100 * time.Millisecond

	plan := shortPlan()
	plan.Dwell = 10 * time.Second

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Composer: &fixedComposer{plan: plan},
		Router:   testRouter(t),
		Sender:   &fakeSender{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	result := eng.Run(context.Background())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("Run took %s, expected the grace bound to cut long dwells", elapsed)
	}
	if result.Counters.VisitsAbandoned != 2 {
		t.Errorf("abandoned = %d, want 2", result.Counters.VisitsAbandoned)
	}
}

func TestEngineAutoStopAfter(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalVisits = 0
	cfg.AutoStopAfter = 150 * time.Millisecond
	cfg.GracefulShutdown = 50 * time.Millisecond
	cfg.TargetVisitsPerDay = 86400 * 20 // 20 visits/sec

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Composer: &fixedComposer{plan: shortPlan()},
		Router:   testRouter(t),
		Sender:   &fakeSender{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	result := eng.Run(context.Background())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("Run took %s, expected auto-stop", elapsed)
	}
	if result.Dispatched == 0 {
		t.Error("no visits dispatched before auto-stop")
	}
}

func TestPacerTargetRate(t *testing.T) {
	p := engine.NewPacer(86400, 10)
	if got := p.TargetRate(); got != 1 {
		t.Errorf("86400 visits/day rate = %v, want 1/sec", got)
	}
	if got := engine.NewPacer(0, 10).TargetRate(); got != 0 {
		t.Errorf("unlimited pacer rate = %v, want 0", got)
	}
}

func TestPacerSpacesDispatches(t *testing.T) {
	// 50/sec with a burst of 1 forces at least ~19ms between waits.
	p := engine.NewPacer(86400*50, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	elapsed := time.Since(start)
	// First token is immediate; the remaining 4 cost 20ms each.
	if elapsed < 60*time.Millisecond {
		t.Errorf("5 waits took %s, want at least 60ms", elapsed)
	}
}

func TestPacerWaitCancellation(t *testing.T) {
	p := engine.NewPacer(86400, 1) // 1/sec
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_ = p.Wait(ctx) // first token is free
	if err := p.Wait(ctx); err == nil {
		t.Fatal("second Wait returned before the token was due despite cancellation")
	}
}
