package tracker

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/visitforge/visitforge/internal/config"
)

// Target is one tracking endpoint visits can be routed to.
type Target struct {
	Name      string
	URL       string
	SiteID    int
	TokenAuth string
	Weight    int
	Enabled   bool
}

// TrackingURL returns the full tracking endpoint. Instance roots get the
// standard /matomo.php suffix; URLs that already point at a .php handler are
// used verbatim.
func (t Target) TrackingURL() string {
	trimmed := strings.TrimRight(t.URL, "/")
	if strings.HasSuffix(trimmed, ".php") {
		return trimmed
	}
	return trimmed + "/matomo.php"
}

// TargetHealth grades a target by its observed success rate.
type TargetHealth string

const (
	HealthUnknown  TargetHealth = "unknown"
	HealthHealthy  TargetHealth = "healthy"
	HealthDegraded TargetHealth = "degraded"
	HealthFailed   TargetHealth = "failed"
)

// TargetStats is a snapshot of one target's delivery record.
type TargetStats struct {
	Name       string        `json:"name"`
	Requests   int64         `json:"requests"`
	Successes  int64         `json:"successes"`
	Failures   int64         `json:"failures"`
	AvgLatency time.Duration `json:"-"`
	LastError  string        `json:"last_error,omitempty"`
	Health     TargetHealth  `json:"health"`

	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

type targetRecord struct {
	requests   int64
	successes  int64
	failures   int64
	sumLatency time.Duration
	lastError  string
}

func (r *targetRecord) health() TargetHealth {
	if r.requests == 0 {
		return HealthUnknown
	}
	rate := float64(r.successes) / float64(r.requests)
	switch {
	case rate >= 0.95:
		return HealthHealthy
	case rate >= 0.70:
		return HealthDegraded
	default:
		return HealthFailed
	}
}

// Router distributes visits across enabled targets and keeps per-target
// delivery tallies. A visit sticks to the target it was assigned; only the
// assignment itself is routed.
type Router struct {
	targets     []Target // enabled subset, routing order
	all         []Target // every configured target, declaration order
	strategy    config.RoutingStrategy
	totalWeight int

	mu      sync.Mutex
	next    int // round-robin cursor
	rnd     *rand.Rand
	records map[string]*targetRecord
}

// TargetsFromConfig normalizes configuration into routable targets: the
// multi-target table when present, otherwise the single configured endpoint.
func TargetsFromConfig(cfg *config.Config) []Target {
	if len(cfg.Targets) > 0 {
		targets := make([]Target, 0, len(cfg.Targets))
		for _, t := range cfg.Targets {
			name := t.Name
			if strings.TrimSpace(name) == "" {
				name = t.URL
			}
			targets = append(targets, Target{
				Name:      name,
				URL:       t.URL,
				SiteID:    t.SiteID,
				TokenAuth: t.TokenAuth,
				Weight:    t.Weight,
				Enabled:   t.Enabled,
			})
		}
		return targets
	}
	return []Target{{
		Name:      "default",
		URL:       cfg.TargetURL,
		SiteID:    cfg.SiteID,
		TokenAuth: cfg.TokenAuth,
		Weight:    1,
		Enabled:   true,
	}}
}

// NewRouter builds a router over the enabled subset of targets. A nil rng
// gets a time-based seed.
func NewRouter(targets []Target, strategy config.RoutingStrategy, rng *rand.Rand) (*Router, error) {
	enabled := make([]Target, 0, len(targets))
	records := make(map[string]*targetRecord, len(targets))
	for _, t := range targets {
		records[t.Name] = &targetRecord{}
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("tracker: at least one target must be enabled")
	}
	if strategy == "" {
		strategy = config.RoutingRoundRobin
	}

	total := 0
	for _, t := range enabled {
		if strategy == config.RoutingWeighted && t.Weight < 1 {
			return nil, fmt.Errorf("tracker: target %s: weight must be >= 1 for weighted routing", t.Name)
		}
		total += t.Weight
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Router{
		targets:     enabled,
		all:         targets,
		strategy:    strategy,
		totalWeight: total,
		rnd:         rng,
		records:     records,
	}, nil
}

// Next selects the target for the next visit.
func (r *Router) Next() Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.strategy {
	case config.RoutingWeighted:
		n := r.rnd.Intn(r.totalWeight)
		cumulative := 0
		for _, t := range r.targets {
			cumulative += t.Weight
			if n < cumulative {
				return t
			}
		}
		return r.targets[len(r.targets)-1]
	case config.RoutingRandom:
		return r.targets[r.rnd.Intn(len(r.targets))]
	default:
		t := r.targets[r.next%len(r.targets)]
		r.next++
		return t
	}
}

// RecordSuccess tallies one delivered hit for the target.
func (r *Router) RecordSuccess(name string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	if !ok {
		return
	}
	rec.requests++
	rec.successes++
	rec.sumLatency += latency
}

// RecordFailure tallies one failed hit for the target.
func (r *Router) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	if !ok {
		return
	}
	rec.requests++
	rec.failures++
	if err != nil {
		rec.lastError = err.Error()
	}
}

// Stats snapshots every configured target, enabled or not, in declaration
// order.
func (r *Router) Stats() []TargetStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]TargetStats, 0, len(r.all))
	seen := make(map[string]bool, len(r.all))
	for _, t := range r.all {
		rec := r.records[t.Name]
		if rec == nil || seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		s := TargetStats{
			Name:      t.Name,
			Requests:  rec.requests,
			Successes: rec.successes,
			Failures:  rec.failures,
			LastError: rec.lastError,
			Health:    rec.health(),
		}
		if rec.successes > 0 {
			s.AvgLatency = rec.sumLatency / time.Duration(rec.successes)
			s.AvgLatencyMs = float64(s.AvgLatency) / float64(time.Millisecond)
		}
		stats = append(stats, s)
	}
	return stats
}
