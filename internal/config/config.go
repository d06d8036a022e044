package config

import (
	"fmt"
	"strings"
	"time"
)

// RoutingStrategy selects how visits are distributed across tracking targets.
type RoutingStrategy string

const (
	RoutingRoundRobin RoutingStrategy = "round-robin"
	RoutingWeighted   RoutingStrategy = "weighted"
	RoutingRandom     RoutingStrategy = "random"
)

// Config holds every knob of a traffic generation run. It is immutable after
// Load; the engine and its collaborators only ever read it.
type Config struct {
	TargetURL   string `mapstructure:"target"`
	SiteID      int    `mapstructure:"site_id"`
	TokenAuth   string `mapstructure:"token_auth"`
	CatalogFile string `mapstructure:"catalog"`

	TargetVisitsPerDay float64       `mapstructure:"visits_per_day"`
	PageviewsMin       int           `mapstructure:"pageviews_min"`
	PageviewsMax       int           `mapstructure:"pageviews_max"`
	Concurrency        int           `mapstructure:"concurrency"`
	PauseMin           time.Duration `mapstructure:"pause_min"`
	PauseMax           time.Duration `mapstructure:"pause_max"`
	VisitDurationMin   time.Duration `mapstructure:"visit_duration_min"`
	VisitDurationMax   time.Duration `mapstructure:"visit_duration_max"`

	SiteSearchProbability float64 `mapstructure:"site_search_probability"`
	OutlinksProbability   float64 `mapstructure:"outlinks_probability"`
	DownloadsProbability  float64 `mapstructure:"downloads_probability"`

	AutoStopAfter  time.Duration `mapstructure:"auto_stop_after"`
	MaxTotalVisits int           `mapstructure:"max_total_visits"`

	Timeout          time.Duration `mapstructure:"timeout"`
	GracefulShutdown time.Duration `mapstructure:"graceful_shutdown"`
	Seed             int64         `mapstructure:"seed"`

	JSONOutput bool   `mapstructure:"json_output"`
	Dashboard  bool   `mapstructure:"dashboard"`
	LogEvents  bool   `mapstructure:"log_events"`
	ReportFile string `mapstructure:"report_file"`
	ConfigFile string `mapstructure:"-"`

	Targets  []Target        `mapstructure:"targets"`
	Strategy RoutingStrategy `mapstructure:"strategy"`

	Tracing TracingConfig `mapstructure:"tracing"`
}

// Target describes one tracking endpoint for multi-target routing.
type Target struct {
	Name      string `mapstructure:"name"`
	URL       string `mapstructure:"url"`
	SiteID    int    `mapstructure:"site_id"`
	TokenAuth string `mapstructure:"token_auth"`
	Weight    int    `mapstructure:"weight"`
	Enabled   bool   `mapstructure:"enabled"`
}

// TracingConfig configures optional OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether tracing should be initialized at all.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers go onto tracking requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
}

// ValidationError aggregates every configuration problem found so a bad run
// fails once with the complete list instead of one issue at a time.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns a copy of the individual problems.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks every invariant the engine relies on. It must pass before
// any visit is dispatched.
func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" && len(enabledTargets(c.Targets)) == 0 {
		issues = append(issues, "target is required (or at least one enabled entry in targets)")
	}
	if strings.TrimSpace(c.TargetURL) != "" && c.SiteID < 1 {
		issues = append(issues, "site_id must be >= 1")
	}

	if c.TargetVisitsPerDay <= 0 {
		issues = append(issues, "visits_per_day must be > 0")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.PageviewsMin < 1 {
		issues = append(issues, "pageviews_min must be >= 1")
	}
	if c.PageviewsMax < c.PageviewsMin {
		issues = append(issues, "pageviews_max must be >= pageviews_min")
	}
	if c.PauseMin < 0 {
		issues = append(issues, "pause_min must be >= 0")
	}
	if c.PauseMax < c.PauseMin {
		issues = append(issues, "pause_max must be >= pause_min")
	}
	if c.VisitDurationMin < 0 {
		issues = append(issues, "visit_duration_min must be >= 0")
	}
	if c.VisitDurationMax < c.VisitDurationMin {
		issues = append(issues, "visit_duration_max must be >= visit_duration_min")
	}

	for name, p := range map[string]float64{
		"site_search_probability": c.SiteSearchProbability,
		"outlinks_probability":    c.OutlinksProbability,
		"downloads_probability":   c.DownloadsProbability,
	} {
		if p < 0 || p > 1 {
			issues = append(issues, fmt.Sprintf("%s must be within [0,1]", name))
		}
	}

	if c.AutoStopAfter < 0 {
		issues = append(issues, "auto_stop_after must be >= 0")
	}
	if c.MaxTotalVisits < 0 {
		issues = append(issues, "max_total_visits must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	issues = append(issues, validateTargets(c.Targets, c.Strategy)...)
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func enabledTargets(targets []Target) []Target {
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

func validateTargets(targets []Target, strategy RoutingStrategy) []string {
	var issues []string

	switch strategy {
	case "", RoutingRoundRobin, RoutingWeighted, RoutingRandom:
	default:
		issues = append(issues, fmt.Sprintf("strategy %q is not one of round-robin, weighted, random", strategy))
	}

	if len(targets) == 0 {
		return issues
	}
	if len(enabledTargets(targets)) == 0 {
		issues = append(issues, "targets: at least one target must be enabled")
	}
	for idx, t := range targets {
		label := t.Name
		if strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("index %d", idx)
		}
		if strings.TrimSpace(t.URL) == "" {
			issues = append(issues, fmt.Sprintf("targets[%s]: url is required", label))
		}
		if t.SiteID < 1 {
			issues = append(issues, fmt.Sprintf("targets[%s]: site_id must be >= 1", label))
		}
		if strategy == RoutingWeighted && t.Enabled && t.Weight < 1 {
			issues = append(issues, fmt.Sprintf("targets[%s]: weight must be >= 1 for weighted routing", label))
		}
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be within [0,1]")
	}
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol %q is not one of grpc, http", t.Protocol))
	}
	return issues
}
