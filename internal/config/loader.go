package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

// Loader handles loading configuration from flags, files and the environment.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load produces a Config with flag > file > environment > default precedence.
// The environment spellings match the original container deployment, so an
// existing TARGET_VISITS_PER_DAY/PAGEVIEWS_MIN/... setup keeps working.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			_ = cmd.Help()
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			_ = cmd.Help()
			return nil, ErrHelpRequested
		}
	}

	cfg := &Config{
		SiteID:                1,
		TargetVisitsPerDay:    20000,
		PageviewsMin:          3,
		PageviewsMax:          6,
		Concurrency:           50,
		PauseMin:              500 * time.Millisecond,
		PauseMax:              2 * time.Second,
		VisitDurationMin:      time.Minute,
		VisitDurationMax:      8 * time.Minute,
		SiteSearchProbability: 0.15,
		OutlinksProbability:   0.10,
		DownloadsProbability:  0.08,
		Timeout:               30 * time.Second,
		GracefulShutdown:      5 * time.Second,
		Strategy:              RoutingRoundRobin,
		Tracing:               TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	applyEnvFallbacks(cfg)

	configPath := flagSet.Lookup("config").Value.String()
	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
			return nil, err
		}
		cfg.ConfigFile = configPath
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimRight(strings.TrimSpace(cfg.TargetURL), "/")
	cfg.CatalogFile = strings.TrimSpace(cfg.CatalogFile)

	if len(cfg.Targets) == 0 {
		targets, strategy, err := parseMultiTargetEnv(os.Getenv("MULTI_TARGET_CONFIG"))
		if err != nil {
			return nil, err
		}
		if len(targets) > 0 {
			cfg.Targets = targets
			if strategy != "" {
				cfg.Strategy = strategy
			}
		}
	}

	return cfg, nil
}

// applyEnvFallbacks reads the original deployment's environment variables.
// Pause values are seconds, visit durations minutes, auto-stop hours; that is
// the contract the Python generator documented and operators still rely on.
func applyEnvFallbacks(cfg *Config) {
	if v := os.Getenv("MATOMO_URL"); v != "" {
		cfg.TargetURL = v
	}
	envInt("MATOMO_SITE_ID", &cfg.SiteID)
	if v := os.Getenv("MATOMO_TOKEN_AUTH"); v != "" {
		cfg.TokenAuth = v
	}
	if v := os.Getenv("URLS_FILE"); v != "" {
		cfg.CatalogFile = v
	}
	envFloat("TARGET_VISITS_PER_DAY", &cfg.TargetVisitsPerDay)
	envInt("PAGEVIEWS_MIN", &cfg.PageviewsMin)
	envInt("PAGEVIEWS_MAX", &cfg.PageviewsMax)
	envInt("CONCURRENCY", &cfg.Concurrency)
	envSeconds("PAUSE_BETWEEN_PVS_MIN", &cfg.PauseMin)
	envSeconds("PAUSE_BETWEEN_PVS_MAX", &cfg.PauseMax)
	envMinutes("VISIT_DURATION_MIN", &cfg.VisitDurationMin)
	envMinutes("VISIT_DURATION_MAX", &cfg.VisitDurationMax)
	envFloat("SITESEARCH_PROBABILITY", &cfg.SiteSearchProbability)
	envFloat("OUTLINKS_PROBABILITY", &cfg.OutlinksProbability)
	envFloat("DOWNLOADS_PROBABILITY", &cfg.DownloadsProbability)
	envHours("AUTO_STOP_AFTER_HOURS", &cfg.AutoStopAfter)
	envInt("MAX_TOTAL_VISITS", &cfg.MaxTotalVisits)
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = parsed
		}
	}
}

func envFloat(name string, dst *float64) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = parsed
		}
	}
}

func envSeconds(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = time.Duration(parsed * float64(time.Second))
		}
	}
}

func envMinutes(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = time.Duration(parsed * float64(time.Minute))
		}
	}
}

func envHours(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = time.Duration(parsed * float64(time.Hour))
		}
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringFields := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.TargetURL, []string{"target", "matomo_url"}},
		{&cfg.TokenAuth, []string{"tokenauth", "token_auth", "token-auth"}},
		{&cfg.CatalogFile, []string{"catalog", "urls_file", "urls-file"}},
		{&cfg.ReportFile, []string{"reportfile", "report_file", "report-file"}},
	}
	for _, f := range stringFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}

	intFields := []struct {
		dst  *int
		keys []string
	}{
		{&cfg.SiteID, []string{"siteid", "site_id", "site-id"}},
		{&cfg.PageviewsMin, []string{"pageviewsmin", "pageviews_min", "pageviews-min"}},
		{&cfg.PageviewsMax, []string{"pageviewsmax", "pageviews_max", "pageviews-max"}},
		{&cfg.Concurrency, []string{"concurrency"}},
		{&cfg.MaxTotalVisits, []string{"maxtotalvisits", "max_total_visits", "max-total-visits"}},
	}
	for _, f := range intFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	floatFields := []struct {
		dst  *float64
		keys []string
	}{
		{&cfg.TargetVisitsPerDay, []string{"visitsperday", "visits_per_day", "visits-per-day"}},
		{&cfg.SiteSearchProbability, []string{"sitesearchprobability", "site_search_probability", "site-search-probability"}},
		{&cfg.OutlinksProbability, []string{"outlinksprobability", "outlinks_probability", "outlinks-probability"}},
		{&cfg.DownloadsProbability, []string{"downloadsprobability", "downloads_probability", "downloads-probability"}},
	}
	for _, f := range floatFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asFloat(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	durationFields := []struct {
		dst  *time.Duration
		keys []string
	}{
		{&cfg.PauseMin, []string{"pausemin", "pause_min", "pause-min"}},
		{&cfg.PauseMax, []string{"pausemax", "pause_max", "pause-max"}},
		{&cfg.VisitDurationMin, []string{"visitdurationmin", "visit_duration_min", "visit-duration-min"}},
		{&cfg.VisitDurationMax, []string{"visitdurationmax", "visit_duration_max", "visit-duration-max"}},
		{&cfg.AutoStopAfter, []string{"autostopafter", "auto_stop_after", "auto-stop-after"}},
		{&cfg.Timeout, []string{"timeout"}},
		{&cfg.GracefulShutdown, []string{"gracefulshutdown", "graceful_shutdown", "graceful-shutdown"}},
	}
	for _, f := range durationFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	boolFields := []struct {
		dst  *bool
		keys []string
	}{
		{&cfg.JSONOutput, []string{"jsonoutput", "json_output", "json-output"}},
		{&cfg.Dashboard, []string{"dashboard"}},
		{&cfg.LogEvents, []string{"logevents", "log_events", "log-events"}},
	}
	for _, f := range boolFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "strategy", "distribution_strategy", "distribution-strategy"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("strategy: %w", err)
		}
		if trimmed := strings.ToLower(strings.TrimSpace(val)); trimmed != "" {
			cfg.Strategy = RoutingStrategy(trimmed)
		}
	}

	if raw, ok := lookupSetting(settings, "targets"); ok {
		targets, err := parseTargets(raw)
		if err != nil {
			return fmt.Errorf("targets: %w", err)
		}
		cfg.Targets = targets
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTargets(value interface{}) ([]Target, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		target, err := buildTarget(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func buildTarget(settings map[string]interface{}) (Target, error) {
	target := Target{Weight: 1, Enabled: true}
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return Target{}, fmt.Errorf("name: %w", err)
		}
		target.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return Target{}, fmt.Errorf("url: %w", err)
		}
		target.URL = strings.TrimRight(strings.TrimSpace(val), "/")
	}
	if raw, ok := lookupSetting(settings, "siteid", "site_id", "site-id"); ok {
		val, err := asInt(raw)
		if err != nil {
			return Target{}, fmt.Errorf("site_id: %w", err)
		}
		target.SiteID = val
	}
	if raw, ok := lookupSetting(settings, "tokenauth", "token_auth", "token-auth"); ok {
		val, err := asString(raw)
		if err != nil {
			return Target{}, fmt.Errorf("token_auth: %w", err)
		}
		target.TokenAuth = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "weight"); ok {
		val, err := asInt(raw)
		if err != nil {
			return Target{}, fmt.Errorf("weight: %w", err)
		}
		target.Weight = val
	}
	if raw, ok := lookupSetting(settings, "enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return Target{}, fmt.Errorf("enabled: %w", err)
		}
		target.Enabled = val
	}
	return target, nil
}

func parseTracing(value interface{}) (TracingConfig, error) {
	tracing := TracingConfig{Protocol: "grpc", SampleRate: 1.0}
	if value == nil {
		return tracing, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tracing.Propagate = val
	}
	return tracing, nil
}

// parseMultiTargetEnv parses the MULTI_TARGET_CONFIG JSON document the
// original deployment used for multi-instance routing:
//
//	{"targets": [{"name": "...", "url": "...", "site_id": 1,
//	              "weight": 70, "enabled": true}, ...],
//	 "distribution_strategy": "weighted"}
func parseMultiTargetEnv(raw string) ([]Target, RoutingStrategy, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, "", nil
	}
	if !gjson.Valid(trimmed) {
		return nil, "", fmt.Errorf("MULTI_TARGET_CONFIG is not valid JSON")
	}

	doc := gjson.Parse(trimmed)
	var targets []Target
	for _, entry := range doc.Get("targets").Array() {
		target := Target{
			Name:      strings.TrimSpace(entry.Get("name").String()),
			URL:       strings.TrimRight(strings.TrimSpace(entry.Get("url").String()), "/"),
			SiteID:    int(entry.Get("site_id").Int()),
			TokenAuth: entry.Get("token_auth").String(),
			Weight:    1,
			Enabled:   true,
		}
		if weight := entry.Get("weight"); weight.Exists() {
			target.Weight = int(weight.Int())
		}
		if enabled := entry.Get("enabled"); enabled.Exists() {
			target.Enabled = enabled.Bool()
		}
		targets = append(targets, target)
	}

	strategy := RoutingStrategy(strings.ToLower(strings.TrimSpace(doc.Get("distribution_strategy").String())))
	return targets, strategy, nil
}
