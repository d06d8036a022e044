package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// applyFlagOverrides copies every flag the user set explicitly onto the
// config. Flags win over both the config file and the environment.
func applyFlagOverrides(cfg *Config, flags *pflag.FlagSet) error {
	stringFlags := []struct {
		name string
		dst  *string
	}{
		{"target", &cfg.TargetURL},
		{"token-auth", &cfg.TokenAuth},
		{"catalog", &cfg.CatalogFile},
		{"report-file", &cfg.ReportFile},
	}
	for _, f := range stringFlags {
		if flags.Changed(f.name) {
			val, err := flags.GetString(f.name)
			if err != nil {
				return err
			}
			*f.dst = strings.TrimSpace(val)
		}
	}

	intFlags := []struct {
		name string
		dst  *int
	}{
		{"site-id", &cfg.SiteID},
		{"pageviews-min", &cfg.PageviewsMin},
		{"pageviews-max", &cfg.PageviewsMax},
		{"concurrency", &cfg.Concurrency},
		{"max-total-visits", &cfg.MaxTotalVisits},
	}
	for _, f := range intFlags {
		if flags.Changed(f.name) {
			val, err := flags.GetInt(f.name)
			if err != nil {
				return err
			}
			*f.dst = val
		}
	}

	floatFlags := []struct {
		name string
		dst  *float64
	}{
		{"visits-per-day", &cfg.TargetVisitsPerDay},
		{"search-probability", &cfg.SiteSearchProbability},
		{"outlinks-probability", &cfg.OutlinksProbability},
		{"downloads-probability", &cfg.DownloadsProbability},
		{"trace-sample-rate", &cfg.Tracing.SampleRate},
	}
	for _, f := range floatFlags {
		if flags.Changed(f.name) {
			val, err := flags.GetFloat64(f.name)
			if err != nil {
				return err
			}
			*f.dst = val
		}
	}

	durationFlags := []struct {
		name string
		dst  *time.Duration
	}{
		{"pause-min", &cfg.PauseMin},
		{"pause-max", &cfg.PauseMax},
		{"visit-duration-min", &cfg.VisitDurationMin},
		{"visit-duration-max", &cfg.VisitDurationMax},
		{"auto-stop-after", &cfg.AutoStopAfter},
		{"timeout", &cfg.Timeout},
		{"graceful-shutdown", &cfg.GracefulShutdown},
	}
	for _, f := range durationFlags {
		if flags.Changed(f.name) {
			val, err := flags.GetDuration(f.name)
			if err != nil {
				return err
			}
			*f.dst = val
		}
	}

	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"json-output", &cfg.JSONOutput},
		{"dashboard", &cfg.Dashboard},
		{"log-events", &cfg.LogEvents},
		{"trace-insecure", &cfg.Tracing.Insecure},
		{"trace-propagate", &cfg.Tracing.Propagate},
	}
	for _, f := range boolFlags {
		if flags.Changed(f.name) {
			val, err := flags.GetBool(f.name)
			if err != nil {
				return err
			}
			*f.dst = val
		}
	}

	if flags.Changed("seed") {
		val, err := flags.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if flags.Changed("strategy") {
		val, err := flags.GetString("strategy")
		if err != nil {
			return err
		}
		cfg.Strategy = RoutingStrategy(strings.ToLower(strings.TrimSpace(val)))
	}

	traceStrings := []struct {
		name string
		dst  *string
	}{
		{"otlp-endpoint", &cfg.Tracing.Endpoint},
		{"otlp-protocol", &cfg.Tracing.Protocol},
		{"trace-service-name", &cfg.Tracing.ServiceName},
	}
	for _, f := range traceStrings {
		if flags.Changed(f.name) {
			val, err := flags.GetString(f.name)
			if err != nil {
				return err
			}
			*f.dst = strings.TrimSpace(val)
		}
	}
	if flags.Changed("otlp-protocol") {
		cfg.Tracing.Protocol = strings.ToLower(cfg.Tracing.Protocol)
	}

	return nil
}
