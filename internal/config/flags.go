package config

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "visitforge",
		Short:         "Synthesizes realistic analytics traffic against a Matomo tracking endpoint",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Tracking endpoint
	flags.String("target", "", "Tracking endpoint URL (e.g. https://matomo.example.com/matomo.php)")
	flags.Int("site-id", 1, "Matomo site id to attribute visits to")
	flags.String("token-auth", "", "Optional token_auth appended to tracking requests")
	flags.String("catalog", "", "Path to URL catalog file (YAML hierarchy or flat URL list)")

	// Traffic shape
	flags.Float64("visits-per-day", 20000, "Target visit rate expressed as visits per day")
	flags.Int("pageviews-min", 3, "Minimum pageviews per visit")
	flags.Int("pageviews-max", 6, "Maximum pageviews per visit")
	flags.IntP("concurrency", "c", 50, "Maximum number of visits running concurrently")
	flags.Duration("pause-min", 500*time.Millisecond, "Minimum pause between events of one visit")
	flags.Duration("pause-max", 2*time.Second, "Maximum pause between events of one visit")
	flags.Duration("visit-duration-min", time.Minute, "Minimum total visit duration")
	flags.Duration("visit-duration-max", 8*time.Minute, "Maximum total visit duration")
	flags.Float64("search-probability", 0.15, "Probability a visit performs a site search")
	flags.Float64("outlinks-probability", 0.10, "Probability a visit clicks an outlink")
	flags.Float64("downloads-probability", 0.08, "Probability a visit triggers a download")

	// Stop conditions and shutdown
	flags.Duration("auto-stop-after", 0, "Stop after this much wall time (0 means run until signalled)")
	flags.IntP("max-total-visits", "t", 0, "Stop after dispatching this many visits (0 means unlimited)")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout for tracking calls")
	flags.Duration("graceful-shutdown", 5*time.Second, "Max time to wait for in-flight visits on shutdown")
	flags.Int64("seed", 0, "Random seed for visit composition (0 means time-based)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted final report")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-events", false, "Log outlink and download hits to stderr")
	flags.String("report-file", "", "Write the JSON report to the given file")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Multi-target routing
	flags.String("strategy", string(RoutingRoundRobin), "Target routing strategy: round-robin, weighted or random")

	// Tracing flags
	flags.String("otlp-endpoint", "", "OTLP endpoint for visit tracing (empty disables tracing)")
	flags.String("otlp-protocol", "grpc", "OTLP transport: grpc or http")
	flags.String("trace-service-name", "", "Service name reported on trace spans")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling ratio in [0,1]")
	flags.Bool("trace-insecure", false, "Skip TLS for the OTLP exporter")
	flags.Bool("trace-propagate", false, "Inject W3C trace context into tracking requests")
}
