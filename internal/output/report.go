// Package output renders run results: a live progress line while the
// generator runs and a final report, human-readable or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/gofrs/flock"

	"github.com/visitforge/visitforge/internal/engine"
	"github.com/visitforge/visitforge/internal/metrics"
	"github.com/visitforge/visitforge/internal/tracker"
)

// RunReport bundles everything the final report shows.
type RunReport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Elapsed     time.Duration         `json:"-"`
	ElapsedMs   float64               `json:"elapsed_ms"`
	TargetRate  float64               `json:"target_visits_per_sec"`
	Visits      engine.Snapshot       `json:"visits"`
	Hits        metrics.Stats         `json:"hits"`
	Targets     []tracker.TargetStats `json:"targets,omitempty"`
}

// NewRunReport assembles a report from a finished run.
func NewRunReport(result engine.Result, targetRate float64, hits metrics.Stats, targets []tracker.TargetStats) RunReport {
	return RunReport{
		GeneratedAt: time.Now(),
		Elapsed:     result.Elapsed,
		ElapsedMs:   float64(result.Elapsed) / float64(time.Millisecond),
		TargetRate:  targetRate,
		Visits:      result.Counters,
		Hits:        hits,
		Targets:     targets,
	}
}

// PrintReport writes the human-readable summary.
func PrintReport(w io.Writer, report RunReport) {
	header := color.New(color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	header.Fprintln(w, "\n--- Traffic Run Results ---")
	fmt.Fprintf(w, "Duration:          %s\n", report.Elapsed.Round(time.Millisecond))
	if report.TargetRate > 0 {
		fmt.Fprintf(w, "Target Rate:       %.3f visits/sec (%.0f/day)\n",
			report.TargetRate, report.TargetRate*86400)
	}

	v := report.Visits
	fmt.Fprintf(w, "Visits Started:    %d\n", v.VisitsStarted)
	good.Fprintf(w, "Visits Completed:  %d\n", v.VisitsCompleted)
	if v.VisitsAbandoned > 0 {
		warn.Fprintf(w, "Visits Abandoned:  %d\n", v.VisitsAbandoned)
	}
	if v.ComposeFailures > 0 {
		bad.Fprintf(w, "Compose Failures:  %d\n", v.ComposeFailures)
	}

	h := report.Hits
	header.Fprintln(w, "\nTracking Hits:")
	fmt.Fprintf(w, "  Total:           %d\n", h.Total)
	good.Fprintf(w, "  Successful:      %d\n", h.Successes)
	if h.Failures > 0 {
		bad.Fprintf(w, "  Failed:          %d\n", h.Failures)
	}
	fmt.Fprintf(w, "  Hits/sec:        %.2f\n", h.HitsPerSec)

	if h.Total > 0 {
		header.Fprintln(w, "\nLatency:")
		fmt.Fprintf(w, "  Min:             %s\n", h.MinLatency)
		fmt.Fprintf(w, "  Max:             %s\n", h.MaxLatency)
		fmt.Fprintf(w, "  Mean:            %s\n", h.MeanLatency)
		fmt.Fprintf(w, "  P50:             %s\n", h.P50Latency)
		fmt.Fprintf(w, "  P90:             %s\n", h.P90Latency)
		fmt.Fprintf(w, "  P99:             %s\n", h.P99Latency)
	}

	if len(h.ByKind) > 0 {
		header.Fprintln(w, "\nEvent Breakdown:")
		for _, kind := range []string{"pageview", "search", "outlink", "download"} {
			count, ok := h.ByKind[kind]
			if !ok {
				continue
			}
			line := fmt.Sprintf("  %-10s %d", kind+":", count)
			if failed := h.FailedByKind[kind]; failed > 0 {
				line += fmt.Sprintf(" (%d failed)", failed)
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(h.StatusCodes) > 0 {
		header.Fprintln(w, "\nError Status Codes:")
		for _, bucket := range h.StatusCodes {
			bad.Fprintf(w, "  %d %s: %d\n", bucket.Code, bucket.Label, bucket.Count)
		}
	}

	if len(h.Errors) > 0 {
		header.Fprintln(w, "\nErrors:")
		for errType, count := range h.Errors {
			bad.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorName(errType), count)
		}
	}

	if len(report.Targets) > 0 {
		header.Fprintln(w, "\nTargets:")
		for _, t := range report.Targets {
			line := fmt.Sprintf("  - %s: requests=%d, successes=%d, failures=%d",
				t.Name, t.Requests, t.Successes, t.Failures)
			if t.Successes > 0 {
				line += fmt.Sprintf(", avg=%s", t.AvgLatency.Round(time.Millisecond))
			}
			fmt.Fprintln(w, line)
			switch t.Health {
			case tracker.HealthHealthy:
				good.Fprintf(w, "    health: %s\n", t.Health)
			case tracker.HealthDegraded:
				warn.Fprintf(w, "    health: %s\n", t.Health)
			case tracker.HealthFailed:
				bad.Fprintf(w, "    health: %s\n", t.Health)
			default:
				fmt.Fprintf(w, "    health: %s\n", t.Health)
			}
		}
	}
}

// PrintJSONReport writes the report as indented JSON.
func PrintJSONReport(w io.Writer, report RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteReportFile writes the JSON report to path under an advisory file
// lock, so concurrent generator instances sharing a report path cannot
// interleave writes.
func WriteReportFile(path string, report RunReport) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("output: lock report file: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create report file: %w", err)
	}
	if err := PrintJSONReport(f, report); err != nil {
		_ = f.Close()
		return fmt.Errorf("output: write report file: %w", err)
	}
	return f.Close()
}
