package output_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/visitforge/visitforge/internal/engine"
	"github.com/visitforge/visitforge/internal/metrics"
	"github.com/visitforge/visitforge/internal/output"
	"github.com/visitforge/visitforge/internal/tracker"
	"github.com/visitforge/visitforge/internal/visit"
)

func sampleReport() output.RunReport {
	collector := metrics.NewCollector()
	collector.RecordHit(visit.KindPageview, 12*time.Millisecond, nil)
	collector.RecordHit(visit.KindPageview, 18*time.Millisecond, nil)
	collector.RecordHit(visit.KindOutlink, 25*time.Millisecond, nil)
	collector.RecordHit(visit.KindDownload, 40*time.Millisecond, &tracker.HTTPError{StatusCode: 503})

	result := engine.Result{
		Dispatched: 2,
		Counters: engine.Snapshot{
			VisitsStarted:   2,
			VisitsCompleted: 1,
			VisitsAbandoned: 1,
			EventsSent:      3,
			EventsFailed:    1,
		},
		Elapsed: 3 * time.Second,
	}
	targets := []tracker.TargetStats{
		{Name: "primary", Requests: 4, Successes: 3, Failures: 1, Health: tracker.HealthDegraded},
	}
	return output.NewRunReport(result, 0.25, collector.Stats(result.Elapsed), targets)
}

func TestPrintReportSections(t *testing.T) {
	var buf bytes.Buffer
	output.PrintReport(&buf, sampleReport())
	out := buf.String()

	for _, want := range []string{
		"Traffic Run Results",
		"Visits Started:    2",
		"Visits Completed:  1",
		"Visits Abandoned:  1",
		"Tracking Hits:",
		"pageview:",
		"503 Service Unavailable: 1",
		"primary: requests=4",
		"health: degraded",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := output.PrintJSONReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintJSONReport: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	visits, ok := decoded["visits"].(map[string]any)
	if !ok {
		t.Fatalf("missing visits object: %v", decoded)
	}
	if visits["visits_completed"].(float64) != 1 {
		t.Errorf("visits_completed = %v", visits["visits_completed"])
	}
	if decoded["target_visits_per_sec"].(float64) != 0.25 {
		t.Errorf("target_visits_per_sec = %v", decoded["target_visits_per_sec"])
	}
}

func TestWriteReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := output.WriteReportFile(path, sampleReport()); err != nil {
		t.Fatalf("WriteReportFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded output.RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON on disk: %v", err)
	}
	if decoded.Visits.VisitsStarted != 2 {
		t.Errorf("visits started = %d", decoded.Visits.VisitsStarted)
	}
}

func TestProgressReporterWritesAndStops(t *testing.T) {
	state := engine.NewRunState()
	state.VisitStarted()
	state.VisitStarted()
	state.VisitCompleted()
	collector := metrics.NewCollector()
	collector.RecordHit(visit.KindPageview, 5*time.Millisecond, nil)

	var buf bytes.Buffer
	reporter := output.NewProgressReporter(state, collector, 10*time.Millisecond, &buf)
	reporter.Start()
	time.Sleep(50 * time.Millisecond)
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "Visits: 2 started, 1 done") {
		t.Errorf("progress line = %q", out)
	}
	if !strings.Contains(out, "Hits: 1") {
		t.Errorf("progress line missing hits: %q", out)
	}

	// Stop is idempotent.
	reporter.Stop()
}
