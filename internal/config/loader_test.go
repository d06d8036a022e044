package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/visitforge/visitforge/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetVisitsPerDay != 20000 {
		t.Errorf("TargetVisitsPerDay = %v, want 20000", cfg.TargetVisitsPerDay)
	}
	if cfg.PageviewsMin != 3 || cfg.PageviewsMax != 6 {
		t.Errorf("pageview range = [%d,%d], want [3,6]", cfg.PageviewsMin, cfg.PageviewsMax)
	}
	if cfg.Concurrency != 50 {
		t.Errorf("Concurrency = %d, want 50", cfg.Concurrency)
	}
	if cfg.PauseMin != 500*time.Millisecond || cfg.PauseMax != 2*time.Second {
		t.Errorf("pause range = [%s,%s], want [500ms,2s]", cfg.PauseMin, cfg.PauseMax)
	}
	if cfg.GracefulShutdown != 5*time.Second {
		t.Errorf("GracefulShutdown = %s, want 5s", cfg.GracefulShutdown)
	}
	if cfg.Strategy != config.RoutingRoundRobin {
		t.Errorf("Strategy = %q, want round-robin", cfg.Strategy)
	}
}

func TestLoadFlagOverrides(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{
		"--target", "https://matomo.example.com/matomo.php",
		"--site-id", "7",
		"--visits-per-day", "500",
		"-c", "4",
		"--pageviews-min", "2",
		"--pageviews-max", "2",
		"--auto-stop-after", "90m",
		"-t", "100",
		"--json-output",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://matomo.example.com/matomo.php" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.SiteID != 7 {
		t.Errorf("SiteID = %d, want 7", cfg.SiteID)
	}
	if cfg.TargetVisitsPerDay != 500 {
		t.Errorf("TargetVisitsPerDay = %v, want 500", cfg.TargetVisitsPerDay)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.AutoStopAfter != 90*time.Minute {
		t.Errorf("AutoStopAfter = %s, want 90m", cfg.AutoStopAfter)
	}
	if cfg.MaxTotalVisits != 100 {
		t.Errorf("MaxTotalVisits = %d, want 100", cfg.MaxTotalVisits)
	}
	if !cfg.JSONOutput {
		t.Error("JSONOutput = false, want true")
	}
}

func TestLoadEnvFallbacks(t *testing.T) {
	t.Setenv("MATOMO_URL", "https://env.matomo.example.com/matomo.php")
	t.Setenv("MATOMO_SITE_ID", "3")
	t.Setenv("TARGET_VISITS_PER_DAY", "1234")
	t.Setenv("PAUSE_BETWEEN_PVS_MIN", "0.25")
	t.Setenv("PAUSE_BETWEEN_PVS_MAX", "1.5")
	t.Setenv("VISIT_DURATION_MIN", "2")
	t.Setenv("VISIT_DURATION_MAX", "4")
	t.Setenv("AUTO_STOP_AFTER_HOURS", "1.5")

	cfg, err := config.NewLoader().Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://env.matomo.example.com/matomo.php" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.SiteID != 3 {
		t.Errorf("SiteID = %d, want 3", cfg.SiteID)
	}
	if cfg.TargetVisitsPerDay != 1234 {
		t.Errorf("TargetVisitsPerDay = %v, want 1234", cfg.TargetVisitsPerDay)
	}
	if cfg.PauseMin != 250*time.Millisecond {
		t.Errorf("PauseMin = %s, want 250ms", cfg.PauseMin)
	}
	if cfg.PauseMax != 1500*time.Millisecond {
		t.Errorf("PauseMax = %s, want 1.5s", cfg.PauseMax)
	}
	if cfg.VisitDurationMin != 2*time.Minute || cfg.VisitDurationMax != 4*time.Minute {
		t.Errorf("visit duration range = [%s,%s], want [2m,4m]", cfg.VisitDurationMin, cfg.VisitDurationMax)
	}
	if cfg.AutoStopAfter != 90*time.Minute {
		t.Errorf("AutoStopAfter = %s, want 90m", cfg.AutoStopAfter)
	}
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("CONCURRENCY", "80")

	cfg, err := config.NewLoader().Load([]string{"-c", "12"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Concurrency != 12 {
		t.Errorf("Concurrency = %d, want flag value 12", cfg.Concurrency)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "visitforge.yaml")
	content := `
target: https://matomo.example.com/matomo.php
site_id: 5
visits_per_day: 8640
pageviews_min: 2
pageviews_max: 4
pause_min: 1s
pause_max: 3s
visit_duration_min: 30s
visit_duration_max: 2m
strategy: weighted
targets:
  - name: eu
    url: https://eu.matomo.example.com
    site_id: 1
    weight: 70
  - name: us
    url: https://us.matomo.example.com
    site_id: 2
    weight: 30
tracing:
  endpoint: collector:4317
  protocol: grpc
  sample_rate: 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SiteID != 5 {
		t.Errorf("SiteID = %d, want 5", cfg.SiteID)
	}
	if cfg.TargetVisitsPerDay != 8640 {
		t.Errorf("TargetVisitsPerDay = %v, want 8640", cfg.TargetVisitsPerDay)
	}
	if cfg.PauseMin != time.Second || cfg.PauseMax != 3*time.Second {
		t.Errorf("pause range = [%s,%s], want [1s,3s]", cfg.PauseMin, cfg.PauseMax)
	}
	if cfg.Strategy != config.RoutingWeighted {
		t.Errorf("Strategy = %q, want weighted", cfg.Strategy)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("Targets count = %d, want 2", len(cfg.Targets))
	}
	if cfg.Targets[0].Weight != 70 || !cfg.Targets[0].Enabled {
		t.Errorf("Targets[0] = %+v, want weight 70 enabled", cfg.Targets[0])
	}
	if cfg.Tracing.Endpoint != "collector:4317" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMultiTargetEnv(t *testing.T) {
	t.Setenv("MULTI_TARGET_CONFIG", `{
  "targets": [
    {"name": "EU Production", "url": "https://eu.matomo.example.com/", "site_id": 1, "weight": 70, "enabled": true},
    {"name": "US Standby", "url": "https://us.matomo.example.com", "site_id": 2, "weight": 30, "enabled": false}
  ],
  "distribution_strategy": "weighted"
}`)

	cfg, err := config.NewLoader().Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Targets) != 2 {
		t.Fatalf("Targets count = %d, want 2", len(cfg.Targets))
	}
	if cfg.Targets[0].URL != "https://eu.matomo.example.com" {
		t.Errorf("Targets[0].URL = %q, want trailing slash trimmed", cfg.Targets[0].URL)
	}
	if cfg.Targets[1].Enabled {
		t.Error("Targets[1].Enabled = true, want false")
	}
	if cfg.Strategy != config.RoutingWeighted {
		t.Errorf("Strategy = %q, want weighted", cfg.Strategy)
	}
}

func TestLoadMultiTargetEnvRejectsBadJSON(t *testing.T) {
	t.Setenv("MULTI_TARGET_CONFIG", "{not json")

	if _, err := config.NewLoader().Load([]string{}); err == nil {
		t.Fatal("Load() = nil, want JSON error")
	}
}
