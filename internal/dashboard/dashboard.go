// Package dashboard renders a live terminal UI for a running traffic
// generation session.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/visitforge/visitforge/internal/engine"
	"github.com/visitforge/visitforge/internal/metrics"
	"github.com/visitforge/visitforge/internal/tracker"
)

// RunConfig holds the run parameters shown in the summary panel.
type RunConfig struct {
	TargetURL      string
	Concurrency    int
	VisitsPerDay   float64
	MaxTotalVisits int
	AutoStopAfter  time.Duration
	Timeout        time.Duration
	Strategy       string
	ConfigFile     string
}

// Dashboard renders live visit and hit metrics with termui.
type Dashboard struct {
	state        *engine.RunState
	collector    *metrics.Collector
	router       *tracker.Router
	shutdownFunc func()
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	rateGauge      *widgets.Gauge
	errorList      *widgets.List
	targetList     *widgets.List
	summaryPara    *widgets.Paragraph
	visitsPara     *widgets.Paragraph
	latencyHistory []float64
	startTime      time.Time
	runDuration    time.Duration
	runConfig      RunConfig
}

// New creates a new Dashboard. shutdownFunc is invoked when the user quits
// with q or Ctrl-C.
func New(state *engine.RunState, collector *metrics.Collector, router *tracker.Router, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		state:          state,
		collector:      collector,
		router:         router,
		shutdownFunc:   shutdownFunc,
		ctx:            ctx,
		cancel:         cancel,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		runConfig:      cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.rateGauge = widgets.NewGauge()
	d.rateGauge.Title = "Visit Rate vs Daily Target"
	d.rateGauge.Percent = 0
	d.rateGauge.BarColor = ui.ColorBlue
	d.rateGauge.BorderStyle.Fg = ui.ColorCyan
	d.rateGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Failures"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.targetList = widgets.NewList()
	d.targetList.Title = "Targets"
	d.targetList.Rows = []string{"Awaiting data"}
	d.targetList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.targetList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.visitsPara = widgets.NewParagraph()
	d.visitsPara.Title = "Visits"
	d.visitsPara.Text = "Waiting for data..."
	d.visitsPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.20,
			ui.NewCol(0.5, d.rateGauge),
			ui.NewCol(0.5, d.visitsPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.34,
			ui.NewCol(0.5, d.targetList),
			ui.NewCol(0.5, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.runDuration = time.Since(d.startTime)
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// FinalStats returns hit statistics for the dashboard's lifetime.
func (d *Dashboard) FinalStats() metrics.Stats {
	return d.collector.Stats(d.runDuration)
}

func (d *Dashboard) run() {
	defer d.wg.Done()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the live counters.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats(elapsed)
	snap := d.state.Snapshot()

	if stats.MeanLatency > 0 {
		latencyMs := stats.MeanLatencyMs
		d.latencyHistory = append(d.latencyHistory, latencyMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Real-time Latency | Current: %.2fms | Min: %.2fms | Max: %.2fms",
			latencyMs,
			stats.MinLatencyMs,
			stats.MaxLatencyMs,
		)
	}

	visitRate := 0.0
	if elapsed > 0 {
		visitRate = float64(snap.VisitsStarted) / elapsed.Seconds()
	}
	targetRate := d.runConfig.VisitsPerDay / 86400
	if targetRate > 0 {
		percent := int((visitRate / targetRate) * 100)
		if percent > 100 {
			percent = 100
		}
		d.rateGauge.Percent = percent
		d.rateGauge.Label = fmt.Sprintf("%.3f/s of %.3f/s target", visitRate, targetRate)
	} else {
		d.rateGauge.Percent = 100
		d.rateGauge.Label = fmt.Sprintf("%.3f visits/s (unpaced)", visitRate)
	}

	successRate := 0.0
	if stats.Total > 0 {
		successRate = (float64(stats.Successes) / float64(stats.Total)) * 100
	}

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Hits: %d | Success Rate: %.1f%%",
		d.runConfig.TargetURL,
		d.formatRunParams(),
		elapsed.Round(time.Second),
		stats.Total,
		successRate,
	)

	inFlight := snap.VisitsStarted - snap.VisitsCompleted - snap.VisitsAbandoned
	d.visitsPara.Text = fmt.Sprintf(
		"Started:           %d\nCompleted:         %d\nAbandoned:         %d\nIn Flight:         %d\nEvents Sent:       %d\nEvents Failed:     %d\nHits/sec:          %.2f",
		snap.VisitsStarted,
		snap.VisitsCompleted,
		snap.VisitsAbandoned,
		inFlight,
		snap.EventsSent,
		snap.EventsFailed,
		stats.HitsPerSec,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms",
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P90LatencyMs,
		stats.P99LatencyMs,
	)

	d.errorList.Rows = formatFailureRows(stats)
	d.targetList.Rows = formatTargetRows(d.router.Stats())
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func formatTargetRows(stats []tracker.TargetStats) []string {
	if len(stats) == 0 {
		return []string{"[No target data](fg:green)"}
	}
	rows := make([]string, 0, len(stats))
	for _, t := range stats {
		color := "green"
		switch t.Health {
		case tracker.HealthDegraded:
			color = "yellow"
		case tracker.HealthFailed:
			color = "red"
		case tracker.HealthUnknown:
			color = "white"
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:cyan) | reqs %d | fail %d | avg %5.1fms | [%s](fg:%s)",
			t.Name,
			t.Requests,
			t.Failures,
			t.AvgLatencyMs,
			t.Health,
			color,
		))
	}
	return rows
}

func formatFailureRows(stats metrics.Stats) []string {
	if stats.Failures == 0 {
		return []string{"[No failures](fg:green)"}
	}
	rows := make([]string, 0, len(stats.StatusCodes)+len(stats.Errors))
	for _, bucket := range stats.StatusCodes {
		rows = append(rows, fmt.Sprintf("[HTTP %d %s](fg:red) %d", bucket.Code, bucket.Label, bucket.Count))
	}
	for errType, count := range stats.Errors {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", metrics.FriendlyErrorName(errType), count))
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}
	return rows
}

// formatRunParams formats the run configuration for the summary panel.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.runConfig.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", d.runConfig.Concurrency))
	}
	if d.runConfig.VisitsPerDay > 0 {
		parts = append(parts, fmt.Sprintf("Target: %.0f visits/day", d.runConfig.VisitsPerDay))
	} else {
		parts = append(parts, "Target: unpaced")
	}
	if d.runConfig.MaxTotalVisits > 0 {
		parts = append(parts, fmt.Sprintf("Cap: %d visits", d.runConfig.MaxTotalVisits))
	}
	if d.runConfig.AutoStopAfter > 0 {
		parts = append(parts, fmt.Sprintf("Auto-stop: %s", d.runConfig.AutoStopAfter))
	}
	if d.runConfig.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.runConfig.Timeout))
	}
	if d.runConfig.Strategy != "" && d.runConfig.Strategy != "round-robin" {
		parts = append(parts, fmt.Sprintf("Routing: %s", d.runConfig.Strategy))
	}
	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, " | ")
}
