// Package metrics aggregates tracking-hit statistics for a traffic run.
//
// The central [Collector] records one sample per tracking request: latency,
// the visit event kind it served, and the error outcome. Percentiles come
// from an HDR histogram spanning 1µs to 60s; failures are additionally
// bucketed by HTTP status code and by Go error type.
//
//	collector := metrics.NewCollector()
//	collector.RecordHit(visit.KindPageview, latency, err)
//	stats := collector.Stats(elapsed)
//
// RecordHit is safe for concurrent use; visit workers call it directly.
// Visit-level counters (started, completed, abandoned) are tracked by the
// engine, not here.
package metrics
