// Package metrics provides Prometheus-compatible metrics for saga runs.
//
// A Registry holds counters, gauges, and histograms. The Export method
// returns all metrics in Prometheus exposition format, suitable for
// scraping by Prometheus or compatible systems.
//
// The Collector wraps any trace.Tracer and automatically populates
// metrics from saga.stage trace spans. Per-stage run counts and
// durations are tracked without manual instrumentation; the token and
// cost counters grow only from spans that carry the stage.tokens and
// stage.cost_usd attributes, which the saga's stage runner does not set.
//
// Usage:
//
//	reg := metrics.NewRegistry()
//	collector := metrics.NewCollector(innerTracer, reg)
//
//	// Use collector as the run's tracer.
//	err := saga.RunFull(ctx, rc, providers, budgeter, collector)
//
//	// Export metrics for Prometheus
//	http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
//	    w.Header().Set("Content-Type", "text/plain; version=0.0.4")
//	    fmt.Fprint(w, reg.Export())
//	})
package metrics
