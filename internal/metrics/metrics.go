// Package metrics exposes prometheus counters and histograms for index runs.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codegraph"

var (
	// runsTotal counts update-engine runs.
	// Labels: mode (full, incremental), state (Committed, Staged, Aborted)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total index runs by mode and final state",
	}, []string{"mode", "state"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Index run latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"mode"})

	// phaseDuration measures each state of a run.
	// Labels: phase (diff, extract, resolve, stage, commit)
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "phase_duration_seconds",
		Help:      "Time spent per pipeline phase in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"phase"})

	// filesTotal counts files by diff class.
	// Labels: class (added, modified, deleted, renamed, unchanged)
	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "files_total",
		Help:      "Files seen by index runs, by change class",
	}, []string{"class"})

	// edgesTotal counts resolver outcomes.
	// Labels: confidence (resolved, ambiguous, unresolved)
	edgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolve",
		Name:      "edges_total",
		Help:      "Relationship candidates by resolution outcome",
	}, []string{"confidence"})

	// warningsTotal counts per-file diagnostics.
	// Labels: kind (UnsupportedLanguage, ParseFailure, DiffUnavailable, ...)
	warningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "warnings_total",
		Help:      "Non-fatal diagnostics raised during runs",
	}, []string{"kind"})

	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "requests_total",
		Help:      "Query requests by operation and status",
	}, []string{"op", "status"})
)

// RecordRun records a finished run.
func RecordRun(mode, state string, d time.Duration) {
	runsTotal.WithLabelValues(mode, state).Inc()
	runDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObservePhase records the duration of one pipeline phase.
func ObservePhase(phase string, d time.Duration) {
	phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// AddFiles adds n files of a change class.
func AddFiles(class string, n int) {
	if n > 0 {
		filesTotal.WithLabelValues(class).Add(float64(n))
	}
}

// AddEdges adds n edges with a resolution outcome.
func AddEdges(confidence string, n int) {
	if n > 0 {
		edgesTotal.WithLabelValues(confidence).Add(float64(n))
	}
}

// RecordWarning counts one diagnostic of the given kind.
func RecordWarning(kind string) {
	warningsTotal.WithLabelValues(kind).Inc()
}

// RecordQuery counts one query request.
func RecordQuery(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	queriesTotal.WithLabelValues(op, status).Inc()
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
