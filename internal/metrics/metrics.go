// Package metrics defines the Prometheus collectors the pipeline updates
// and the HTTP endpoint that exposes them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "boardscribe"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// frames counts processed frames by result kind.
	// Labels: kind (board_not_found, position_unchanged, ...)
	frames *prometheus.CounterVec

	// decisions counts validator decisions.
	// Labels: decision (initial, unchanged, accepted, retained, blocked, resync, desync)
	decisions *prometheus.CounterVec

	moves       prometheus.Counter
	desyncs     prometheus.Counter
	ambiguities prometheus.Counter
	boardLost   prometheus.Counter

	frameDuration    prometheus.Histogram
	squareConfidence prometheus.Histogram
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "frames_total",
			Help:      "Processed frames by result kind",
		}, []string{"kind"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "decisions_total",
			Help:      "Position validation decisions",
		}, []string{"decision"}),
		moves: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "moves_committed_total",
			Help:      "Moves committed to games",
		}),
		desyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "desyncs_total",
			Help:      "Readings left unexplained past the retry budget, resynced or not",
		}),
		ambiguities: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "ambiguous_moves_total",
			Help:      "Commits that needed the tie-break",
		}),
		boardLost: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "locator",
			Name:      "board_lost_total",
			Help:      "Times the board was declared lost",
		}),
		frameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "frame_duration_seconds",
			Help:      "Time to process one frame",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		squareConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "mean_square_confidence",
			Help:      "Mean classifier confidence per extracted frame",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
		}),
	}
}

// ObserveFrame records one processed frame
func (m *Metrics) ObserveFrame(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind).Inc()
	m.frameDuration.Observe(d.Seconds())
}

// ObserveDecision records a validator decision
func (m *Metrics) ObserveDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
	if decision == "resync" || decision == "desync" {
		m.desyncs.Inc()
	}
}

// ObserveMove records a committed move
func (m *Metrics) ObserveMove(ambiguous bool) {
	if m == nil {
		return
	}
	m.moves.Inc()
	if ambiguous {
		m.ambiguities.Inc()
	}
}

// ObserveBoardLost records a lost board
func (m *Metrics) ObserveBoardLost() {
	if m == nil {
		return
	}
	m.boardLost.Inc()
}

// ObserveConfidence records the mean square confidence of an extraction
func (m *Metrics) ObserveConfidence(c float64) {
	if m == nil {
		return
	}
	m.squareConfidence.Observe(c)
}

// Handler serves g under /metrics. With profiling set, the pprof handlers
// are mounted under /debug/pprof/ as well.
func Handler(g prometheus.Gatherer, profiling bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	if profiling {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// Serve exposes Handler(g, profiling) on addr until ctx is done
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, profiling bool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := Handler(g, profiling)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics endpoint listening", zap.String("addr", addr), zap.Bool("pprof", profiling))
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
