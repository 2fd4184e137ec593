package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the replay pipeline's counters.
type Metrics struct {
	InstructionsApplied *prometheus.CounterVec
	InstructionsFailed  *prometheus.CounterVec
	SwapsRejected       prometheus.Counter
	BinsCrossed         prometheus.Counter
	EventsWritten       prometheus.Counter
}

// New registers the replay counters with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InstructionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_instructions_applied_total",
			Help: "Instructions applied to the book, by kind",
		}, []string{"kind"}),
		InstructionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_instructions_failed_total",
			Help: "Instructions skipped as malformed or inapplicable, by kind",
		}, []string{"kind"}),
		SwapsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_swaps_rejected_total",
			Help: "Swaps rejected for insufficient liquidity",
		}),
		BinsCrossed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_bins_crossed_total",
			Help: "Bins crossed by executed swaps",
		}),
		EventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_events_written_total",
			Help: "Applied events written to storage",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.InstructionsApplied,
			m.InstructionsFailed,
			m.SwapsRejected,
			m.BinsCrossed,
			m.EventsWritten,
		)
	}
	return m
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
