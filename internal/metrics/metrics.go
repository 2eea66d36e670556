package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_resolutions_total", Help: "Price resolutions by chain and route outcome"},
		[]string{"chain", "outcome"},
	)
	SnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pair_snapshots_total", Help: "Pair snapshots read by lifecycle state"},
		[]string{"state"},
	)
	QuotesWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "price_quotes_written_total", Help: "Price quotes written to storage"},
	)
)

func init() {
	prometheus.MustRegister(ResolutionsTotal, SnapshotsTotal, QuotesWrittenTotal)
}

func ObserveResolution(chainID uint64, outcome string) {
	ResolutionsTotal.WithLabelValues(strconv.FormatUint(chainID, 10), outcome).Inc()
}

func ObserveSnapshot(state string) {
	SnapshotsTotal.WithLabelValues(state).Inc()
}

// Serve binds addr and serves /metrics in the background. Bind failures are
// returned; later serve failures are logged.
func Serve(addr string, logger *zap.Logger) (*http.Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv, nil
}
