package sessions

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

var (
	// operationsTotal counts manager operations by operation and result.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessions_operations_total",
		Help: "Total session manager operations by operation and result",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sessions_operation_duration_seconds",
		Help:    "Session manager operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"operation"})

	recordsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_records_persisted_total",
		Help: "Session records written back after tree mutations",
	})

	foldersPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_folders_pruned_total",
		Help: "Empty folders removed from the tree",
	})

	sessionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessions_loaded",
		Help: "Number of sessions in the cached list",
	})
)

// resultLabel classifies an error for the result label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, models.ErrDuplicateName), errors.Is(err, models.ErrDuplicateFolder):
		return "duplicate"
	case errors.Is(err, models.ErrStaleRecord):
		return "stale"
	case errors.Is(err, models.ErrTemplateMissing):
		return "template_missing"
	case errors.Is(err, models.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, models.ErrCyclicMove), errors.Is(err, models.ErrRootFolder):
		return "rejected"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// observe records one operation. Use as: defer observe("op", time.Now(), &err).
func observe(op string, start time.Time, err *error) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(op, resultLabel(*err)).Inc()
}
