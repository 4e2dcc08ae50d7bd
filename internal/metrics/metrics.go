// Package metrics holds the Prometheus collectors of the checklist service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResponsesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_responses_saved_total",
			Help: "Total number of checklist item responses saved",
		},
		[]string{"family", "result"},
	)

	PhotoUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_photo_uploads_total",
			Help: "Total number of photo evidence uploads",
		},
		[]string{"result"},
	)

	Finalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_finalizations_total",
			Help: "Total number of checklist finalize attempts",
		},
		[]string{"result"},
	)

	EstadoTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_estado_transitions_total",
			Help: "Total number of checklist instance estado transitions",
		},
		[]string{"to"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checklist_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Result labels
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultError    = "error"
	ResultConflict = "conflict"
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
