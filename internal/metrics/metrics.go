package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Clock label values for MultiplyDuration.
const (
	ClockGPU  = "gpu"
	ClockWall = "wall"
)

var (
	EndpointResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "endpoint_responses_total",
		Help: "The total number of endpoint responses",
	}, []string{"endpoint", "status_code"})

	// Matrix multiply metrics
	MultiplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "multiply_duration_ms",
		Help:    "Duration of one matrix multiply in milliseconds, by clock (gpu timestamps or host wall time)",
		Buckets: prometheus.ExponentialBuckets(0.125, 2, 18), // 125us to ~16s
	}, []string{"clock"})

	MultiplyMatrixSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multiply_matrix_size",
		Help: "Dimension N of the matrices in the last multiply",
	})

	MultiplyGFLOPS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multiply_gflops",
		Help: "Performance of the last matrix multiply in GFLOPS (wall time)",
	})

	MultiplyBackend = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiply_backend_total",
		Help: "Total number of matrix multiplies by backend",
	}, []string{"backend"})

	MultiplyVerification = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiply_verification_total",
		Help: "Total number of verified multiplies by result (pass, fail or skipped)",
	}, []string{"result"})
)
