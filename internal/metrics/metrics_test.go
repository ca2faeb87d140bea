package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMultiplyMetrics(t *testing.T) {
	t.Run("MultiplyDuration", func(t *testing.T) {
		MultiplyDuration.WithLabelValues(ClockGPU).Observe(1.5)
		MultiplyDuration.WithLabelValues(ClockWall).Observe(12.25)
		// one series per clock
		assert.Equal(t, 2, testutil.CollectAndCount(MultiplyDuration))
	})

	t.Run("MultiplyMatrixSize", func(t *testing.T) {
		MultiplyMatrixSize.Set(1024)
		assert.Equal(t, float64(1024), testutil.ToFloat64(MultiplyMatrixSize))
	})

	t.Run("MultiplyGFLOPS", func(t *testing.T) {
		MultiplyGFLOPS.Set(123.45)
		assert.Equal(t, float64(123.45), testutil.ToFloat64(MultiplyGFLOPS))
	})

	t.Run("MultiplyBackend", func(t *testing.T) {
		before := testutil.ToFloat64(MultiplyBackend.WithLabelValues("vulkan"))
		MultiplyBackend.WithLabelValues("vulkan").Inc()
		MultiplyBackend.WithLabelValues("vulkan").Inc()
		assert.Equal(t, before+2, testutil.ToFloat64(MultiplyBackend.WithLabelValues("vulkan")))
	})

	t.Run("MultiplyVerification", func(t *testing.T) {
		before := testutil.ToFloat64(MultiplyVerification.WithLabelValues("fail"))
		MultiplyVerification.WithLabelValues("fail").Inc()
		assert.Equal(t, before+1, testutil.ToFloat64(MultiplyVerification.WithLabelValues("fail")))
	})
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		EndpointResponses,
		MultiplyDuration,
		MultiplyMatrixSize,
		MultiplyGFLOPS,
		MultiplyBackend,
		MultiplyVerification,
	}

	for _, c := range collectors {
		// already registered by promauto
		err := prometheus.Register(c)
		var already prometheus.AlreadyRegisteredError
		assert.ErrorAs(t, err, &already)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	teapot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	beforeTeapot := testutil.ToFloat64(EndpointResponses.WithLabelValues("/tea", "418"))
	beforeOK := testutil.ToFloat64(EndpointResponses.WithLabelValues("/ok", "200"))

	Middleware(teapot, "/tea").ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))
	Middleware(ok, "/ok").ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, beforeTeapot+1, testutil.ToFloat64(EndpointResponses.WithLabelValues("/tea", "418")))
	assert.Equal(t, beforeOK+1, testutil.ToFloat64(EndpointResponses.WithLabelValues("/ok", "200")))
}

func TestHandlerServesMetrics(t *testing.T) {
	MultiplyMatrixSize.Set(64)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "multiply_matrix_size 64")

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerStartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))

	bad := NewServer("256.0.0.1:bad", zaptest.NewLogger(t))
	assert.Error(t, bad.Start())
}

func BenchmarkMetricsObservation(b *testing.B) {
	b.Run("ObserveDuration", func(b *testing.B) {
		h := MultiplyDuration.WithLabelValues(ClockWall)
		for i := 0; i < b.N; i++ {
			h.Observe(float64(i % 1000))
		}
	})

	b.Run("SetGauge", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			MultiplyMatrixSize.Set(float64(i))
		}
	})

	b.Run("IncCounter", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			MultiplyBackend.WithLabelValues("cpu").Inc()
		}
	})
}
