package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfanzaky/txqueue/pkg/logger"
)

const serviceName = "txqueue-api"

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetricsHandler provides Prometheus metrics and probe endpoints
type MetricsHandler struct {
	gatherer     prometheus.Gatherer
	dependencies map[string]Pinger
	probeTimeout time.Duration
}

// NewMetricsHandler creates a metrics handler serving the default registry,
// where every promauto metric of the service is registered
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		gatherer:     prometheus.DefaultGatherer,
		dependencies: make(map[string]Pinger),
		probeTimeout: 2 * time.Second,
	}
}

// AddDependency registers a dependency for the readiness probe
func (h *MetricsHandler) AddDependency(name string, dep Pinger) {
	if dep == nil {
		return
	}
	h.dependencies[name] = dep
}

// MetricsEndpoint returns the Prometheus metrics handler
func (h *MetricsHandler) MetricsEndpoint() gin.HandlerFunc {
	handler := promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})

	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// HealthEndpoint provides health check
func (h *MetricsHandler) HealthEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   serviceName,
			"timestamp": time.Now().Unix(),
		})
	}
}

// ReadinessEndpoint pings every registered dependency
func (h *MetricsHandler) ReadinessEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.probeTimeout)
		defer cancel()

		checks := make(map[string]string, len(h.dependencies))
		ready := true
		for name, dep := range h.dependencies {
			if err := dep.Ping(ctx); err != nil {
				logger.Warn("Readiness check failed",
					logger.String("dependency", name),
					logger.ErrorField(err),
				)
				checks[name] = "unavailable"
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"checks": checks,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"checks": checks,
		})
	}
}

// LivenessEndpoint provides liveness check
func (h *MetricsHandler) LivenessEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "alive",
		})
	}
}
