package http

import (
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/monitoring"
)

// HandlerMetrics records per-operation timings for handlers.
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil metrics records nothing.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track starts timing operation. Call the returned func with the error the
// operation ended with.
func (hm *HandlerMetrics) Track(operation string) func(err error) {
	if hm == nil || hm.metrics == nil {
		return func(error) {}
	}
	timer := monitoring.NewTimer(hm.metrics, "api_"+operation)
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		timer.Stop(status)
	}
}
