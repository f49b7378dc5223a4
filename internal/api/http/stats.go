package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/selectorkit/internal/domain/registry"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/monitoring"
)

// StatsResponse combines registry state with the metrics snapshot.
type StatsResponse struct {
	Registry registry.Stats             `json:"registry"`
	Metrics  monitoring.MetricsSnapshot `json:"metrics"`
	Summary  StatsSummary               `json:"summary"`
}

// StatsSummary holds derived rates.
type StatsSummary struct {
	ErrorRate       float64 `json:"error_rate"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`
	RejectRate      float64 `json:"reload_reject_rate"`
	MissRate        float64 `json:"resolve_miss_rate"`
}

// Stats returns registry and service statistics
func (h *Handlers) Stats(c *gin.Context) {
	snap := h.registry.Metrics().Snapshot()
	c.JSON(http.StatusOK, StatsResponse{
		Registry: h.registry.Stats(),
		Metrics:  snap,
		Summary:  summarize(snap),
	})
}

func summarize(s monitoring.MetricsSnapshot) StatsSummary {
	var sum StatsSummary
	if s.TotalRequests > 0 {
		sum.ErrorRate = float64(s.TotalErrors) / float64(s.TotalRequests)
	}
	if s.RequestCount > 0 {
		sum.AvgResponseTime = s.TotalDuration / float64(s.RequestCount) * 1000
	}
	if reloads := s.ReloadsAccepted + s.ReloadsRejected; reloads > 0 {
		sum.RejectRate = float64(s.ReloadsRejected) / float64(reloads)
	}
	if s.Resolutions > 0 {
		sum.MissRate = float64(s.ResolveMisses) / float64(s.Resolutions)
	}
	return sum
}
