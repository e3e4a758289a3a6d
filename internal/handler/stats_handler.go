package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/service"
	"github.com/jengzang/run-uniqueness/pkg/response"
)

// StatsHandler handles HTTP requests for statistics
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
	}
}

// GetUniquenessStatistics handles GET /api/v1/uniqueness/stats?algorithm=dtw
func (h *StatsHandler) GetUniquenessStatistics(c *gin.Context) {
	result, err := h.statsService.GetUniquenessStatistics(c.Request.Context(), c.Query("algorithm"))
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("statistics failed")
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, result)
}
