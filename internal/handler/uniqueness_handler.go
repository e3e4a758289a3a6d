package handler

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/polyline"
	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/service"
	"github.com/jengzang/run-uniqueness/pkg/response"
)

// UniquenessHandler handles HTTP requests for activities and their uniqueness
type UniquenessHandler struct {
	service *service.UniquenessService
}

// NewUniquenessHandler creates a new uniqueness handler
func NewUniquenessHandler(service *service.UniquenessService) *UniquenessHandler {
	return &UniquenessHandler{service: service}
}

// ImportActivities stores an array of {"activity": {...}} records
// POST /api/v1/activities
func (h *UniquenessHandler) ImportActivities(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		response.BadRequest(c, "Request body must be an array of activity records")
		return
	}

	activities := make([]models.Activity, 0, len(records))
	for i, raw := range records {
		activity, err := models.ParseRecord(raw)
		if err != nil {
			response.BadRequest(c, fmt.Sprintf("Invalid record at index %d: %v", i, err))
			return
		}
		activities = append(activities, *activity)
	}

	imported, err := h.service.ImportActivities(c.Request.Context(), activities)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("import failed")
		response.InternalError(c, "Failed to import activities")
		return
	}

	response.Success(c, gin.H{
		"received": len(activities),
		"imported": imported,
	})
}

// GetUniqueness returns the stored uniqueness of an activity
// GET /api/v1/activities/:id/uniqueness
func (h *UniquenessHandler) GetUniqueness(c *gin.Context) {
	id := c.Param("id")

	stored, err := h.service.GetUniqueness(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, fmt.Sprintf("No uniqueness stored for activity %s", id))
		return
	}
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("activity_id", id).Msg("get uniqueness failed")
		response.InternalError(c, "Failed to get uniqueness")
		return
	}

	response.Success(c, stored)
}

// ScoreActivity scores a posted {"activity": {...}} record against the stored routes
// POST /api/v1/uniqueness/score
func (h *UniquenessHandler) ScoreActivity(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	activity, err := models.ParseRecord(body)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ScoreOne(c.Request.Context(), activity)
	if errors.Is(err, polyline.ErrMalformed) {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("scoring failed")
		response.InternalError(c, "Failed to score activity")
		return
	}

	response.Success(c, result.Uniqueness())
}
