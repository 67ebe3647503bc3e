// internal/api/tracking_handler.go
package api

import (
	"alcyxob/fitflow/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type TrackingHandler struct {
	trackingService service.TrackingService
}

func NewTrackingHandler(trackingService service.TrackingService) *TrackingHandler {
	return &TrackingHandler{trackingService: trackingService}
}

type SelectDayRequest struct {
	Day int `json:"day" binding:"required,min=1,max=7"`
}

// GetProgress godoc
// @Summary Tracking view for this tab
// @Tags Progress
// @Produce json
// @Param X-Session-ID header string false "Tab session"
// @Success 200 {object} progress.View
// @Failure 409 {object} gin.H "Plan not started"
// @Router /progress [get]
func (h *TrackingHandler) GetProgress(c *gin.Context) {
	view, err := h.trackingService.View(c.Request.Context(), getSessionIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SelectDay godoc
// @Summary View another day of the cycle
// @Description Clears the checked exercises of this tab.
// @Tags Progress
// @Accept json
// @Produce json
// @Param request body SelectDayRequest true "Day 1..7"
// @Success 200 {object} progress.View
// @Router /progress/day [put]
func (h *TrackingHandler) SelectDay(c *gin.Context) {
	var req SelectDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Day must be between 1 and 7")
		return
	}
	view, err := h.trackingService.SelectDay(c.Request.Context(), getSessionIDFromContext(c), req.Day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleExercise godoc
// @Summary Check or uncheck one exercise of the selected day
// @Tags Progress
// @Produce json
// @Param index path int true "Exercise index"
// @Success 200 {object} progress.View
// @Failure 400 {object} gin.H "No such exercise"
// @Router /progress/exercises/{index}/toggle [post]
func (h *TrackingHandler) ToggleExercise(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid exercise index")
		return
	}
	view, err := h.trackingService.ToggleExercise(c.Request.Context(), getSessionIDFromContext(c), index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CompleteDay godoc
// @Summary Credit today's workout
// @Description Every exercise of the selected day must be checked.
// @Tags Progress
// @Produce json
// @Success 200 {object} progress.View
// @Failure 409 {object} gin.H "Exercises unchecked, already completed today, or cycle complete"
// @Failure 503 {object} gin.H "Storage unavailable"
// @Router /progress/complete [post]
func (h *TrackingHandler) CompleteDay(c *gin.Context) {
	view, err := h.trackingService.CompleteDay(c.Request.Context(), getSessionIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
