package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobService *services.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// @Summary Worker Status
// @Description Counters of the background worker and the last run of each scheduled job (budget reconciliation). healthy is false when a scheduled run failed.
// @Tags Jobs
// @Produce json
// @Success 200 {object} services.JobStatus
// @Security BearerAuth
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobService.GetStatus())
}
