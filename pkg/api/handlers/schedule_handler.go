package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/importer"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/storage"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/dto"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/middleware"
)

// ScheduleHandler handles schedule-related HTTP requests
type ScheduleHandler struct {
	schedules      storage.ScheduleRepository
	maxUploadBytes int64
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(schedules storage.ScheduleRepository, maxUploadBytes int64) *ScheduleHandler {
	return &ScheduleHandler{
		schedules:      schedules,
		maxUploadBytes: maxUploadBytes,
	}
}

// GetSchedule handles GET /api/v1/programs/:program_id/schedule
// @Summary Get the current schedule of a program
// @Description Get the stored schedule from the latest completed import
// @Tags schedules
// @Produce json
// @Param program_id path string true "Program ID"
// @Success 200 {object} dto.ScheduleResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/programs/{program_id}/schedule [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	schedule, importID, err := h.schedules.GetForProgram(c.Request.Context(), c.Param("program_id"))
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToScheduleResponse(importID, schedule))
}

// ListTasks handles GET /api/v1/programs/:program_id/schedule/tasks
// @Summary List schedule tasks
// @Description Get a paginated task list from the latest completed import
// @Tags schedules
// @Produce json
// @Param program_id path string true "Program ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(50)
// @Param critical query bool false "Only tasks on the critical path"
// @Success 200 {object} dto.TaskListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/programs/{program_id}/schedule/tasks [get]
func (h *ScheduleHandler) ListTasks(c *gin.Context) {
	var q dto.TaskQueryParams
	if !middleware.BindQueryAndValidate(c, &q) {
		return
	}

	filters := storage.TaskFilters{
		ProgramID:    c.Param("program_id"),
		CriticalOnly: q.Critical,
		Limit:        q.PageSize,
		Offset:       (q.Page - 1) * q.PageSize,
	}

	tasks, total, err := h.schedules.ListTasks(c.Request.Context(), filters)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	responses := make([]dto.ScheduleTaskDTO, len(tasks))
	for i := range tasks {
		responses[i] = dto.ToScheduleTaskDTO(&tasks[i])
	}

	c.JSON(http.StatusOK, dto.TaskListResponse{
		Tasks:      responses,
		Pagination: dto.NewPaginationMeta(q.Page, q.PageSize, total),
	})
}

// PreviewSchedule handles POST /api/v1/schedule/preview
// @Summary Preview a schedule export
// @Description Parse an XER export and compute total floats without storing anything
// @Tags schedules
// @Accept mpfd
// @Accept octet-stream
// @Produce json
// @Param file formData file false "Schedule export file"
// @Success 200 {object} dto.PreviewResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Router /api/v1/schedule/preview [post]
func (h *ScheduleHandler) PreviewSchedule(c *gin.Context) {
	payload, _, ok := readScheduleUpload(c, h.maxUploadBytes)
	if !ok {
		return
	}

	schedule, cycleTaskIDs, err := importer.Process(bytes.NewReader(payload))
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.ToPreviewResponse(schedule, cycleTaskIDs))
}
