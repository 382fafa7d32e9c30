package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/storage"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/dto"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/middleware"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// historyLimit caps the number of transitions returned per import
const historyLimit = 100

// ImportService runs uploads through the import pipeline
type ImportService interface {
	CreateImport(ctx context.Context, programID, filename string, source models.ImportSource, payload []byte) (*models.Import, error)
	MarkQueued(ctx context.Context, importID string) error
	ProcessImport(ctx context.Context, importID string) (*models.Import, error)
}

// ImportEnqueuer hands accepted imports to the work queue
type ImportEnqueuer interface {
	Enqueue(ctx context.Context, imp *models.Import) error
}

// ImportHistory reads recorded status transitions for an import
type ImportHistory interface {
	GetHistory(ctx context.Context, importID string, limit int) ([]state.HistoryEntry, error)
}

// ImportHandler handles import-related HTTP requests
type ImportHandler struct {
	imports        storage.ImportRepository
	service        ImportService
	enqueuer       ImportEnqueuer // nil runs accepted imports inline
	history        ImportHistory  // nil disables the history endpoint
	logger         *logrus.Logger
	maxUploadBytes int64
}

// NewImportHandler creates a new import handler
func NewImportHandler(
	imports storage.ImportRepository,
	service ImportService,
	enqueuer ImportEnqueuer,
	history ImportHistory,
	logger *logrus.Logger,
	maxUploadBytes int64,
) *ImportHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImportHandler{
		imports:        imports,
		service:        service,
		enqueuer:       enqueuer,
		history:        history,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadImport handles POST /api/v1/programs/:program_id/imports
// @Summary Upload a schedule export
// @Description Register an XER schedule export for asynchronous import
// @Tags imports
// @Accept mpfd
// @Accept octet-stream
// @Produce json
// @Param program_id path string true "Program ID"
// @Param file formData file false "Schedule export file"
// @Success 202 {object} dto.ImportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/programs/{program_id}/imports [post]
func (h *ImportHandler) UploadImport(c *gin.Context) {
	programID := c.Param("program_id")

	payload, filename, ok := readScheduleUpload(c, h.maxUploadBytes)
	if !ok {
		return
	}

	imp, err := h.service.CreateImport(c.Request.Context(), programID, filename, models.SourceAPI, payload)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	if h.enqueuer != nil {
		if err := h.enqueuer.Enqueue(c.Request.Context(), imp); err != nil {
			middleware.AbortWithError(c, http.StatusServiceUnavailable, "ENQUEUE_FAILED", err.Error())
			return
		}
		if err := h.service.MarkQueued(c.Request.Context(), imp.ID); err != nil {
			// The worker accepts received imports too, so a missed
			// queued mark is not worth failing the upload over.
			h.logger.WithError(err).WithField("import_id", imp.ID).Warn("Failed to mark import queued")
		} else {
			imp.Status = models.ImportQueued
		}
	} else {
		importID := imp.ID
		go func() {
			if _, err := h.service.ProcessImport(context.Background(), importID); err != nil {
				h.logger.WithError(err).WithField("import_id", importID).Error("Inline import processing failed")
			}
		}()
	}

	c.JSON(http.StatusAccepted, dto.ToImportResponse(imp))
}

// GetImport handles GET /api/v1/imports/:id
// @Summary Get import details
// @Description Get the status and result summary of an import
// @Tags imports
// @Produce json
// @Param id path string true "Import ID"
// @Success 200 {object} dto.ImportResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/imports/{id} [get]
func (h *ImportHandler) GetImport(c *gin.Context) {
	imp, err := h.imports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToImportResponse(imp))
}

// ListImports handles GET /api/v1/programs/:program_id/imports
// @Summary List imports for a program
// @Description Get a paginated list of imports with optional filters
// @Tags imports
// @Produce json
// @Param program_id path string true "Program ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param status query string false "Filter by status"
// @Param source query string false "Filter by source"
// @Success 200 {object} dto.ImportListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/programs/{program_id}/imports [get]
func (h *ImportHandler) ListImports(c *gin.Context) {
	var q dto.ListQueryParams
	if !middleware.BindQueryAndValidate(c, &q) {
		return
	}

	filters := storage.ImportFilters{
		ProgramID: c.Param("program_id"),
		Source:    q.Source,
		Limit:     q.PageSize,
		Offset:    (q.Page - 1) * q.PageSize,
	}
	if q.Status != "" {
		status := models.ImportStatus(q.Status)
		filters.Status = &status
	}

	imports, total, err := h.imports.List(c.Request.Context(), filters)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	responses := make([]dto.ImportResponse, len(imports))
	for i, imp := range imports {
		responses[i] = dto.ToImportResponse(imp)
	}

	c.JSON(http.StatusOK, dto.ImportListResponse{
		Imports:    responses,
		Pagination: dto.NewPaginationMeta(q.Page, q.PageSize, total),
	})
}

// GetImportHistory handles GET /api/v1/imports/:id/history
// @Summary Get import status history
// @Description Get the recorded status transitions of an import, newest first
// @Tags imports
// @Produce json
// @Param id path string true "Import ID"
// @Success 200 {object} dto.ImportHistoryResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/imports/{id}/history [get]
func (h *ImportHandler) GetImportHistory(c *gin.Context) {
	if h.history == nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Status history is not configured")
		return
	}

	imp, err := h.imports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	entries, err := h.history.GetHistory(c.Request.Context(), imp.ID, historyLimit)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	history := make([]dto.ImportHistoryEntry, len(entries))
	for i, entry := range entries {
		history[i] = dto.ImportHistoryEntry{
			OldStatus: entry.OldStatus,
			NewStatus: entry.NewStatus,
			ChangedAt: entry.ChangedAt,
			Metadata:  entry.Metadata,
		}
	}

	c.JSON(http.StatusOK, dto.ImportHistoryResponse{
		ImportID: imp.ID,
		History:  history,
	})
}

// CancelImport handles POST /api/v1/imports/:id/cancel
// @Summary Cancel import
// @Description Cancel an import that has not started processing yet
// @Tags imports
// @Param id path string true "Import ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/imports/{id}/cancel [post]
func (h *ImportHandler) CancelImport(c *gin.Context) {
	if err := h.imports.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: true,
		Message: "Import canceled",
	})
}

// readScheduleUpload pulls the schedule export bytes out of a request:
// the multipart "file" part when present, the raw body otherwise. On
// failure it writes the error response and returns ok=false.
func readScheduleUpload(c *gin.Context, maxBytes int64) (payload []byte, filename string, ok bool) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	if c.ContentType() == "multipart/form-data" {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			abortUploadError(c, err, "Multipart upload requires a 'file' part")
			return nil, "", false
		}

		f, err := fileHeader.Open()
		if err != nil {
			middleware.AbortWithError(c, http.StatusBadRequest, "UNREADABLE_FILE", err.Error())
			return nil, "", false
		}
		defer f.Close()

		payload, err = io.ReadAll(f)
		if err != nil {
			middleware.AbortWithError(c, http.StatusBadRequest, "UNREADABLE_FILE", err.Error())
			return nil, "", false
		}
		filename = filepath.Base(fileHeader.Filename)
	} else {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortUploadError(c, err, err.Error())
			return nil, "", false
		}
		payload = body
		filename = c.Query("filename")
	}

	if filename == "" || filename == "." {
		filename = "schedule.xer"
	}
	if len(payload) == 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, "EMPTY_UPLOAD", "Schedule export is empty")
		return nil, "", false
	}

	return payload, filename, true
}

// abortUploadError distinguishes an oversized body from a malformed one
func abortUploadError(c *gin.Context, err error, message string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		middleware.AbortWithError(c, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
			"Schedule export exceeds the upload size limit")
		return
	}
	middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_UPLOAD", message)
}
