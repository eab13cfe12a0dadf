package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type scheduleGenerator interface {
	PreviewSlots(ctx context.Context, req dto.SlotConfigRequest) (*dto.SlotPreviewResponse, error)
	Regenerate(ctx context.Context, req dto.RegenerateScheduleRequest) (*models.RegenerationResult, error)
	ListByClass(ctx context.Context, classID string) (*dto.ClassTimetableResponse, bool, error)
	DeleteSchedule(ctx context.Context, classID string) (int64, error)
}

type regenerationJobs interface {
	Enqueue(ctx context.Context, req dto.RegenerateScheduleRequest) (*models.RegenerationJob, error)
	Get(ctx context.Context, id string) (*models.RegenerationJob, error)
}

type timetableExporter interface {
	ExportClass(ctx context.Context, classID string, query dto.ExportQuery) (*service.ExportFile, error)
}

// ScheduleGeneratorHandler exposes timetable endpoints.
type ScheduleGeneratorHandler struct {
	service  scheduleGenerator
	jobs     regenerationJobs
	exporter timetableExporter
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc *service.ScheduleGeneratorService, jobs *service.RegenerationJobService, exporter *service.ExportService) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc, jobs: jobs, exporter: exporter}
}

// PreviewSlots godoc
// @Summary Preview the daily slot grid
// @Description Omitted fields fall back to the configured defaults.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.SlotConfigRequest false "Slot configuration override"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable/slots/preview [post]
func (h *ScheduleGeneratorHandler) PreviewSlots(c *gin.Context) {
	var req dto.SlotConfigRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot configuration payload"))
			return
		}
	}
	preview, err := h.service.PreviewSlots(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, map[string]interface{}{"count": len(preview.Slots)})
}

// Regenerate godoc
// @Summary Regenerate timetables for a class scope
// @Description Replaces every assignment of the listed classes in one transaction. Courses that cannot be placed are reported, not fatal.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.RegenerateScheduleRequest true "Regeneration payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetable/regenerate [post]
func (h *ScheduleGeneratorHandler) Regenerate(c *gin.Context) {
	var req dto.RegenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid regeneration payload"))
		return
	}
	result, err := h.service.Regenerate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{
		"placed":   result.PlacedCount,
		"unplaced": len(result.Unplaced),
	})
}

// EnqueueRegeneration godoc
// @Summary Queue a background regeneration
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.RegenerateScheduleRequest true "Regeneration payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/regenerate/jobs [post]
func (h *ScheduleGeneratorHandler) EnqueueRegeneration(c *gin.Context) {
	var req dto.RegenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid regeneration payload"))
		return
	}
	job, err := h.jobs.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	location := strings.TrimSuffix(c.Request.URL.Path, "/") + "/" + job.ID
	response.Accepted(c, job, location)
}

// RegenerationJob godoc
// @Summary Get background regeneration status
// @Tags Timetable
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/regenerate/jobs/{id} [get]
func (h *ScheduleGeneratorHandler) RegenerationJob(c *gin.Context) {
	id, err := pathParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// ClassTimetable godoc
// @Summary Get the persisted timetable of a class
// @Tags Timetable
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/classes/{classId} [get]
func (h *ScheduleGeneratorHandler) ClassTimetable(c *gin.Context) {
	classID, err := pathParam(c, "classId")
	if err != nil {
		response.Error(c, err)
		return
	}
	timetable, cacheHit, err := h.service.ListByClass(c.Request.Context(), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	meta["count"] = len(timetable.Assignments)
	response.JSON(c, http.StatusOK, timetable, meta)
}

// DeleteClassTimetable godoc
// @Summary Delete the persisted timetable of a class
// @Tags Timetable
// @Param classId path string true "Class ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /timetable/classes/{classId} [delete]
func (h *ScheduleGeneratorHandler) DeleteClassTimetable(c *gin.Context) {
	classID, err := pathParam(c, "classId")
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, err := h.service.DeleteSchedule(c.Request.Context(), classID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportClassTimetable godoc
// @Summary Download a class timetable
// @Tags Timetable
// @Produce octet-stream
// @Param classId path string true "Class ID"
// @Param format query string false "csv, pdf, xlsx or ics" default(csv)
// @Param weekOf query string false "Week anchoring calendar events (YYYY-MM-DD)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/classes/{classId}/export [get]
func (h *ScheduleGeneratorHandler) ExportClassTimetable(c *gin.Context) {
	classID, err := pathParam(c, "classId")
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exporter.ExportClass(c.Request.Context(), classID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.Filename, file.Body)
}
