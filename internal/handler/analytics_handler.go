package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-focus-api/internal/dto"
	"github.com/noah-isme/sma-focus-api/internal/focus"
	"github.com/noah-isme/sma-focus-api/internal/middleware"
	"github.com/noah-isme/sma-focus-api/internal/models"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
	"github.com/noah-isme/sma-focus-api/pkg/export"
	"github.com/noah-isme/sma-focus-api/pkg/response"
)

type focusAnalyticsService interface {
	ProcessSensorData(ctx context.Context, batch focus.SensorBatch) (*dto.ProcessSensorDataResponse, error)
	StudentFocusData(ctx context.Context, studentID string, window models.TimeRange) (*dto.StudentFocusResponse, bool, error)
	ClassAnalytics(ctx context.Context, classID string, window models.TimeRange) (*dto.ClassAnalyticsResponse, bool, error)
	StudentTrends(ctx context.Context, studentID string, window models.TimeRange) (*dto.StudentTrendsResponse, bool, error)
	DashboardAnalytics(ctx context.Context, userID string, role models.UserRole, window models.TimeRange) (*dto.DashboardAnalyticsResponse, bool, error)
	ClassAnalyticsExport(ctx context.Context, classID string, window models.TimeRange, format export.Format) ([]byte, error)
}

type systemSnapshotter interface {
	Snapshot() models.AnalyticsSystemMetrics
}

// AnalyticsHandler exposes sensor ingestion and focus analytics endpoints.
type AnalyticsHandler struct {
	analytics focusAnalyticsService
	students  middleware.StudentResolver
	system    systemSnapshotter
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics focusAnalyticsService, students middleware.StudentResolver, system systemSnapshotter) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, students: students, system: system}
}

// Process godoc
// @Summary Score a sensor batch
// @Description Validates one wearable sensor batch, computes its focus score and stores the record
// @Tags Analytics
// @Accept json
// @Produce json
// @Param payload body focus.SensorBatch true "Sensor batch"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /analytics/process [post]
func (h *AnalyticsHandler) Process(c *gin.Context) {
	var batch focus.SensorBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		vErr := focus.BindingError(err)
		response.Error(c, appErrors.Validation(vErr.Field, vErr.Reason))
		return
	}
	if err := middleware.AuthorizeStudent(c.Request.Context(), h.students, claimsFromContext(c), batch.StudentID); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.analytics.ProcessSensorData(c.Request.Context(), batch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// StudentFocus godoc
// @Summary Focus records for a student
// @Tags Analytics
// @Produce json
// @Param studentId path string true "Student ID"
// @Param from query string false "Window start (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Window end (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /analytics/focus/{studentId} [get]
func (h *AnalyticsHandler) StudentFocus(c *gin.Context) {
	window, err := parseWindow(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, hit, err := h.analytics.StudentFocusData(c.Request.Context(), c.Param("studentId"), window)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, result, hit)
}

// Class godoc
// @Summary Class engagement analytics
// @Tags Analytics
// @Produce json
// @Param classId path string true "Class ID"
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analytics/class/{classId} [get]
func (h *AnalyticsHandler) Class(c *gin.Context) {
	window, err := parseWindow(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, hit, err := h.analytics.ClassAnalytics(c.Request.Context(), c.Param("classId"), window)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, result, hit)
}

// ClassExport godoc
// @Summary Export the per-student focus breakdown of a class
// @Tags Analytics
// @Produce text/csv,application/pdf,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param classId path string true "Class ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Router /analytics/class/{classId}/export [get]
func (h *AnalyticsHandler) ClassExport(c *gin.Context) {
	format, err := parseFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	window, err := parseWindow(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	classID := c.Param("classId")
	payload, err := h.analytics.ClassAnalyticsExport(c.Request.Context(), classID, window, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	download(c, "focus-"+classID, format, payload)
}

// Trends godoc
// @Summary Daily focus trend for a student
// @Tags Analytics
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /analytics/trends/{studentId} [get]
func (h *AnalyticsHandler) Trends(c *gin.Context) {
	window, err := parseWindow(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, hit, err := h.analytics.StudentTrends(c.Request.Context(), c.Param("studentId"), window)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, result, hit)
}

// Dashboard godoc
// @Summary Focus rollup across the caller's classes
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	window, err := parseWindow(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, hit, err := h.analytics.DashboardAnalytics(c.Request.Context(), claims.UserID, claims.Role, window)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, result, hit)
}

// System godoc
// @Summary Service instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.system == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "metrics not configured"))
		return
	}
	response.JSON(c, http.StatusOK, h.system.Snapshot())
}
