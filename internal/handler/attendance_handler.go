package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-focus-api/internal/dto"
	"github.com/noah-isme/sma-focus-api/internal/middleware"
	"github.com/noah-isme/sma-focus-api/internal/models"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
	"github.com/noah-isme/sma-focus-api/pkg/export"
	"github.com/noah-isme/sma-focus-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, req dto.MarkAttendanceRequest) (*models.Attendance, error)
	ClassAttendance(ctx context.Context, classID string, date *time.Time) (*dto.ClassAttendanceResponse, error)
	StudentAttendance(ctx context.Context, studentID string, from, to *time.Time, limit int) (*dto.StudentAttendanceResponse, error)
	Today(ctx context.Context) (*dto.TodayAttendanceResponse, error)
	Report(ctx context.Context, classID string, from, to *time.Time) (*dto.AttendanceReportResponse, error)
	ReportExport(ctx context.Context, classID string, from, to *time.Time, format export.Format) ([]byte, error)
	Update(ctx context.Context, id string, req dto.UpdateAttendanceRequest) (*models.Attendance, error)
}

// AttendanceHandler exposes NFC attendance endpoints.
type AttendanceHandler struct {
	service  attendanceService
	students middleware.StudentResolver
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService, students middleware.StudentResolver) *AttendanceHandler {
	return &AttendanceHandler{service: service, students: students}
}

// Mark godoc
// @Summary Mark attendance from an NFC tag scan
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkAttendanceRequest true "Scan payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	if err := middleware.AuthorizeStudent(c.Request.Context(), h.students, claimsFromContext(c), req.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	attendance, err := h.service.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attendance)
}

// Class godoc
// @Summary Attendance for a class
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Param date query string false "Calendar day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/class/{classId} [get]
func (h *AttendanceHandler) Class(c *gin.Context) {
	date, err := parseTimeQuery(c, "date", false)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ClassAttendance(c.Request.Context(), c.Param("classId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, result)
}

// Student godoc
// @Summary Attendance history for a student
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param startDate query string false "Start date"
// @Param endDate query string false "End date"
// @Param limit query int false "Maximum records"
// @Success 200 {object} response.Envelope
// @Router /attendance/student/{studentId} [get]
func (h *AttendanceHandler) Student(c *gin.Context) {
	from, to, err := parseRange(c, "startDate", "endDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.StudentAttendance(c.Request.Context(), c.Param("studentId"), from, to, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, result)
}

// Today godoc
// @Summary Today's attendance across all classes
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/today [get]
func (h *AttendanceHandler) Today(c *gin.Context) {
	result, err := h.service.Today(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, result)
}

// Report godoc
// @Summary Per-student attendance report
// @Description Returns JSON by default; format=csv|pdf|xlsx downloads a file
// @Tags Attendance
// @Produce json,text/csv,application/pdf
// @Param classId query string false "Class ID"
// @Param startDate query string false "Start date"
// @Param endDate query string false "End date"
// @Param format query string false "json, csv, pdf or xlsx"
// @Success 200 {object} response.Envelope
// @Router /attendance/report [get]
func (h *AttendanceHandler) Report(c *gin.Context) {
	from, to, err := parseRange(c, "startDate", "endDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	classID := c.Query("classId")

	if raw := c.Query("format"); raw != "" && raw != "json" {
		format, err := parseFormat(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		payload, err := h.service.ReportExport(c.Request.Context(), classID, from, to, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		download(c, "attendance-report", format, payload)
		return
	}

	result, err := h.service.Report(c.Request.Context(), classID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, result)
}

// Update godoc
// @Summary Update an attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body dto.UpdateAttendanceRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req dto.UpdateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance update"))
		return
	}
	attendance, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, attendance)
}
