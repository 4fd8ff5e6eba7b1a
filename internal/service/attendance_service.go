package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-focus-api/internal/dto"
	"github.com/noah-isme/sma-focus-api/internal/focus"
	"github.com/noah-isme/sma-focus-api/internal/models"
	"github.com/noah-isme/sma-focus-api/internal/repository"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
	"github.com/noah-isme/sma-focus-api/pkg/export"
)

type attendanceStore interface {
	Create(ctx context.Context, attendance *models.Attendance) error
	FindForDay(ctx context.Context, studentID, classID string, dayStart, dayEnd time.Time) (*models.Attendance, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	Update(ctx context.Context, attendance *models.Attendance) error
	Report(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceReportRow, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Count(ctx context.Context, classID string) (int, error)
}

type classFinder interface {
	ByID(ctx context.Context, id string) (*models.Class, error)
}

// AttendanceServiceConfig tunes attendance defaults.
type AttendanceServiceConfig struct {
	HistoryLimit int
	Location     *time.Location
}

// AttendanceService records NFC check-ins and summarises them.
type AttendanceService struct {
	store     attendanceStore
	students  studentDirectory
	classes   classFinder
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
	cfg       AttendanceServiceConfig
}

// NewAttendanceService constructs the service.
func NewAttendanceService(store attendanceStore, students studentDirectory, classes classFinder, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg AttendanceServiceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AttendanceService{
		store:     store,
		students:  students,
		classes:   classes,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Mark records a check-in after verifying the scanned tag belongs to the class. A student checks in once per class per day.
func (s *AttendanceService) Mark(ctx context.Context, req dto.MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.ObserveAttendanceMark("rejected")
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	class, err := s.classes.ByID(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load class")
	}
	if class == nil || class.NFCTagID != req.NFCTagID {
		s.metrics.ObserveAttendanceMark("invalid_tag")
		return nil, appErrors.ErrInvalidNFCTag
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load student")
	}
	if student == nil {
		s.metrics.ObserveAttendanceMark("unknown_student")
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	now := s.now()
	dayStart, dayEnd := s.dayBounds(now)
	existing, err := s.store.FindForDay(ctx, req.StudentID, req.ClassID, dayStart, dayEnd)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to check attendance")
	}
	if existing != nil {
		s.metrics.ObserveAttendanceMark("duplicate")
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already marked for this class today")
	}

	attendance := &models.Attendance{
		StudentID:   req.StudentID,
		ClassID:     req.ClassID,
		CheckInTime: now.UTC(),
		CheckInDate: dayStart.Format(time.DateOnly),
		Status:      models.AttendanceStatusPresent,
		Location:    req.Location,
		DeviceMAC:   req.DeviceMAC,
	}
	if err := s.store.Create(ctx, attendance); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttendance) {
			s.metrics.ObserveAttendanceMark("duplicate")
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already marked for this class today")
		}
		return nil, appErrors.Storage(err, "failed to mark attendance")
	}
	s.metrics.ObserveAttendanceMark("marked")
	s.logger.Info("attendance marked", zap.String("student_id", req.StudentID), zap.String("class_id", req.ClassID))
	return attendance, nil
}

// ClassAttendance lists a class' check-ins, optionally restricted to one day.
func (s *AttendanceService) ClassAttendance(ctx context.Context, classID string, date *time.Time) (*dto.ClassAttendanceResponse, error) {
	class, err := s.classes.ByID(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load class")
	}
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	filter := models.AttendanceFilter{ClassID: classID}
	if date != nil {
		// the calendar date is taken as given, not converted into the attendance zone
		from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.cfg.Location)
		to := lastInstant(from.AddDate(0, 0, 1))
		filter.DateFrom, filter.DateTo = &from, &to
	}
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to fetch attendance")
	}
	total, err := s.students.Count(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count students")
	}

	present := countStatus(records, models.AttendanceStatusPresent)
	return &dto.ClassAttendanceResponse{
		Attendance: nonNilRecords(records),
		Summary: dto.ClassAttendanceSummary{
			TotalStudents:  total,
			PresentCount:   present,
			AbsentCount:    max(total-present, 0),
			AttendanceRate: rate(present, total),
		},
		ClassInfo: class,
	}, nil
}

// StudentAttendance returns a student's recent history. Limit falls back to the configured default.
func (s *AttendanceService) StudentAttendance(ctx context.Context, studentID string, from, to *time.Time, limit int) (*dto.StudentAttendanceResponse, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	filter := models.AttendanceFilter{StudentID: studentID, DateFrom: from, DateTo: to, Limit: limit}
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to fetch student attendance")
	}

	present := countStatus(records, models.AttendanceStatusPresent)
	late := countStatus(records, models.AttendanceStatusLate)
	return &dto.StudentAttendanceResponse{
		Attendance: nonNilRecords(records),
		Summary: dto.StudentAttendanceSummary{
			TotalClasses:   len(records),
			PresentCount:   present,
			LateCount:      late,
			AbsentCount:    len(records) - present - late,
			AttendanceRate: rate(present, len(records)),
		},
	}, nil
}

// Today summarises distinct students seen today across all classes.
func (s *AttendanceService) Today(ctx context.Context) (*dto.TodayAttendanceResponse, error) {
	from, next := s.dayBounds(s.now())
	to := lastInstant(next)
	records, err := s.store.List(ctx, models.AttendanceFilter{DateFrom: &from, DateTo: &to})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to fetch today's attendance")
	}
	total, err := s.students.Count(ctx, "")
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count students")
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.StudentID] = struct{}{}
	}
	present := len(seen)
	return &dto.TodayAttendanceResponse{
		Summary: dto.TodayAttendanceSummary{
			TotalStudents:  total,
			PresentToday:   present,
			AbsentToday:    max(total-present, 0),
			AttendanceRate: rate(present, total),
		},
		Attendance: nonNilRecords(records),
	}, nil
}

// Report aggregates check-ins per student over an optional class and period.
func (s *AttendanceService) Report(ctx context.Context, classID string, from, to *time.Time) (*dto.AttendanceReportResponse, error) {
	rows, err := s.store.Report(ctx, models.AttendanceFilter{ClassID: classID, DateFrom: from, DateTo: to})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to generate report")
	}
	if rows == nil {
		rows = []models.AttendanceReportRow{}
	}
	return &dto.AttendanceReportResponse{Report: rows, Period: dto.ReportPeriod{StartDate: from, EndDate: to}}, nil
}

// ReportExport renders the per-student report in the requested format.
func (s *AttendanceService) ReportExport(ctx context.Context, classID string, from, to *time.Time, format export.Format) ([]byte, error) {
	report, err := s.Report(ctx, classID, from, to)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Title:   "Attendance report",
		Headers: []string{"Student Number", "Student", "Total", "Present", "Late", "Absent", "Rate (%)"},
	}
	for _, row := range report.Report {
		rateLabel := "-"
		if r := rate(row.Present, row.TotalClasses); r != nil {
			rateLabel = strconv.FormatFloat(*r, 'f', 2, 64)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student Number": row.StudentNumber,
			"Student":        row.StudentName,
			"Total":          strconv.Itoa(row.TotalClasses),
			"Present":        strconv.Itoa(row.Present),
			"Late":           strconv.Itoa(row.Late),
			"Absent":         strconv.Itoa(row.Absent),
			"Rate (%)":       rateLabel,
		})
	}
	payload, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return payload, nil
}

// Update changes the status and check-out time of an attendance record.
func (s *AttendanceService) Update(ctx context.Context, id string, req dto.UpdateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance update")
	}
	attendance, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load attendance")
	}
	if attendance == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}

	if req.Status != nil {
		attendance.Status = *req.Status
	}
	if req.CheckOutTime != nil {
		if req.CheckOutTime.Before(attendance.CheckInTime) {
			return nil, appErrors.Validation("checkOutTime", "must not be before checkInTime")
		}
		checkOut := req.CheckOutTime.UTC()
		attendance.CheckOutTime = &checkOut
	}
	if err := s.store.Update(ctx, attendance); err != nil {
		return nil, appErrors.Storage(err, "failed to update attendance")
	}
	return attendance, nil
}

// dayBounds returns the start of t's calendar day in the configured zone and the start of the next day.
func (s *AttendanceService) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(s.cfg.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	return start, start.AddDate(0, 0, 1)
}

// lastInstant returns the instant just before the start of the next day, for inclusive filters.
func lastInstant(nextDay time.Time) time.Time {
	return nextDay.Add(-time.Nanosecond)
}

func countStatus(records []models.AttendanceRecord, status models.AttendanceStatus) int {
	n := 0
	for _, r := range records {
		if r.Status == status {
			n++
		}
	}
	return n
}

// rate returns part/total as a percentage rounded to two decimals, or nil when total is zero.
func rate(part, total int) *float64 {
	if total <= 0 {
		return nil
	}
	v := focus.Round(float64(part)/float64(total)*100, 2)
	return &v
}

func nonNilRecords(records []models.AttendanceRecord) []models.AttendanceRecord {
	if records == nil {
		return []models.AttendanceRecord{}
	}
	return records
}
