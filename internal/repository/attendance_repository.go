package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-focus-api/internal/models"
)

// ErrDuplicateAttendance is returned when the once-per-day constraint rejects an insert.
var ErrDuplicateAttendance = errors.New("attendance already recorded for this day")

const uniqueViolation = "23505"

const attendanceColumns = `a.id, a.student_id, a.class_id, a.check_in_time, a.check_out_time, a.status, a.location, a.device_mac, a.created_at, a.updated_at`

// AttendanceRepository persists NFC check-ins.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts a check-in. A unique violation on (student, class, day) yields ErrDuplicateAttendance.
func (r *AttendanceRepository) Create(ctx context.Context, attendance *models.Attendance) error {
	if attendance.ID == "" {
		attendance.ID = uuid.NewString()
	}
	if attendance.CheckInDate == "" {
		attendance.CheckInDate = attendance.CheckInTime.UTC().Format(time.DateOnly)
	}
	now := time.Now().UTC()
	attendance.CreatedAt = now
	attendance.UpdatedAt = now

	const query = `INSERT INTO attendances (id, student_id, class_id, check_in_time, check_in_date, check_out_time, status, location, device_mac, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :check_in_time, :check_in_date, :check_out_time, :status, :location, :device_mac, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attendance); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateAttendance
		}
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// FindForDay returns the check-in of a student into a class within [dayStart, dayEnd), or nil.
func (r *AttendanceRepository) FindForDay(ctx context.Context, studentID, classID string, dayStart, dayEnd time.Time) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendances a
        WHERE a.student_id = $1 AND a.class_id = $2 AND a.check_in_time >= $3 AND a.check_in_time < $4
        LIMIT 1`
	var attendance models.Attendance
	if err := r.db.GetContext(ctx, &attendance, query, studentID, classID, dayStart, dayEnd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance for day: %w", err)
	}
	return &attendance, nil
}

// FindByID returns a check-in by id, or nil.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendances a WHERE a.id = $1`
	var attendance models.Attendance
	if err := r.db.GetContext(ctx, &attendance, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &attendance, nil
}

// List returns check-ins with student and class labels, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT ` + attendanceColumns + `,
        s.first_name || ' ' || s.last_name AS student_name, s.student_number, c.class_name, c.section
        FROM attendances a
        LEFT JOIN students s ON s.id = a.student_id
        LEFT JOIN classes c ON c.id = a.class_id
        WHERE 1=1`)
	args := r.applyFilter(&builder, filter)
	builder.WriteString(" ORDER BY a.check_in_time DESC")
	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Update changes the status and check-out time of a check-in.
func (r *AttendanceRepository) Update(ctx context.Context, attendance *models.Attendance) error {
	attendance.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendances SET status = :status, check_out_time = :check_out_time, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, attendance); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// Report aggregates check-ins per student.
func (r *AttendanceRepository) Report(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceReportRow, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT a.student_id,
        COALESCE(s.first_name || ' ' || s.last_name, '') AS student_name,
        COALESCE(s.student_number, '') AS student_number,
        COUNT(*) AS total_classes,
        SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END) AS present,
        SUM(CASE WHEN a.status = 'late' THEN 1 ELSE 0 END) AS late,
        SUM(CASE WHEN a.status NOT IN ('present', 'late') THEN 1 ELSE 0 END) AS absent
        FROM attendances a
        LEFT JOIN students s ON s.id = a.student_id
        WHERE 1=1`)
	args := r.applyFilter(&builder, filter)
	builder.WriteString(" GROUP BY a.student_id, s.first_name, s.last_name, s.student_number ORDER BY student_name")

	var rows []models.AttendanceReportRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("attendance report: %w", err)
	}
	return rows, nil
}

func (r *AttendanceRepository) applyFilter(builder *strings.Builder, filter models.AttendanceFilter) []interface{} {
	var args []interface{}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		builder.WriteString(fmt.Sprintf(" AND a.class_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		builder.WriteString(fmt.Sprintf(" AND a.student_id = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND a.check_in_time >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND a.check_in_time <= $%d", len(args)))
	}
	return args
}
