package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// Attendance is a single NFC check-in of a student into a class.
type Attendance struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"studentId"`
	ClassID      string           `db:"class_id" json:"classId"`
	CheckInTime  time.Time        `db:"check_in_time" json:"checkInTime"`
	// CheckInDate is the YYYY-MM-DD day of CheckInTime in the attendance zone. It backs the once-per-day rule.
	CheckInDate  string           `db:"check_in_date" json:"-"`
	CheckOutTime *time.Time       `db:"check_out_time" json:"checkOutTime,omitempty"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Location     *string          `db:"location" json:"location,omitempty"`
	DeviceMAC    *string          `db:"device_mac" json:"deviceMac,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updatedAt"`
}

// AttendanceRecord extends the check-in with student and class labels.
type AttendanceRecord struct {
	Attendance
	StudentName   *string `db:"student_name" json:"studentName,omitempty"`
	StudentNumber *string `db:"student_number" json:"studentNumber,omitempty"`
	ClassName     *string `db:"class_name" json:"className,omitempty"`
	Section       *string `db:"section" json:"section,omitempty"`
}

// AttendanceFilter scopes attendance queries. Both date bounds are inclusive.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
}

// AttendanceReportRow aggregates a student's check-ins over a period.
type AttendanceReportRow struct {
	StudentID     string `db:"student_id" json:"studentId"`
	StudentName   string `db:"student_name" json:"studentName"`
	StudentNumber string `db:"student_number" json:"studentNumber"`
	TotalClasses  int    `db:"total_classes" json:"totalClasses"`
	Present       int    `db:"present" json:"present"`
	Late          int    `db:"late" json:"late"`
	Absent        int    `db:"absent" json:"absent"`
}
