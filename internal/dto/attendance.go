package dto

import (
	"time"

	"github.com/noah-isme/sma-focus-api/internal/models"
)

// MarkAttendanceRequest is sent by the wearable after an NFC tag scan.
type MarkAttendanceRequest struct {
	StudentID string  `json:"studentId" validate:"required"`
	ClassID   string  `json:"classId" validate:"required"`
	NFCTagID  string  `json:"nfcTagId" validate:"required"`
	Location  *string `json:"location"`
	DeviceMAC *string `json:"deviceMac" validate:"omitempty,mac"`
}

// UpdateAttendanceRequest changes status or check-out time.
type UpdateAttendanceRequest struct {
	Status       *models.AttendanceStatus `json:"status" validate:"omitempty,oneof=present late absent"`
	CheckOutTime *time.Time               `json:"checkOutTime"`
}

// ClassAttendanceSummary counts a class' check-ins against its roster.
type ClassAttendanceSummary struct {
	TotalStudents  int      `json:"totalStudents"`
	PresentCount   int      `json:"presentCount"`
	AbsentCount    int      `json:"absentCount"`
	AttendanceRate *float64 `json:"attendanceRate"`
}

// ClassAttendanceResponse lists a class' check-ins.
type ClassAttendanceResponse struct {
	Attendance []models.AttendanceRecord `json:"attendance"`
	Summary    ClassAttendanceSummary    `json:"summary"`
	ClassInfo  *models.Class             `json:"classInfo"`
}

// StudentAttendanceSummary accounts for every returned check-in.
type StudentAttendanceSummary struct {
	TotalClasses   int      `json:"totalClasses"`
	PresentCount   int      `json:"presentCount"`
	LateCount      int      `json:"lateCount"`
	AbsentCount    int      `json:"absentCount"`
	AttendanceRate *float64 `json:"attendanceRate"`
}

// StudentAttendanceResponse lists a student's history.
type StudentAttendanceResponse struct {
	Attendance []models.AttendanceRecord `json:"attendance"`
	Summary    StudentAttendanceSummary  `json:"summary"`
}

// TodayAttendanceSummary counts distinct students seen today.
type TodayAttendanceSummary struct {
	TotalStudents  int      `json:"totalStudents"`
	PresentToday   int      `json:"presentToday"`
	AbsentToday    int      `json:"absentToday"`
	AttendanceRate *float64 `json:"attendanceRate"`
}

// TodayAttendanceResponse lists today's check-ins.
type TodayAttendanceResponse struct {
	Summary    TodayAttendanceSummary    `json:"summary"`
	Attendance []models.AttendanceRecord `json:"attendance"`
}

// ReportPeriod echoes the requested report bounds.
type ReportPeriod struct {
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// AttendanceReportResponse groups check-ins per student.
type AttendanceReportResponse struct {
	Report []models.AttendanceReportRow `json:"report"`
	Period ReportPeriod                 `json:"period"`
}
