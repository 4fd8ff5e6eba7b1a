package dto

import (
	"time"

	"github.com/noah-isme/sma-focus-api/internal/models"
)

// ProcessSensorDataResponse is returned after a sensor batch is scored and stored.
type ProcessSensorDataResponse struct {
	FocusScore float64            `json:"focusScore"`
	Record     models.FocusRecord `json:"record"`
}

// StudentFocusResponse carries a student's records oldest first with their summary.
type StudentFocusResponse struct {
	StudentID string               `json:"studentId"`
	FocusData []models.FocusRecord `json:"focusData"`
	Summary   models.FocusSummary  `json:"summary"`
}

// ClassAnalyticsResponse carries the class records and the derived engagement summary.
type ClassAnalyticsResponse struct {
	Analytics []models.FocusRecord          `json:"analytics"`
	Summary   models.ClassEngagementSummary `json:"summary"`
}

// StudentTrendsResponse carries the daily trend series.
type StudentTrendsResponse struct {
	StudentID string              `json:"studentId"`
	Series    []models.TrendPoint `json:"series"`
	Trend     models.FocusTrend   `json:"trend"`
}

// DashboardAnalyticsResponse rolls up every class the caller can see.
type DashboardAnalyticsResponse struct {
	Classes             []models.ClassFocusRollup `json:"classes"`
	OverallAverageFocus *float64                  `json:"overallAverageFocus"`
	TotalSamples        int                       `json:"totalSamples"`
	ClassCount          int                       `json:"classCount"`
	GeneratedAt         time.Time                 `json:"generatedAt"`
}
