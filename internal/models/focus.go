package models

import "time"

// SensorSample is one validated wearable reading covering a single class session window.
type SensorSample struct {
	HeartRateAvg     float64   `db:"heart_rate_avg" json:"heartRateAvg"`
	MovementCount    int       `db:"movement_count" json:"movementCount"`
	InteractionCount int       `db:"interaction_count" json:"interactionCount"`
	DurationMinutes  float64   `db:"duration_minutes" json:"durationMinutes"`
	StartTime        time.Time `db:"start_time" json:"startTime"`
	EndTime          time.Time `db:"end_time" json:"endTime"`
}

// FocusRecord is the immutable result of scoring one sensor batch.
type FocusRecord struct {
	ID           string       `db:"id" json:"id"`
	StudentID    string       `db:"student_id" json:"studentId"`
	ClassID      string       `db:"class_id" json:"classId"`
	Score        float64      `db:"score" json:"score"`
	ComputedAt   time.Time    `db:"computed_at" json:"computedAt"`
	SourceSample SensorSample `json:"sourceSample"`
}

// FocusTrend classifies the direction of a student's scores over time.
type FocusTrend string

const (
	FocusTrendImproving FocusTrend = "improving"
	FocusTrendDeclining FocusTrend = "declining"
	FocusTrendStable    FocusTrend = "stable"
)

// TimeRange bounds analytics queries. Nil bounds are open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// FocusSummary condenses a student's focus history.
type FocusSummary struct {
	AverageFocus *float64   `json:"averageFocus"`
	RecordCount  int        `json:"recordCount"`
	Trend        FocusTrend `json:"trend"`
}

// ClassEngagementSummary is derived on demand from a class' focus records.
type ClassEngagementSummary struct {
	ClassID             string             `json:"classId"`
	AverageClassFocus   *float64           `json:"averageClassFocus"`
	SampleCount         int                `json:"sampleCount"`
	StudentCount        int                `json:"studentCount"`
	PerStudentBreakdown map[string]float64 `json:"perStudentBreakdown"`
}

// TrendPoint is one daily bucket of a student's trend series.
type TrendPoint struct {
	Date         time.Time `json:"date"`
	AverageScore float64   `json:"averageScore"`
	SampleCount  int       `json:"sampleCount"`
}

// ClassFocusRollup summarises one class on the dashboard.
type ClassFocusRollup struct {
	ClassID           string   `json:"classId"`
	ClassName         string   `json:"className"`
	Section           string   `json:"section"`
	AverageClassFocus *float64 `json:"averageClassFocus"`
	SampleCount       int      `json:"sampleCount"`
	StudentCount      int      `json:"studentCount"`
}
