package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-focus-api/internal/models"
)

const focusRecordColumns = `id, student_id, class_id, score, computed_at, heart_rate_avg, movement_count, interaction_count, duration_minutes, start_time, end_time`

type focusRecordRow struct {
	ID               string    `db:"id"`
	StudentID        string    `db:"student_id"`
	ClassID          string    `db:"class_id"`
	Score            float64   `db:"score"`
	ComputedAt       time.Time `db:"computed_at"`
	HeartRateAvg     float64   `db:"heart_rate_avg"`
	MovementCount    int       `db:"movement_count"`
	InteractionCount int       `db:"interaction_count"`
	DurationMinutes  float64   `db:"duration_minutes"`
	StartTime        time.Time `db:"start_time"`
	EndTime          time.Time `db:"end_time"`
}

func (row focusRecordRow) toModel() models.FocusRecord {
	return models.FocusRecord{
		ID:         row.ID,
		StudentID:  row.StudentID,
		ClassID:    row.ClassID,
		Score:      row.Score,
		ComputedAt: row.ComputedAt,
		SourceSample: models.SensorSample{
			HeartRateAvg:     row.HeartRateAvg,
			MovementCount:    row.MovementCount,
			InteractionCount: row.InteractionCount,
			DurationMinutes:  row.DurationMinutes,
			StartTime:        row.StartTime,
			EndTime:          row.EndTime,
		},
	}
}

// FocusRepository persists scored sensor batches.
type FocusRepository struct {
	db *sqlx.DB
}

// NewFocusRepository constructs the repository.
func NewFocusRepository(db *sqlx.DB) *FocusRepository {
	return &FocusRepository{db: db}
}

// Save inserts a new record, assigning its identifier and computation time.
func (r *FocusRepository) Save(ctx context.Context, record *models.FocusRecord) (*models.FocusRecord, error) {
	id := uuid.NewString()
	computedAt := time.Now().UTC()
	s := record.SourceSample

	query := `INSERT INTO focus_records (` + focusRecordColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING ` + focusRecordColumns
	var row focusRecordRow
	if err := r.db.GetContext(ctx, &row, query,
		id, record.StudentID, record.ClassID, record.Score, computedAt,
		s.HeartRateAvg, s.MovementCount, s.InteractionCount, s.DurationMinutes, s.StartTime, s.EndTime,
	); err != nil {
		return nil, fmt.Errorf("insert focus record: %w", err)
	}
	saved := row.toModel()
	return &saved, nil
}

// QueryByStudent returns a student's records newest first.
func (r *FocusRepository) QueryByStudent(ctx context.Context, studentID string, window models.TimeRange) ([]models.FocusRecord, error) {
	records, err := r.query(ctx, "student_id = $1", studentID, window)
	if err != nil {
		return nil, fmt.Errorf("query focus records by student: %w", err)
	}
	return records, nil
}

// QueryByClass returns every record captured in a class, newest first.
func (r *FocusRepository) QueryByClass(ctx context.Context, classID string, window models.TimeRange) ([]models.FocusRecord, error) {
	records, err := r.query(ctx, "class_id = $1", classID, window)
	if err != nil {
		return nil, fmt.Errorf("query focus records by class: %w", err)
	}
	return records, nil
}

// QueryByClasses returns the records of several classes at once.
func (r *FocusRepository) QueryByClasses(ctx context.Context, classIDs []string, window models.TimeRange) ([]models.FocusRecord, error) {
	if len(classIDs) == 0 {
		return []models.FocusRecord{}, nil
	}
	records, err := r.query(ctx, "class_id = ANY($1)", pq.Array(classIDs), window)
	if err != nil {
		return nil, fmt.Errorf("query focus records by classes: %w", err)
	}
	return records, nil
}

func (r *FocusRepository) query(ctx context.Context, condition string, key interface{}, window models.TimeRange) ([]models.FocusRecord, error) {
	var builder strings.Builder
	builder.WriteString("SELECT " + focusRecordColumns + " FROM focus_records WHERE " + condition)
	args := []interface{}{key}
	if window.From != nil {
		args = append(args, *window.From)
		builder.WriteString(fmt.Sprintf(" AND computed_at >= $%d", len(args)))
	}
	if window.To != nil {
		args = append(args, *window.To)
		builder.WriteString(fmt.Sprintf(" AND computed_at <= $%d", len(args)))
	}
	builder.WriteString(" ORDER BY computed_at DESC")

	var rows []focusRecordRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, err
	}
	records := make([]models.FocusRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}
