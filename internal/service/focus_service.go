package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-focus-api/internal/dto"
	"github.com/noah-isme/sma-focus-api/internal/focus"
	"github.com/noah-isme/sma-focus-api/internal/models"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
	"github.com/noah-isme/sma-focus-api/pkg/export"
)

type focusStore interface {
	Save(ctx context.Context, record *models.FocusRecord) (*models.FocusRecord, error)
	QueryByStudent(ctx context.Context, studentID string, window models.TimeRange) ([]models.FocusRecord, error)
	QueryByClass(ctx context.Context, classID string, window models.TimeRange) ([]models.FocusRecord, error)
	QueryByClasses(ctx context.Context, classIDs []string, window models.TimeRange) ([]models.FocusRecord, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classLookup interface {
	ByID(ctx context.Context, id string) (*models.Class, error)
	ListAccessible(ctx context.Context, teacherID string) ([]models.Class, error)
}

// FocusServiceConfig tunes aggregation behaviour.
type FocusServiceConfig struct {
	TrendThreshold float64
	DefaultWindow  time.Duration
	Location       *time.Location
}

// FocusServiceParams groups constructor dependencies.
type FocusServiceParams struct {
	Store     focusStore
	Classes   classLookup
	Students  studentFinder
	Validator *focus.Validator
	Scorer    *focus.Scorer
	Cache     *CacheService
	Metrics   *MetricsService
	Logger    *zap.Logger
	Config    FocusServiceConfig
}

// FocusService scores sensor batches and aggregates stored scores into analytics.
type FocusService struct {
	store     focusStore
	classes   classLookup
	students  studentFinder
	validator *focus.Validator
	scorer    *focus.Scorer
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
	cfg       FocusServiceConfig
}

// NewFocusService constructs the service.
func NewFocusService(params FocusServiceParams) *FocusService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 30 * 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	// zero is a valid threshold: any change counts
	if cfg.TrendThreshold < 0 {
		cfg.TrendThreshold = 0.05
	}
	return &FocusService{
		store:     params.Store,
		classes:   params.Classes,
		students:  params.Students,
		validator: params.Validator,
		scorer:    params.Scorer,
		cache:     params.Cache,
		metrics:   params.Metrics,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// ProcessSensorData validates, scores and stores one sensor batch. The class and student must exist.
func (s *FocusService) ProcessSensorData(ctx context.Context, batch focus.SensorBatch) (*dto.ProcessSensorDataResponse, error) {
	sample, err := s.validator.Validate(batch)
	if err != nil {
		s.metrics.ObserveSensorBatch(BatchRejected, 0)
		return nil, validationError(err)
	}
	if err := s.checkParticipants(ctx, batch.StudentID, batch.ClassID); err != nil {
		return nil, err
	}

	score := s.scorer.Score(sample)
	start := time.Now()
	saved, err := s.store.Save(ctx, &models.FocusRecord{
		StudentID:    batch.StudentID,
		ClassID:      batch.ClassID,
		Score:        score,
		SourceSample: sample,
	})
	s.metrics.ObserveDBQuery("focus_save", time.Since(start))
	if err != nil {
		s.metrics.ObserveSensorBatch(BatchFailed, 0)
		s.logger.Error("store focus record", zap.String("student_id", batch.StudentID), zap.Error(err))
		return nil, appErrors.Storage(err, "failed to store focus record")
	}
	s.metrics.ObserveSensorBatch(BatchAccepted, score)

	_ = s.cache.Invalidate(ctx,
		studentFocusPattern(batch.StudentID),
		studentTrendsPattern(batch.StudentID),
		classAnalyticsPattern(batch.ClassID),
		"analytics:dashboard:*",
	)

	s.logger.Debug("sensor batch scored",
		zap.String("student_id", batch.StudentID),
		zap.String("class_id", batch.ClassID),
		zap.Float64("score", score),
	)
	return &dto.ProcessSensorDataResponse{FocusScore: score, Record: *saved}, nil
}

// StudentFocusData returns a student's records oldest first with their summary.
func (s *FocusService) StudentFocusData(ctx context.Context, studentID string, window models.TimeRange) (*dto.StudentFocusResponse, bool, error) {
	resolved, windowKey := s.resolveWindow(window)
	key := fmt.Sprintf("analytics:focus:%s:%s", studentID, windowKey)
	return cached(ctx, s.cache, key, func() (*dto.StudentFocusResponse, error) {
		records, err := s.loadStudent(ctx, studentID, resolved)
		if err != nil {
			return nil, err
		}
		return &dto.StudentFocusResponse{
			StudentID: studentID,
			FocusData: collectRecords(focus.Chronological(records)),
			Summary:   focus.Summarize(records, s.cfg.TrendThreshold),
		}, nil
	})
}

// ClassAnalytics returns the class records and their engagement summary.
func (s *FocusService) ClassAnalytics(ctx context.Context, classID string, window models.TimeRange) (*dto.ClassAnalyticsResponse, bool, error) {
	if _, err := s.lookupClass(ctx, classID); err != nil {
		return nil, false, err
	}
	return s.classAnalytics(ctx, classID, window)
}

func (s *FocusService) classAnalytics(ctx context.Context, classID string, window models.TimeRange) (*dto.ClassAnalyticsResponse, bool, error) {
	resolved, windowKey := s.resolveWindow(window)
	key := fmt.Sprintf("analytics:class:%s:%s", classID, windowKey)
	return cached(ctx, s.cache, key, func() (*dto.ClassAnalyticsResponse, error) {
		start := time.Now()
		records, err := s.store.QueryByClass(ctx, classID, resolved)
		s.metrics.ObserveDBQuery("focus_by_class", time.Since(start))
		if err != nil {
			return nil, appErrors.Storage(err, "failed to load class analytics")
		}
		ordered := focus.Chronological(records)
		return &dto.ClassAnalyticsResponse{
			Analytics: collectRecords(ordered),
			Summary:   summarizeClass(classID, ordered),
		}, nil
	})
}

// StudentTrends returns a daily series of mean scores plus the overall trend.
func (s *FocusService) StudentTrends(ctx context.Context, studentID string, window models.TimeRange) (*dto.StudentTrendsResponse, bool, error) {
	resolved, windowKey := s.resolveWindow(window)
	key := fmt.Sprintf("analytics:trends:%s:%s", studentID, windowKey)
	return cached(ctx, s.cache, key, func() (*dto.StudentTrendsResponse, error) {
		records, err := s.loadStudent(ctx, studentID, resolved)
		if err != nil {
			return nil, err
		}
		ordered := focus.Chronological(records)
		series := slices.Collect(focus.DailyBuckets(ordered, s.cfg.Location))
		if series == nil {
			series = []models.TrendPoint{}
		}
		return &dto.StudentTrendsResponse{
			StudentID: studentID,
			Series:    series,
			Trend:     focus.ClassifyTrend(focus.Scores(ordered), s.cfg.TrendThreshold),
		}, nil
	})
}

// DashboardAnalytics rolls up every class the caller may see. Admins see all classes, teachers their own.
func (s *FocusService) DashboardAnalytics(ctx context.Context, userID string, role models.UserRole, window models.TimeRange) (*dto.DashboardAnalyticsResponse, bool, error) {
	var teacherID string
	switch role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		teacherID = userID
	default:
		return nil, false, appErrors.ErrForbidden
	}

	resolved, windowKey := s.resolveWindow(window)
	scope := teacherID
	if scope == "" {
		scope = "all"
	}
	key := fmt.Sprintf("analytics:dashboard:%s:%s", scope, windowKey)
	return cached(ctx, s.cache, key, func() (*dto.DashboardAnalyticsResponse, error) {
		classes, err := s.classes.ListAccessible(ctx, teacherID)
		if err != nil {
			return nil, appErrors.Storage(err, "failed to load classes")
		}
		ids := make([]string, 0, len(classes))
		for _, c := range classes {
			ids = append(ids, c.ID)
		}

		start := time.Now()
		records, err := s.store.QueryByClasses(ctx, ids, resolved)
		s.metrics.ObserveDBQuery("focus_by_classes", time.Since(start))
		if err != nil {
			return nil, appErrors.Storage(err, "failed to load dashboard analytics")
		}

		byClass := make(map[string][]models.FocusRecord, len(classes))
		for _, r := range records {
			byClass[r.ClassID] = append(byClass[r.ClassID], r)
		}
		rollups := make([]models.ClassFocusRollup, 0, len(classes))
		for _, c := range classes {
			summary := summarizeClass(c.ID, slices.Values(byClass[c.ID]))
			rollups = append(rollups, models.ClassFocusRollup{
				ClassID:           c.ID,
				ClassName:         c.ClassName,
				Section:           c.Section,
				AverageClassFocus: summary.AverageClassFocus,
				SampleCount:       summary.SampleCount,
				StudentCount:      summary.StudentCount,
			})
		}

		overall, total := focus.Mean(focus.Scores(slices.Values(records)))
		return &dto.DashboardAnalyticsResponse{
			Classes:             rollups,
			OverallAverageFocus: overall,
			TotalSamples:        total,
			ClassCount:          len(rollups),
			GeneratedAt:         s.now().UTC(),
		}, nil
	})
}

// ClassAnalyticsExport renders the per-student breakdown of a class.
func (s *FocusService) ClassAnalyticsExport(ctx context.Context, classID string, window models.TimeRange, format export.Format) ([]byte, error) {
	class, err := s.lookupClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	analytics, _, err := s.classAnalytics(ctx, classID, window)
	if err != nil {
		return nil, err
	}

	samples := make(map[string]int)
	for _, r := range analytics.Analytics {
		samples[r.StudentID]++
	}
	breakdown := analytics.Summary.PerStudentBreakdown
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Focus breakdown %s %s", class.ClassName, class.Section),
		Headers: []string{"Student ID", "Samples", "Average Focus"},
	}
	for _, id := range focus.SortedStudentIDs(breakdown) {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student ID":    id,
			"Samples":       strconv.Itoa(samples[id]),
			"Average Focus": strconv.FormatFloat(breakdown[id], 'f', 2, 64),
		})
	}

	payload, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, nil
}

func (s *FocusService) loadStudent(ctx context.Context, studentID string, window models.TimeRange) ([]models.FocusRecord, error) {
	start := time.Now()
	records, err := s.store.QueryByStudent(ctx, studentID, window)
	s.metrics.ObserveDBQuery("focus_by_student", time.Since(start))
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load focus records")
	}
	return records, nil
}

func (s *FocusService) checkParticipants(ctx context.Context, studentID, classID string) error {
	if _, err := s.lookupClass(ctx, classID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.metrics.ObserveSensorBatch(BatchRejected, 0)
		}
		return err
	}
	if s.students == nil {
		return nil
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return appErrors.Storage(err, "failed to load student")
	}
	if student == nil {
		s.metrics.ObserveSensorBatch(BatchRejected, 0)
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}

func (s *FocusService) lookupClass(ctx context.Context, classID string) (*models.Class, error) {
	class, err := s.classes.ByID(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load class")
	}
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return class, nil
}

// resolveWindow applies the default look-back when both bounds are missing and returns the cache key segment.
func (s *FocusService) resolveWindow(window models.TimeRange) (models.TimeRange, string) {
	if window.From == nil && window.To == nil {
		from := s.now().UTC().Add(-s.cfg.DefaultWindow)
		return models.TimeRange{From: &from}, "default"
	}
	key := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return strconv.FormatInt(t.Unix(), 10)
	}
	return window, key(window.From) + "_" + key(window.To)
}

func summarizeClass(classID string, records iter.Seq[models.FocusRecord]) models.ClassEngagementSummary {
	avg, n := focus.Mean(focus.Scores(records))
	breakdown := focus.PerStudentAverages(records)
	return models.ClassEngagementSummary{
		ClassID:             classID,
		AverageClassFocus:   avg,
		SampleCount:         n,
		StudentCount:        len(breakdown),
		PerStudentBreakdown: breakdown,
	}
}

func collectRecords(seq iter.Seq[models.FocusRecord]) []models.FocusRecord {
	out := slices.Collect(seq)
	if out == nil {
		return []models.FocusRecord{}
	}
	return out
}

func validationError(err error) error {
	var vErr *focus.ValidationError
	if errors.As(err, &vErr) {
		return appErrors.Validation(vErr.Field, vErr.Reason)
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sensor batch")
}

func studentFocusPattern(studentID string) string {
	return fmt.Sprintf("analytics:focus:%s:*", studentID)
}

func studentTrendsPattern(studentID string) string {
	return fmt.Sprintf("analytics:trends:%s:*", studentID)
}

func classAnalyticsPattern(classID string) string {
	return fmt.Sprintf("analytics:class:%s:*", classID)
}
