package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-focus-api/internal/focus"
	"github.com/noah-isme/sma-focus-api/internal/models"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
	"github.com/noah-isme/sma-focus-api/pkg/export"
)

type fakeFocusStore struct {
	records      []models.FocusRecord
	saveErr      error
	queryErr     error
	saveCalls    int
	queryCalls   int
	lastWindow   models.TimeRange
	lastClassIDs []string
}

func (f *fakeFocusStore) Save(_ context.Context, record *models.FocusRecord) (*models.FocusRecord, error) {
	f.saveCalls++
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	saved := *record
	saved.ID = fmt.Sprintf("rec-%d", f.saveCalls)
	saved.ComputedAt = time.Date(2024, 3, 4, 9, f.saveCalls, 0, 0, time.UTC)
	f.records = append([]models.FocusRecord{saved}, f.records...)
	return &saved, nil
}

func (f *fakeFocusStore) filter(keep func(models.FocusRecord) bool, window models.TimeRange) ([]models.FocusRecord, error) {
	f.queryCalls++
	f.lastWindow = window
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := []models.FocusRecord{}
	for _, r := range f.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFocusStore) QueryByStudent(_ context.Context, studentID string, window models.TimeRange) ([]models.FocusRecord, error) {
	return f.filter(func(r models.FocusRecord) bool { return r.StudentID == studentID }, window)
}

func (f *fakeFocusStore) QueryByClass(_ context.Context, classID string, window models.TimeRange) ([]models.FocusRecord, error) {
	return f.filter(func(r models.FocusRecord) bool { return r.ClassID == classID }, window)
}

func (f *fakeFocusStore) QueryByClasses(_ context.Context, classIDs []string, window models.TimeRange) ([]models.FocusRecord, error) {
	f.lastClassIDs = classIDs
	set := make(map[string]bool, len(classIDs))
	for _, id := range classIDs {
		set[id] = true
	}
	return f.filter(func(r models.FocusRecord) bool { return set[r.ClassID] }, window)
}

type fakeClasses struct {
	classes       []models.Class
	lastTeacherID string
	err           error
}

func (f *fakeClasses) ByID(_ context.Context, id string) (*models.Class, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.classes {
		if c.ID == id {
			class := c
			return &class, nil
		}
	}
	return nil, nil
}

func (f *fakeClasses) ListAccessible(_ context.Context, teacherID string) ([]models.Class, error) {
	f.lastTeacherID = teacherID
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Class
	for _, c := range f.classes {
		if teacherID == "" || (c.TeacherID != nil && *c.TeacherID == teacherID) {
			out = append(out, c)
		}
	}
	return out, nil
}

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = raw
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func strPtr(v string) *string { return &v }

func f64(v float64) *float64 { return &v }

func newFocusServiceForTest(t *testing.T, store *fakeFocusStore, classes *fakeClasses, cache *CacheService) *FocusService {
	t.Helper()
	scorer, err := focus.NewScorer(focus.DefaultScoringConfig())
	require.NoError(t, err)
	svc := NewFocusService(FocusServiceParams{
		Store:     store,
		Classes:   classes,
		Students:  fakeStudentDirectory{},
		Validator: focus.NewValidator(focus.DefaultBounds()),
		Scorer:    scorer,
		Cache:     cache,
		Logger:    zap.NewNop(),
		Config:    FocusServiceConfig{TrendThreshold: 0.05, DefaultWindow: 720 * time.Hour},
	})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func referenceBatch() focus.SensorBatch {
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	return focus.SensorBatch{
		StudentID: "s1",
		ClassID:   "c1",
		SensorData: focus.SensorPayload{
			HeartRateAvg:     f64(75),
			MovementCount:    f64(5),
			InteractionCount: f64(2),
			DurationMinutes:  f64(45),
			StartTime:        &start,
			EndTime:          &end,
		},
	}
}

func TestProcessSensorDataScoresAndStores(t *testing.T) {
	store := &fakeFocusStore{}
	svc := newFocusServiceForTest(t, store, &fakeClasses{classes: []models.Class{physics}}, nil)

	resp, err := svc.ProcessSensorData(context.Background(), referenceBatch())
	require.NoError(t, err)
	assert.InDelta(t, 74.8, resp.FocusScore, 1e-9)
	assert.GreaterOrEqual(t, resp.FocusScore, 0.0)
	assert.LessOrEqual(t, resp.FocusScore, 100.0)
	assert.Equal(t, "rec-1", resp.Record.ID)
	assert.Equal(t, resp.FocusScore, resp.Record.Score)
	assert.Equal(t, 5, resp.Record.SourceSample.MovementCount)
	assert.Equal(t, 1, store.saveCalls)
}

func TestProcessSensorDataTwiceCreatesDistinctRecords(t *testing.T) {
	store := &fakeFocusStore{}
	svc := newFocusServiceForTest(t, store, &fakeClasses{classes: []models.Class{physics}}, nil)

	first, err := svc.ProcessSensorData(context.Background(), referenceBatch())
	require.NoError(t, err)
	second, err := svc.ProcessSensorData(context.Background(), referenceBatch())
	require.NoError(t, err)

	assert.NotEqual(t, first.Record.ID, second.Record.ID)
	assert.Len(t, store.records, 2)
}

func TestProcessSensorDataRejectsEmptySensorData(t *testing.T) {
	store := &fakeFocusStore{}
	svc := newFocusServiceForTest(t, store, &fakeClasses{classes: []models.Class{physics}}, nil)

	_, err := svc.ProcessSensorData(context.Background(), focus.SensorBatch{StudentID: "s1", ClassID: "c1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "heartRateAvg", appErr.Field)
	assert.Zero(t, store.saveCalls)
}

func TestProcessSensorDataStorageFailure(t *testing.T) {
	store := &fakeFocusStore{saveErr: errors.New("pq: connection refused")}
	svc := newFocusServiceForTest(t, store, &fakeClasses{classes: []models.Class{physics}}, nil)

	_, err := svc.ProcessSensorData(context.Background(), referenceBatch())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStorage.Code, appErr.Code)
	assert.Equal(t, 500, appErr.Status)
	assert.NotContains(t, appErr.Message, "connection refused")
}

func TestProcessSensorDataRejectsUnknownParticipants(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *focus.SensorBatch)
		message string
	}{
		{"unknown class", func(b *focus.SensorBatch) { b.ClassID = "c-missing" }, "class not found"},
		{"unknown student", func(b *focus.SensorBatch) { b.StudentID = "ghost" }, "student not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeFocusStore{}
			svc := newFocusServiceForTest(t, store, &fakeClasses{classes: []models.Class{physics}}, nil)
			batch := referenceBatch()
			tc.mutate(&batch)

			_, err := svc.ProcessSensorData(context.Background(), batch)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
			assert.Equal(t, tc.message, appErr.Message)
			assert.Zero(t, store.saveCalls)
		})
	}
}

func TestProcessSensorDataValidatesBeforeLookup(t *testing.T) {
	store := &fakeFocusStore{}
	svc := newFocusServiceForTest(t, store, &fakeClasses{}, nil)

	_, err := svc.ProcessSensorData(context.Background(), focus.SensorBatch{StudentID: "s1", ClassID: "c-missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNewFocusServiceKeepsZeroTrendThreshold(t *testing.T) {
	svc := NewFocusService(FocusServiceParams{Config: FocusServiceConfig{TrendThreshold: 0}})
	assert.Zero(t, svc.cfg.TrendThreshold)

	svc = NewFocusService(FocusServiceParams{Config: FocusServiceConfig{TrendThreshold: -1}})
	assert.Equal(t, 0.05, svc.cfg.TrendThreshold)
}

func TestStudentFocusDataSummary(t *testing.T) {
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	store := &fakeFocusStore{records: []models.FocusRecord{
		{ID: "r3", StudentID: "s1", ClassID: "c1", Score: 80, ComputedAt: base.Add(48 * time.Hour)},
		{ID: "r2", StudentID: "s1", ClassID: "c1", Score: 70, ComputedAt: base.Add(24 * time.Hour)},
		{ID: "r1", StudentID: "s1", ClassID: "c1", Score: 60, ComputedAt: base},
		{ID: "x", StudentID: "s2", ClassID: "c1", Score: 10, ComputedAt: base},
	}}
	svc := newFocusServiceForTest(t, store, &fakeClasses{}, nil)

	resp, hit, err := svc.StudentFocusData(context.Background(), "s1", models.TimeRange{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, resp.FocusData, 3)
	assert.Equal(t, "r1", resp.FocusData[0].ID)
	assert.Equal(t, len(resp.FocusData), resp.Summary.RecordCount)
	require.NotNil(t, resp.Summary.AverageFocus)
	assert.Equal(t, 70.0, *resp.Summary.AverageFocus)
	assert.Equal(t, models.FocusTrendImproving, resp.Summary.Trend)

	require.NotNil(t, store.lastWindow.From)
	assert.Equal(t, fixedNow.Add(-720*time.Hour), *store.lastWindow.From)
	assert.Nil(t, store.lastWindow.To)
}

func TestStudentFocusDataEmpty(t *testing.T) {
	svc := newFocusServiceForTest(t, &fakeFocusStore{}, &fakeClasses{}, nil)

	resp, _, err := svc.StudentFocusData(context.Background(), "ghost", models.TimeRange{})
	require.NoError(t, err)
	assert.NotNil(t, resp.FocusData)
	assert.Empty(t, resp.FocusData)
	assert.Nil(t, resp.Summary.AverageFocus)
	assert.Zero(t, resp.Summary.RecordCount)
	assert.Equal(t, models.FocusTrendStable, resp.Summary.Trend)
}

func TestStudentFocusDataStorageError(t *testing.T) {
	svc := newFocusServiceForTest(t, &fakeFocusStore{queryErr: errors.New("timeout")}, &fakeClasses{}, nil)

	_, _, err := svc.StudentFocusData(context.Background(), "s1", models.TimeRange{})
	assert.True(t, errors.Is(err, appErrors.ErrStorage))
}

func TestClassAnalyticsZeroRecords(t *testing.T) {
	classes := &fakeClasses{classes: []models.Class{{ID: "c1", ClassName: "Physics", Section: "A"}}}
	svc := newFocusServiceForTest(t, &fakeFocusStore{}, classes, nil)

	resp, _, err := svc.ClassAnalytics(context.Background(), "c1", models.TimeRange{})
	require.NoError(t, err)
	assert.Nil(t, resp.Summary.AverageClassFocus)
	assert.Zero(t, resp.Summary.SampleCount)
	assert.Empty(t, resp.Summary.PerStudentBreakdown)
	assert.NotNil(t, resp.Analytics)
}

func TestClassAnalyticsBreakdown(t *testing.T) {
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	store := &fakeFocusStore{records: []models.FocusRecord{
		{StudentID: "s1", ClassID: "c1", Score: 80, ComputedAt: base},
		{StudentID: "s1", ClassID: "c1", Score: 60, ComputedAt: base.Add(time.Hour)},
		{StudentID: "s2", ClassID: "c1", Score: 40, ComputedAt: base},
		{StudentID: "s3", ClassID: "c2", Score: 99, ComputedAt: base},
	}}
	classes := &fakeClasses{classes: []models.Class{{ID: "c1"}}}
	svc := newFocusServiceForTest(t, store, classes, nil)

	from := base.Add(-time.Hour)
	resp, _, err := svc.ClassAnalytics(context.Background(), "c1", models.TimeRange{From: &from})
	require.NoError(t, err)
	require.NotNil(t, resp.Summary.AverageClassFocus)
	assert.Equal(t, 60.0, *resp.Summary.AverageClassFocus)
	assert.Equal(t, 3, resp.Summary.SampleCount)
	assert.Equal(t, 2, resp.Summary.StudentCount)
	assert.Equal(t, map[string]float64{"s1": 70, "s2": 40}, resp.Summary.PerStudentBreakdown)
	assert.Equal(t, &from, store.lastWindow.From)
}

func TestClassAnalyticsUnknownClass(t *testing.T) {
	svc := newFocusServiceForTest(t, &fakeFocusStore{}, &fakeClasses{}, nil)

	_, _, err := svc.ClassAnalytics(context.Background(), "missing", models.TimeRange{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentTrendsBucketsByDay(t *testing.T) {
	day := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	store := &fakeFocusStore{records: []models.FocusRecord{
		{StudentID: "s1", Score: 50, ComputedAt: day.Add(72 * time.Hour)},
		{StudentID: "s1", Score: 90, ComputedAt: day.Add(2 * time.Hour)},
		{StudentID: "s1", Score: 70, ComputedAt: day},
	}}
	svc := newFocusServiceForTest(t, store, &fakeClasses{}, nil)

	resp, _, err := svc.StudentTrends(context.Background(), "s1", models.TimeRange{})
	require.NoError(t, err)
	require.Len(t, resp.Series, 2)
	assert.Equal(t, 80.0, resp.Series[0].AverageScore)
	assert.Equal(t, 2, resp.Series[0].SampleCount)
	assert.Equal(t, 50.0, resp.Series[1].AverageScore)
	assert.Equal(t, models.FocusTrendDeclining, resp.Trend)
}

func TestStudentTrendsEmptySeries(t *testing.T) {
	svc := newFocusServiceForTest(t, &fakeFocusStore{}, &fakeClasses{}, nil)

	resp, _, err := svc.StudentTrends(context.Background(), "s1", models.TimeRange{})
	require.NoError(t, err)
	assert.NotNil(t, resp.Series)
	assert.Empty(t, resp.Series)
	assert.Equal(t, models.FocusTrendStable, resp.Trend)
}

func dashboardFixture() (*fakeFocusStore, *fakeClasses) {
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	store := &fakeFocusStore{records: []models.FocusRecord{
		{StudentID: "s1", ClassID: "c1", Score: 80, ComputedAt: base},
		{StudentID: "s2", ClassID: "c1", Score: 60, ComputedAt: base},
		{StudentID: "s3", ClassID: "c3", Score: 30, ComputedAt: base},
	}}
	classes := &fakeClasses{classes: []models.Class{
		{ID: "c1", ClassName: "Physics", Section: "A", TeacherID: strPtr("t1")},
		{ID: "c2", ClassName: "Biology", Section: "B", TeacherID: strPtr("t1")},
		{ID: "c3", ClassName: "History", Section: "C", TeacherID: strPtr("t2")},
	}}
	return store, classes
}

func TestDashboardAnalyticsTeacherScope(t *testing.T) {
	store, classes := dashboardFixture()
	svc := newFocusServiceForTest(t, store, classes, nil)

	resp, _, err := svc.DashboardAnalytics(context.Background(), "t1", models.RoleTeacher, models.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, "t1", classes.lastTeacherID)
	assert.Equal(t, []string{"c1", "c2"}, store.lastClassIDs)
	require.Len(t, resp.Classes, 2)
	require.NotNil(t, resp.Classes[0].AverageClassFocus)
	assert.Equal(t, 70.0, *resp.Classes[0].AverageClassFocus)
	assert.Nil(t, resp.Classes[1].AverageClassFocus)
	assert.Zero(t, resp.Classes[1].SampleCount)
	require.NotNil(t, resp.OverallAverageFocus)
	assert.Equal(t, 70.0, *resp.OverallAverageFocus)
	assert.Equal(t, 2, resp.TotalSamples)
	assert.Equal(t, 2, resp.ClassCount)
	assert.Equal(t, fixedNow, resp.GeneratedAt)
}

func TestDashboardAnalyticsAdminSeesAll(t *testing.T) {
	store, classes := dashboardFixture()
	svc := newFocusServiceForTest(t, store, classes, nil)

	resp, _, err := svc.DashboardAnalytics(context.Background(), "admin-1", models.RoleAdmin, models.TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, classes.lastTeacherID)
	assert.Equal(t, 3, resp.ClassCount)
	assert.Equal(t, 3, resp.TotalSamples)
}

func TestDashboardAnalyticsNoClasses(t *testing.T) {
	svc := newFocusServiceForTest(t, &fakeFocusStore{}, &fakeClasses{}, nil)

	resp, _, err := svc.DashboardAnalytics(context.Background(), "t9", models.RoleTeacher, models.TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, resp.Classes)
	assert.Nil(t, resp.OverallAverageFocus)
}

func TestDashboardAnalyticsStudentForbidden(t *testing.T) {
	svc := newFocusServiceForTest(t, &fakeFocusStore{}, &fakeClasses{}, nil)

	_, _, err := svc.DashboardAnalytics(context.Background(), "u1", models.RoleStudent, models.TimeRange{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestStudentFocusDataCachedAndInvalidated(t *testing.T) {
	store := &fakeFocusStore{}
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := newFocusServiceForTest(t, store, &fakeClasses{classes: []models.Class{physics}}, cache)

	_, hit, err := svc.StudentFocusData(context.Background(), "s1", models.TimeRange{})
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = svc.StudentFocusData(context.Background(), "s1", models.TimeRange{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, store.queryCalls)

	_, err = svc.ProcessSensorData(context.Background(), referenceBatch())
	require.NoError(t, err)

	resp, hit, err := svc.StudentFocusData(context.Background(), "s1", models.TimeRange{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, resp.Summary.RecordCount)
	assert.Equal(t, 2, store.queryCalls)
}

func TestClassAnalyticsExportCSV(t *testing.T) {
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	store := &fakeFocusStore{records: []models.FocusRecord{
		{StudentID: "s2", ClassID: "c1", Score: 40, ComputedAt: base},
		{StudentID: "s1", ClassID: "c1", Score: 80, ComputedAt: base},
	}}
	classes := &fakeClasses{classes: []models.Class{{ID: "c1", ClassName: "Physics", Section: "A"}}}
	svc := newFocusServiceForTest(t, store, classes, nil)

	out, err := svc.ClassAnalyticsExport(context.Background(), "c1", models.TimeRange{}, export.FormatCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student ID,Samples,Average Focus", lines[0])
	assert.Equal(t, "s1,1,80.00", lines[1])
	assert.Equal(t, "s2,1,40.00", lines[2])
}
