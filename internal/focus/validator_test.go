package focus

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validBatch() SensorBatch {
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	return SensorBatch{
		StudentID: "student-1",
		ClassID:   "class-1",
		SensorData: SensorPayload{
			HeartRateAvg:     ptr(75.0),
			MovementCount:    ptr(5.0),
			InteractionCount: ptr(2.0),
			DurationMinutes:  ptr(45.0),
			StartTime:        &start,
			EndTime:          &end,
		},
	}
}

func requireValidationError(t *testing.T, err error, field string) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected ValidationError, got %T", err)
	assert.Equal(t, field, vErr.Field)
	return vErr
}

func TestValidatorAcceptsValidBatch(t *testing.T) {
	v := NewValidator(DefaultBounds())

	sample, err := v.Validate(validBatch())
	require.NoError(t, err)
	assert.Equal(t, 75.0, sample.HeartRateAvg)
	assert.Equal(t, 5, sample.MovementCount)
	assert.Equal(t, 2, sample.InteractionCount)
	assert.Equal(t, 45.0, sample.DurationMinutes)
	assert.True(t, sample.StartTime.Before(sample.EndTime))
}

func TestValidatorRejectsMissingFields(t *testing.T) {
	v := NewValidator(DefaultBounds())

	cases := map[string]func(b *SensorBatch){
		"studentId":        func(b *SensorBatch) { b.StudentID = "" },
		"classId":          func(b *SensorBatch) { b.ClassID = "" },
		"heartRateAvg":     func(b *SensorBatch) { b.SensorData.HeartRateAvg = nil },
		"movementCount":    func(b *SensorBatch) { b.SensorData.MovementCount = nil },
		"interactionCount": func(b *SensorBatch) { b.SensorData.InteractionCount = nil },
		"durationMinutes":  func(b *SensorBatch) { b.SensorData.DurationMinutes = nil },
		"startTime":        func(b *SensorBatch) { b.SensorData.StartTime = nil },
		"endTime":          func(b *SensorBatch) { b.SensorData.EndTime = nil },
	}

	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			batch := validBatch()
			mutate(&batch)
			_, err := v.Validate(batch)
			vErr := requireValidationError(t, err, field)
			assert.Equal(t, "is required", vErr.Reason)
		})
	}
}

func TestValidatorRejectsEmptySensorData(t *testing.T) {
	v := NewValidator(DefaultBounds())

	_, err := v.Validate(SensorBatch{StudentID: "student-1", ClassID: "class-1"})
	requireValidationError(t, err, "heartRateAvg")
}

func TestValidatorZeroCountsArePresent(t *testing.T) {
	v := NewValidator(DefaultBounds())
	batch := validBatch()
	batch.SensorData.MovementCount = ptr(0.0)
	batch.SensorData.InteractionCount = ptr(0.0)

	sample, err := v.Validate(batch)
	require.NoError(t, err)
	assert.Zero(t, sample.MovementCount)
	assert.Zero(t, sample.InteractionCount)
}

func TestValidatorRangeChecks(t *testing.T) {
	v := NewValidator(DefaultBounds())

	tests := []struct {
		name   string
		mutate func(b *SensorBatch)
		field  string
	}{
		{"heart rate too low", func(b *SensorBatch) { b.SensorData.HeartRateAvg = ptr(25.0) }, "heartRateAvg"},
		{"heart rate too high", func(b *SensorBatch) { b.SensorData.HeartRateAvg = ptr(230.0) }, "heartRateAvg"},
		{"fractional movement", func(b *SensorBatch) { b.SensorData.MovementCount = ptr(2.5) }, "movementCount"},
		{"negative interactions", func(b *SensorBatch) { b.SensorData.InteractionCount = ptr(-1.0) }, "interactionCount"},
		{"zero duration", func(b *SensorBatch) { b.SensorData.DurationMinutes = ptr(0.0) }, "durationMinutes"},
		{"negative duration", func(b *SensorBatch) { b.SensorData.DurationMinutes = ptr(-5.0) }, "durationMinutes"},
		{"start equals end", func(b *SensorBatch) { b.SensorData.EndTime = b.SensorData.StartTime }, "startTime"},
		{"start after end", func(b *SensorBatch) {
			before := b.SensorData.StartTime.Add(-time.Hour)
			b.SensorData.EndTime = &before
		}, "startTime"},
		{"duration disagrees with window", func(b *SensorBatch) { b.SensorData.DurationMinutes = ptr(30.0) }, "durationMinutes"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			batch := validBatch()
			tc.mutate(&batch)
			_, err := v.Validate(batch)
			requireValidationError(t, err, tc.field)
		})
	}
}

func TestValidatorDurationWithinTolerance(t *testing.T) {
	v := NewValidator(DefaultBounds())
	batch := validBatch()
	batch.SensorData.DurationMinutes = ptr(42.0)

	_, err := v.Validate(batch)
	assert.NoError(t, err)
}

func TestBindingErrorNamesMistypedField(t *testing.T) {
	var batch SensorBatch
	err := json.Unmarshal([]byte(`{"studentId":"s","classId":"c","sensorData":{"heartRateAvg":"fast"}}`), &batch)
	require.Error(t, err)

	vErr := requireValidationError(t, BindingError(err), "heartRateAvg")
	assert.Equal(t, "must be a number", vErr.Reason)
}

func TestBindingErrorMalformedBody(t *testing.T) {
	var batch SensorBatch
	err := json.Unmarshal([]byte(`{"studentId":`), &batch)
	require.Error(t, err)

	requireValidationError(t, BindingError(err), "body")
}

func TestValidatorRejectsOversizedCounts(t *testing.T) {
	v := NewValidator(DefaultBounds())

	tests := []struct {
		name   string
		mutate func(b *SensorBatch)
		field  string
	}{
		{"movement beyond int64", func(b *SensorBatch) { b.SensorData.MovementCount = ptr(1e19) }, "movementCount"},
		{"movement beyond int32", func(b *SensorBatch) { b.SensorData.MovementCount = ptr(3e9) }, "movementCount"},
		{"interactions beyond int32", func(b *SensorBatch) { b.SensorData.InteractionCount = ptr(float64(MaxCountLimit) + 1) }, "interactionCount"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			batch := validBatch()
			tc.mutate(&batch)
			sample, err := v.Validate(batch)
			vErr := requireValidationError(t, err, tc.field)
			assert.Contains(t, vErr.Reason, "must not exceed")
			assert.Zero(t, sample.MovementCount)
		})
	}
}

func TestValidatorHonoursConfiguredCountCap(t *testing.T) {
	bounds := DefaultBounds()
	bounds.MaxCount = 500
	v := NewValidator(bounds)

	batch := validBatch()
	batch.SensorData.MovementCount = ptr(500.0)
	sample, err := v.Validate(batch)
	require.NoError(t, err)
	assert.Equal(t, 500, sample.MovementCount)

	batch.SensorData.MovementCount = ptr(501.0)
	_, err = v.Validate(batch)
	requireValidationError(t, err, "movementCount")
}

func TestValidatorCountCapFallsBackToLimit(t *testing.T) {
	bounds := DefaultBounds()
	bounds.MaxCount = 0
	v := NewValidator(bounds)

	batch := validBatch()
	batch.SensorData.MovementCount = ptr(float64(MaxCountLimit))
	batch.SensorData.DurationMinutes = ptr(45.0)
	_, err := v.Validate(batch)
	require.NoError(t, err)

	batch.SensorData.MovementCount = ptr(float64(MaxCountLimit) + 1)
	_, err = v.Validate(batch)
	requireValidationError(t, err, "movementCount")
}

func TestNewValidatorLeavesSharedInstanceUntouched(t *testing.T) {
	shared := validator.New()
	_ = NewValidator(DefaultBounds())

	type payload struct {
		StudentNumber string `json:"studentNumber" validate:"required"`
	}
	err := shared.Struct(payload{})
	var fieldErrs validator.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, "StudentNumber", fieldErrs[0].Field())
}
