package focus

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-focus-api/internal/models"
)

// ValidationError reports the first offending field of a sensor batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// SensorPayload is the raw sensorData object as submitted by a wearable gateway.
// Counts are decoded as floats so fractional values can be rejected explicitly.
type SensorPayload struct {
	HeartRateAvg     *float64   `json:"heartRateAvg" validate:"required"`
	MovementCount    *float64   `json:"movementCount" validate:"required"`
	InteractionCount *float64   `json:"interactionCount" validate:"required"`
	DurationMinutes  *float64   `json:"durationMinutes" validate:"required"`
	StartTime        *time.Time `json:"startTime" validate:"required"`
	EndTime          *time.Time `json:"endTime" validate:"required"`
}

// SensorBatch is one submission for a student in a class session.
type SensorBatch struct {
	StudentID  string        `json:"studentId" validate:"required"`
	ClassID    string        `json:"classId" validate:"required"`
	SensorData SensorPayload `json:"sensorData"`
}

// MaxCountLimit is the largest movement or interaction count that fits the storage columns.
const MaxCountLimit = math.MaxInt32

// Bounds holds the sanity limits applied after presence checks.
type Bounds struct {
	HeartRateMin      float64
	HeartRateMax      float64
	DurationTolerance time.Duration
	// MaxCount caps movementCount and interactionCount. Zero or anything above MaxCountLimit means MaxCountLimit.
	MaxCount int
}

// DefaultBounds returns the limits used when no configuration overrides them.
func DefaultBounds() Bounds {
	return Bounds{HeartRateMin: 30, HeartRateMax: 220, DurationTolerance: 5 * time.Minute, MaxCount: MaxCountLimit}
}

// Validator checks sensor batches and normalises them into samples.
type Validator struct {
	validate *validator.Validate
	bounds   Bounds
}

// NewValidator constructs a validator. It owns its validator/v10 instance so the
// json field naming it registers does not leak into other callers.
func NewValidator(bounds Bounds) *Validator {
	if bounds.MaxCount <= 0 || bounds.MaxCount > MaxCountLimit {
		bounds.MaxCount = MaxCountLimit
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	return &Validator{validate: validate, bounds: bounds}
}

// Validate returns the normalised sample or a *ValidationError naming the field at fault.
func (v *Validator) Validate(batch SensorBatch) (models.SensorSample, error) {
	if err := v.validate.Struct(batch); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.SensorSample{}, &ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
		}
		return models.SensorSample{}, &ValidationError{Field: "sensorData", Reason: err.Error()}
	}

	p := batch.SensorData
	if err := finite("heartRateAvg", *p.HeartRateAvg); err != nil {
		return models.SensorSample{}, err
	}
	if *p.HeartRateAvg < v.bounds.HeartRateMin || *p.HeartRateAvg > v.bounds.HeartRateMax {
		return models.SensorSample{}, &ValidationError{
			Field:  "heartRateAvg",
			Reason: fmt.Sprintf("must be between %g and %g", v.bounds.HeartRateMin, v.bounds.HeartRateMax),
		}
	}
	movement, err := count("movementCount", *p.MovementCount, v.bounds.MaxCount)
	if err != nil {
		return models.SensorSample{}, err
	}
	interactions, err := count("interactionCount", *p.InteractionCount, v.bounds.MaxCount)
	if err != nil {
		return models.SensorSample{}, err
	}
	if err := finite("durationMinutes", *p.DurationMinutes); err != nil {
		return models.SensorSample{}, err
	}
	if *p.DurationMinutes <= 0 {
		return models.SensorSample{}, &ValidationError{Field: "durationMinutes", Reason: "must be greater than 0"}
	}
	if !p.StartTime.Before(*p.EndTime) {
		return models.SensorSample{}, &ValidationError{Field: "startTime", Reason: "must be before endTime"}
	}
	window := p.EndTime.Sub(*p.StartTime).Minutes()
	if math.Abs(window-*p.DurationMinutes) > v.bounds.DurationTolerance.Minutes() {
		return models.SensorSample{}, &ValidationError{Field: "durationMinutes", Reason: "does not match the session window"}
	}

	return models.SensorSample{
		HeartRateAvg:     *p.HeartRateAvg,
		MovementCount:    movement,
		InteractionCount: interactions,
		DurationMinutes:  *p.DurationMinutes,
		StartTime:        p.StartTime.UTC(),
		EndTime:          p.EndTime.UTC(),
	}, nil
}

// BindingError converts a JSON decoding failure into a *ValidationError, naming the field when it had the wrong type.
func BindingError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if idx := strings.LastIndex(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		if field == "" {
			field = "sensorData"
		}
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be a %s", describeKind(typeErr.Type))}
	}
	var timeErr *time.ParseError
	if errors.As(err, &timeErr) {
		return &ValidationError{Field: "sensorData", Reason: "timestamps must be RFC3339"}
	}
	return &ValidationError{Field: "body", Reason: "malformed JSON"}
}

func count(field string, value float64, limit int) (int, error) {
	if err := finite(field, value); err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, &ValidationError{Field: field, Reason: "must not be negative"}
	}
	if value > float64(limit) {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("must not exceed %d", limit)}
	}
	if math.Trunc(value) != value {
		return 0, &ValidationError{Field: field, Reason: "must be an integer"}
	}
	return int(value), nil
}

func finite(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &ValidationError{Field: field, Reason: "must be a finite number"}
	}
	return nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func describeKind(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return "timestamp"
		}
		return "object"
	default:
		return t.Kind().String()
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
