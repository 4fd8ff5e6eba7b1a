package focus

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/sma-focus-api/internal/models"
	"github.com/noah-isme/sma-focus-api/pkg/config"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
)

const weightTolerance = 0.001

// Weights balance the three sub-signals of the composite score.
type Weights struct {
	Stability  float64 `json:"stability"`
	Stillness  float64 `json:"stillness"`
	Engagement float64 `json:"engagement"`
}

// ScoringConfig holds every curve parameter used by the scorer.
type ScoringConfig struct {
	Weights Weights

	// Heart rate band (bpm) treated as neutral, and the distance outside it at which stability reaches 0.
	RestingLow       float64
	RestingHigh      float64
	StabilityFalloff float64

	// Movement per minute at which stillness reaches 0.
	MaxMovementRate float64
	// Sessions at or below this movement rate for at least IdleMinDuration are capped at IdleStillnessCap.
	IdleMovementRate float64
	IdleMinDuration  time.Duration
	IdleStillnessCap float64

	// Engagement contribution with zero interactions, and the interaction rate where it saturates.
	EngagementBaseline   float64
	EngagementSaturation float64
}

// DefaultScoringConfig returns the stock curves.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights:              Weights{Stability: 0.35, Stillness: 0.35, Engagement: 0.30},
		RestingLow:           60,
		RestingHigh:          90,
		StabilityFalloff:     40,
		MaxMovementRate:      2.0,
		IdleMovementRate:     0.02,
		IdleMinDuration:      10 * time.Minute,
		IdleStillnessCap:     0.5,
		EngagementBaseline:   0.15,
		EngagementSaturation: 0.5,
	}
}

// ScoringConfigFrom maps application settings onto the scorer configuration.
func ScoringConfigFrom(cfg config.FocusConfig) ScoringConfig {
	return ScoringConfig{
		Weights: Weights{
			Stability:  cfg.WeightStability,
			Stillness:  cfg.WeightStillness,
			Engagement: cfg.WeightEngagement,
		},
		RestingLow:           cfg.RestingHeartRateLow,
		RestingHigh:          cfg.RestingHeartRateHigh,
		StabilityFalloff:     cfg.StabilityFalloff,
		MaxMovementRate:      cfg.MaxMovementRate,
		IdleMovementRate:     cfg.IdleMovementRate,
		IdleMinDuration:      cfg.IdleMinDuration,
		IdleStillnessCap:     cfg.IdleStillnessCap,
		EngagementBaseline:   cfg.EngagementBaseline,
		EngagementSaturation: cfg.EngagementSaturation,
	}
}

// BoundsFrom maps application settings onto validator bounds.
func BoundsFrom(cfg config.FocusConfig) Bounds {
	return Bounds{
		HeartRateMin:      cfg.HeartRateMin,
		HeartRateMax:      cfg.HeartRateMax,
		DurationTolerance: cfg.DurationTolerance,
		MaxCount:          cfg.MaxCount,
	}
}

// Components exposes the normalised sub-signals, each in [0,1].
type Components struct {
	Stability  float64 `json:"stability"`
	Stillness  float64 `json:"stillness"`
	Engagement float64 `json:"engagement"`
}

// Scorer turns a validated sample into a focus score. It holds no mutable state.
type Scorer struct {
	cfg ScoringConfig
}

// NewScorer validates the configuration and returns a scorer.
func NewScorer(cfg ScoringConfig) (*Scorer, error) {
	w := cfg.Weights
	if w.Stability < 0 || w.Stillness < 0 || w.Engagement < 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "focus weights must not be negative")
	}
	if sum := w.Stability + w.Stillness + w.Engagement; math.Abs(sum-1) > weightTolerance {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("focus weights must sum to 1, got %.3f", sum))
	}
	if cfg.RestingLow > cfg.RestingHigh {
		return nil, fmt.Errorf("resting heart rate band is inverted: %g > %g", cfg.RestingLow, cfg.RestingHigh)
	}
	if cfg.StabilityFalloff <= 0 || cfg.MaxMovementRate <= 0 || cfg.EngagementSaturation <= 0 {
		return nil, fmt.Errorf("focus curve parameters must be positive")
	}
	if cfg.EngagementBaseline < 0 || cfg.EngagementBaseline > 1 || cfg.IdleStillnessCap < 0 || cfg.IdleStillnessCap > 1 {
		return nil, fmt.Errorf("focus baseline and cap must lie in [0,1]")
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the configuration the scorer was built with.
func (s *Scorer) Config() ScoringConfig {
	return s.cfg
}

// Score returns the composite focus score in [0,100] rounded to one decimal.
func (s *Scorer) Score(sample models.SensorSample) float64 {
	c := s.Components(sample)
	w := s.cfg.Weights
	raw := 100 * (w.Stability*c.Stability + w.Stillness*c.Stillness + w.Engagement*c.Engagement)
	return Round(clamp(raw, 0, 100), 1)
}

// Components computes the three normalised sub-signals for a sample.
func (s *Scorer) Components(sample models.SensorSample) Components {
	return Components{
		Stability:  s.stability(sample.HeartRateAvg),
		Stillness:  s.stillness(sample),
		Engagement: s.engagement(sample),
	}
}

func (s *Scorer) stability(hr float64) float64 {
	var distance float64
	switch {
	case hr < s.cfg.RestingLow:
		distance = s.cfg.RestingLow - hr
	case hr > s.cfg.RestingHigh:
		distance = hr - s.cfg.RestingHigh
	default:
		return 1
	}
	return clamp(1-distance/s.cfg.StabilityFalloff, 0, 1)
}

func (s *Scorer) stillness(sample models.SensorSample) float64 {
	rate := float64(sample.MovementCount) / sample.DurationMinutes
	value := 1 - math.Min(rate/s.cfg.MaxMovementRate, 1)
	long := sample.DurationMinutes >= s.cfg.IdleMinDuration.Minutes()
	if rate <= s.cfg.IdleMovementRate && long {
		value = math.Min(value, s.cfg.IdleStillnessCap)
	}
	return clamp(value, 0, 1)
}

func (s *Scorer) engagement(sample models.SensorSample) float64 {
	rate := float64(sample.InteractionCount) / sample.DurationMinutes
	base := s.cfg.EngagementBaseline
	return clamp(base+(1-base)*math.Min(rate/s.cfg.EngagementSaturation, 1), 0, 1)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
