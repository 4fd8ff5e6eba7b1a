package focus

import (
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/noah-isme/sma-focus-api/internal/models"
)

// Chronological yields records oldest first. The input slice is not modified and
// the returned sequence can be ranged over repeatedly.
func Chronological(records []models.FocusRecord) iter.Seq[models.FocusRecord] {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.FocusRecord) int {
		return a.ComputedAt.Compare(b.ComputedAt)
	})
	return slices.Values(sorted)
}

// Scores projects records onto their scores.
func Scores(records iter.Seq[models.FocusRecord]) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for r := range records {
			if !yield(r.Score) {
				return
			}
		}
	}
}

// Mean returns the arithmetic mean and the number of values. The mean is nil when the sequence is empty.
func Mean(values iter.Seq[float64]) (*float64, int) {
	var sum float64
	n := 0
	for v := range values {
		sum += v
		n++
	}
	if n == 0 {
		return nil, 0
	}
	avg := Round(sum/float64(n), 2)
	return &avg, n
}

// DailyBuckets groups a chronological record sequence by calendar day in loc.
// Each point carries the mean score of that day. Days without records are not emitted.
func DailyBuckets(records iter.Seq[models.FocusRecord], loc *time.Location) iter.Seq[models.TrendPoint] {
	if loc == nil {
		loc = time.UTC
	}
	return func(yield func(models.TrendPoint) bool) {
		var (
			day   time.Time
			sum   float64
			count int
		)
		flush := func() bool {
			if count == 0 {
				return true
			}
			return yield(models.TrendPoint{Date: day, AverageScore: Round(sum/float64(count), 2), SampleCount: count})
		}
		for r := range records {
			local := r.ComputedAt.In(loc)
			d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
			if count > 0 && !d.Equal(day) {
				if !flush() {
					return
				}
				sum, count = 0, 0
			}
			day = d
			sum += r.Score
			count++
		}
		flush()
	}
}

// ClassifyTrend compares the mean of the most recent third of a chronological score
// sequence with the mean of the earliest third. A relative change beyond threshold
// is improving or declining. Fewer than two scores is always stable.
func ClassifyTrend(scores iter.Seq[float64], threshold float64) models.FocusTrend {
	values := slices.Collect(scores)
	n := len(values)
	if n < 2 {
		return models.FocusTrendStable
	}
	third := max(1, n/3)
	early, _ := Mean(slices.Values(values[:third]))
	recent, _ := Mean(slices.Values(values[n-third:]))

	if *early == 0 {
		if *recent > 0 {
			return models.FocusTrendImproving
		}
		return models.FocusTrendStable
	}
	change := (*recent - *early) / *early
	switch {
	case change > threshold:
		return models.FocusTrendImproving
	case change < -threshold:
		return models.FocusTrendDeclining
	default:
		return models.FocusTrendStable
	}
}

// Summarize builds the per-student summary from records in any order.
func Summarize(records []models.FocusRecord, threshold float64) models.FocusSummary {
	ordered := Chronological(records)
	avg, n := Mean(Scores(ordered))
	return models.FocusSummary{
		AverageFocus: avg,
		RecordCount:  n,
		Trend:        ClassifyTrend(Scores(ordered), threshold),
	}
}

// PerStudentAverages returns the mean score per student.
func PerStudentAverages(records iter.Seq[models.FocusRecord]) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for r := range records {
		sums[r.StudentID] += r.Score
		counts[r.StudentID]++
	}
	out := make(map[string]float64, len(sums))
	for id, sum := range sums {
		out[id] = Round(sum/float64(counts[id]), 2)
	}
	return out
}

// SortedStudentIDs returns the keys of a breakdown in a stable order for rendering.
func SortedStudentIDs(breakdown map[string]float64) []string {
	return slices.Sorted(maps.Keys(breakdown))
}
