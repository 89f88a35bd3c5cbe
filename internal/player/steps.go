// Package player maps video playback time onto a workout's instructional
// steps.
package player

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/movekind/gateway/internal/models"
)

// Step is one instructional step anchored at a video offset.
type Step struct {
	ID              string  `json:"id"`
	StartAt         float64 `json:"start_at"`
	DurationSeconds float64 `json:"duration_seconds"`
	Instruction     string  `json:"instruction"`
	SafetyNote      string  `json:"safety_note,omitempty"`
	EasierOption    string  `json:"easier_option,omitempty"`
	HarderOption    string  `json:"harder_option,omitempty"`
}

// NormalizeSteps clamps negative offsets and durations to zero, sorts by
// StartAt (stable) and fills zero durations with the gap to the next step.
// The last step's gap runs to videoDuration when it is known (> 0).
func NormalizeSteps(in []Step, videoDuration float64) []Step {
	steps := slices.Clone(in)
	for i := range steps {
		steps[i].StartAt = nonNegative(steps[i].StartAt)
		steps[i].DurationSeconds = nonNegative(steps[i].DurationSeconds)
	}
	slices.SortStableFunc(steps, func(a, b Step) int { return cmp.Compare(a.StartAt, b.StartAt) })

	for i := range steps {
		if steps[i].DurationSeconds > 0 {
			continue
		}
		end := nonNegative(videoDuration)
		if i+1 < len(steps) {
			end = steps[i+1].StartAt
		}
		steps[i].DurationSeconds = nonNegative(end - steps[i].StartAt)
	}
	return steps
}

// StepsFromWorkout extracts the steps of a workout item. Removed blocks
// (nil content) are skipped.
func StepsFromWorkout(w models.WorkoutItem, videoDuration float64) []Step {
	if videoDuration <= 0 {
		videoDuration = w.Properties.Duration
	}
	var raw []Step
	for _, b := range w.Properties.Steps.Items {
		if b.Content == nil {
			continue
		}
		p := b.Content.Properties
		raw = append(raw, Step{
			ID:              b.Content.ID,
			StartAt:         p.StartAt,
			DurationSeconds: p.TimeSeconds,
			Instruction:     p.Instruction,
			SafetyNote:      p.SafetyNote,
			EasierOption:    p.EasierOption,
			HarderOption:    p.HarderOption,
		})
	}
	return NormalizeSteps(raw, videoDuration)
}

// FormatMMSS renders seconds as m:ss, rounding down. Negative or
// non-finite input renders 0:00.
func FormatMMSS(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	s := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func nonNegative(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	return f
}
