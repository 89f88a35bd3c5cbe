package models

import "strings"

// WorkoutItem is a delivery API content item of type workout.
type WorkoutItem struct {
	ID         string            `json:"id" validate:"required"`
	Name       string            `json:"name"`
	Route      WorkoutRoute      `json:"route"`
	Properties WorkoutProperties `json:"properties"`
}

type WorkoutRoute struct {
	Path string `json:"path"`
}

type WorkoutProperties struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Video       string       `json:"video"`
	Duration    float64      `json:"duration" validate:"gte=0"`
	Level       string       `json:"levelEasyMediumAdvanced" validate:"omitempty,oneof=Easy Medium Advanced"`
	Steps       WorkoutSteps `json:"steps"`
}

type WorkoutSteps struct {
	Items []StepBlock `json:"items" validate:"dive"`
}

// StepBlock is one block-list entry; Content is nil for removed blocks.
type StepBlock struct {
	Content *StepContent `json:"content"`
}

type StepContent struct {
	ID         string         `json:"id" validate:"required"`
	Properties StepProperties `json:"properties"`
}

// StepProperties carries the instructional step fields. StartAt is the
// video offset in seconds; TimeSeconds may be 0 when the editor left it
// blank.
type StepProperties struct {
	Order        int     `json:"order"`
	Instruction  string  `json:"instruction"`
	TimeSeconds  float64 `json:"timeSeconds"`
	SafetyNote   string  `json:"safetyNote"`
	EasierOption string  `json:"easierOption"`
	HarderOption string  `json:"harderOption"`
	StartAt      float64 `json:"startAt"`
}

// WorkoutList is the delivery API listing response.
type WorkoutList struct {
	Total int           `json:"total"`
	Items []WorkoutItem `json:"items" validate:"dive"`
}

func (w *WorkoutItem) normalize() {
	if w.Properties.Level == "" {
		return
	}
	w.Properties.Level = strings.TrimSpace(w.Properties.Level)
}

func (l *WorkoutList) normalize() {
	for i := range l.Items {
		l.Items[i].normalize()
	}
}

// DisplayTitle falls back from the title property to the node name.
func (w WorkoutItem) DisplayTitle() string {
	if t := strings.TrimSpace(w.Properties.Title); t != "" {
		return t
	}
	if n := strings.TrimSpace(w.Name); n != "" {
		return n
	}
	return "Workout"
}

// LevelOrDefault returns the difficulty level, Easy when unset.
func (w WorkoutItem) LevelOrDefault() string {
	if w.Properties.Level == "" {
		return "Easy"
	}
	return w.Properties.Level
}

// WorkoutOption is an entry of the "attach workout" dropdown.
type WorkoutOption struct {
	Title string `json:"title"`
	UDI   string `json:"udi"`
}

// Options maps listed workouts to dropdown entries, skipping items whose id
// is not a GUID.
func (l WorkoutList) Options() []WorkoutOption {
	opts := make([]WorkoutOption, 0, len(l.Items))
	for _, w := range l.Items {
		udi, err := UDIFromGUID(w.ID)
		if err != nil {
			continue
		}
		opts = append(opts, WorkoutOption{Title: w.DisplayTitle(), UDI: udi})
	}
	return opts
}
