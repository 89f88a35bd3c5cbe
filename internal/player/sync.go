package player

import "sort"

// Progress is the rendered position within the step list.
type Progress struct {
	Index           int     `json:"index"`
	Step            Step    `json:"step"`
	ElapsedInStep   float64 `json:"elapsed_in_step"`
	RemainingInStep float64 `json:"remaining_in_step"`
	StepFraction    float64 `json:"step_fraction"`
	OverallElapsed  float64 `json:"overall_elapsed"`
	OverallTotal    float64 `json:"overall_total"`
	OverallFraction float64 `json:"overall_fraction"`
	Ended           bool    `json:"ended"`
}

// Synchronizer tracks the active step for a sorted step list. It is not
// safe for concurrent use; each player owns one.
type Synchronizer struct {
	steps  []Step
	before []float64 // before[i] is the summed duration of steps[:i]
	total  float64

	current Progress
	started bool
}

// NewSynchronizer takes steps already passed through NormalizeSteps.
func NewSynchronizer(steps []Step) *Synchronizer {
	s := &Synchronizer{steps: steps, before: make([]float64, len(steps))}
	for i, st := range steps {
		s.before[i] = s.total
		s.total += st.DurationSeconds
	}
	return s
}

// Steps returns the step list.
func (s *Synchronizer) Steps() []Step { return s.steps }

// Total is the summed duration of all steps.
func (s *Synchronizer) Total() float64 { return s.total }

// Progress returns the last computed position.
func (s *Synchronizer) Progress() Progress { return s.current }

// IndexAt returns the highest index whose StartAt <= t, or 0 when t
// precedes the first step. It returns -1 for an empty list.
func (s *Synchronizer) IndexAt(t float64) int {
	if len(s.steps) == 0 {
		return -1
	}
	// first index with StartAt > t
	n := sort.Search(len(s.steps), func(i int) bool { return s.steps[i].StartAt > t })
	return max(n-1, 0)
}

// Update recomputes the position for playback time t without reference to
// previous samples, so backward seeks work. It reports whether the active
// index changed.
func (s *Synchronizer) Update(t float64) (Progress, bool) {
	i := s.IndexAt(t)
	if i < 0 {
		return s.set(Progress{Index: -1})
	}
	st := s.steps[i]
	elapsed := clamp(t-st.StartAt, 0, st.DurationSeconds)
	return s.set(s.progress(i, elapsed, false))
}

// Ended forces the last step with its full duration elapsed.
func (s *Synchronizer) Ended() (Progress, bool) {
	if len(s.steps) == 0 {
		return s.set(Progress{Index: -1, Ended: true})
	}
	last := len(s.steps) - 1
	return s.set(s.progress(last, s.steps[last].DurationSeconds, true))
}

// SeekTarget returns the video offset of step i, with i clamped to the
// list. It returns 0 for an empty list.
func (s *Synchronizer) SeekTarget(i int) float64 {
	if len(s.steps) == 0 {
		return 0
	}
	i = max(0, min(i, len(s.steps)-1))
	return s.steps[i].StartAt
}

// NextTarget returns the offset of the step after the active one. ok is
// false at the last step.
func (s *Synchronizer) NextTarget() (offset float64, ok bool) {
	next := 0
	if s.started {
		next = s.current.Index + 1
	}
	if next >= len(s.steps) {
		return 0, false
	}
	return s.steps[next].StartAt, true
}

func (s *Synchronizer) progress(i int, elapsed float64, ended bool) Progress {
	st := s.steps[i]
	p := Progress{
		Index:           i,
		Step:            st,
		ElapsedInStep:   elapsed,
		RemainingInStep: st.DurationSeconds - elapsed,
		OverallElapsed:  s.before[i] + elapsed,
		OverallTotal:    s.total,
		Ended:           ended,
	}
	if st.DurationSeconds > 0 {
		p.StepFraction = clamp(elapsed/st.DurationSeconds, 0, 1)
	}
	if s.total > 0 {
		p.OverallFraction = clamp(p.OverallElapsed/s.total, 0, 1)
	}
	return p
}

func (s *Synchronizer) set(p Progress) (Progress, bool) {
	changed := !s.started || p.Index != s.current.Index
	s.current = p
	s.started = true
	return p, changed
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
