package schedule

import (
	"github.com/movekind/gateway/internal/calendar"
	"github.com/movekind/gateway/internal/models"
)

// DayView is one day chip of the week and its sessions. Empty is set when
// the day has no sessions so the page can show its "no sessions" state.
type DayView struct {
	calendar.Day
	Sessions []models.ScheduledSession `json:"sessions"`
	Empty    bool                      `json:"empty"`
	Today    bool                      `json:"today"`
}

// Snapshot is the JSON-ready state of a View.
type Snapshot struct {
	Window     calendar.WeekWindow       `json:"window"`
	Loaded     bool                      `json:"loaded"`
	Days       []DayView                 `json:"days"`
	Sessions   []models.ScheduledSession `json:"sessions"`
	Busy       bool                      `json:"busy"`
	Mutation   Mutation                  `json:"mutation"`
	Error      string                    `json:"error,omitempty"`
	ModalError string                    `json:"modal_error,omitempty"`
	Notice     string                    `json:"notice,omitempty"`
}

// Day returns the view of day i (0 = Monday) of the loaded window. The
// index is clamped to the week.
func (v *View) Day(i int) DayView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.day(i)
}

func (v *View) day(i int) DayView {
	i = max(0, min(i, 6))
	d := v.window.Days[i]
	s := v.sessionsOn(d.DateISO)
	return DayView{
		Day:      d,
		Sessions: s,
		Empty:    len(s) == 0,
		Today:    d.DateISO != "" && d.DateISO == calendar.FormatISODate(v.now()),
	}
}

// Days returns all seven day views.
func (v *View) Days() []DayView {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]DayView, 7)
	for i := range out {
		out[i] = v.day(i)
	}
	return out
}

// Snapshot captures the whole view.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	days := make([]DayView, 7)
	for i := range days {
		days[i] = v.day(i)
	}
	sessions := append([]models.ScheduledSession{}, v.sessions...)
	return Snapshot{
		Window:     v.window,
		Loaded:     v.loaded,
		Days:       days,
		Sessions:   sessions,
		Busy:       v.mutation.State == Pending,
		Mutation:   v.mutation,
		Error:      v.pageErr,
		ModalError: v.modalErr,
		Notice:     v.currentNotice(),
	}
}
