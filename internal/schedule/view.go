// Package schedule holds the view-state of the weekly schedule page: the
// sessions cached for the visible week, the create and remove mutations,
// and the messages shown to the member.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/movekind/gateway/internal/calendar"
	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/umbraco"
)

const (
	addedNoticeFor   = 2200 * time.Millisecond
	removedNoticeFor = 1600 * time.Millisecond

	msgTitleRequired  = "Please enter a session name."
	msgInvalidTime    = "Please choose a valid time (HH:mm)."
	msgInvalidWorkout = "Please choose a valid workout."
)

var (
	// ErrValidation matches every local validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrBusy is returned when a mutation is submitted while another one
	// is still pending.
	ErrBusy = errors.New("another change is still in progress")
	// ErrDetached is returned by operations on a torn-down view.
	ErrDetached = errors.New("view is detached")
)

// ValidationError is a local input error, caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Backend is the schedule collaborator. *umbraco.Client satisfies it.
type Backend interface {
	ListSchedule(ctx context.Context, from, to string) ([]models.ScheduledSession, error)
	CreateSchedule(ctx context.Context, req models.CreateScheduleRequest) (models.ScheduledSession, error)
	DeleteSchedule(ctx context.Context, key string) error
}

// View is the schedule view-state for one consumer. It is safe for
// concurrent use; network calls run without the lock held and their
// results are applied only if still current.
type View struct {
	backend Backend
	now     func() time.Time

	mu       sync.Mutex
	window   calendar.WeekWindow
	loaded   bool
	loadSeq  uint64
	sessions []models.ScheduledSession
	pageErr  string
	modalErr string
	notice   notice
	mutation Mutation
	detached bool
}

type notice struct {
	text    string
	expires time.Time
}

// Option configures a View.
type Option func(*View)

// WithClock overrides the clock used to expire notices.
func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// NewView creates an empty view backed by b.
func NewView(b Backend, opts ...Option) *View {
	v := &View{backend: b, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// LoadWeek fetches the sessions dated within the window. On success the
// cache and the window are replaced; on failure both are left untouched
// and the page error is set.
func (v *View) LoadWeek(ctx context.Context, w calendar.WeekWindow) error {
	v.mu.Lock()
	if v.detached {
		v.mu.Unlock()
		return ErrDetached
	}
	v.loadSeq++
	seq := v.loadSeq
	v.mu.Unlock()

	list, err := v.backend.ListSchedule(ctx, w.From(), w.To())

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.detached || seq != v.loadSeq {
		return err
	}
	if err != nil {
		v.pageErr = umbraco.Message(err)
		return fmt.Errorf("loading week %s..%s: %w", w.From(), w.To(), err)
	}
	kept := make([]models.ScheduledSession, 0, len(list))
	for _, s := range list {
		if w.Contains(s.DateISO) {
			kept = append(kept, s)
		}
	}
	sortSessions(kept)
	v.window = w
	v.loaded = true
	v.sessions = kept
	v.pageErr = ""
	return nil
}

// CreateSession validates the input, asks the backend to create the
// session and appends the canonical result. Nothing is inserted before the
// backend confirms.
func (v *View) CreateSession(ctx context.Context, day calendar.Day, hhmm, title, workoutRef string) (models.ScheduledSession, error) {
	title = strings.TrimSpace(title)
	hhmm = strings.TrimSpace(hhmm)

	v.mu.Lock()
	if v.detached {
		v.mu.Unlock()
		return models.ScheduledSession{}, ErrDetached
	}
	if v.mutation.State == Pending {
		v.mu.Unlock()
		return models.ScheduledSession{}, ErrBusy
	}

	var verr *ValidationError
	ref, refErr := models.NormalizeWorkoutReference(workoutRef)
	switch {
	case title == "":
		verr = &ValidationError{Field: "title", Message: msgTitleRequired}
	case !calendar.ValidTimeHHmm(hhmm):
		verr = &ValidationError{Field: "time", Message: msgInvalidTime}
	case refErr != nil:
		verr = &ValidationError{Field: "workout", Message: msgInvalidWorkout}
	}
	if verr != nil {
		v.modalErr = verr.Message
		v.mu.Unlock()
		return models.ScheduledSession{}, verr
	}

	v.modalErr = ""
	v.mutation = Mutation{State: Pending, Op: OpCreate}
	v.mu.Unlock()

	s, err := v.backend.CreateSchedule(ctx, models.NewCreateScheduleRequest(day.DateISO, hhmm, title, ref))

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.detached {
		return s, err
	}
	if err != nil {
		v.modalErr = umbraco.Message(err)
		v.mutation = Mutation{State: Failed, Op: OpCreate, Err: err}
		return models.ScheduledSession{}, fmt.Errorf("creating session: %w", err)
	}
	if !v.loaded || v.window.Contains(s.DateISO) {
		v.sessions = append(slices.Clone(v.sessions), s)
		sortSessions(v.sessions)
	}
	v.mutation = Mutation{State: Committed, Op: OpCreate, Session: s}
	v.setNotice(fmt.Sprintf("Added to %s %s", day.Key, s.Time), addedNoticeFor)
	return s, nil
}

// RemoveSession deletes a session. The item stays in place until the
// backend confirms.
func (v *View) RemoveSession(ctx context.Context, id string) error {
	v.mu.Lock()
	if v.detached {
		v.mu.Unlock()
		return ErrDetached
	}
	if v.mutation.State == Pending {
		v.mu.Unlock()
		return ErrBusy
	}
	var target models.ScheduledSession
	if i := v.indexOf(id); i >= 0 {
		target = v.sessions[i]
	} else {
		target.ID = id
	}
	v.mutation = Mutation{State: Pending, Op: OpRemove, Session: target}
	v.mu.Unlock()

	err := v.backend.DeleteSchedule(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.detached {
		return err
	}
	if err != nil {
		v.pageErr = umbraco.Message(err)
		v.mutation = Mutation{State: Failed, Op: OpRemove, Session: target, Err: err}
		return fmt.Errorf("removing session %s: %w", id, err)
	}
	if i := v.indexOf(id); i >= 0 {
		v.sessions = slices.Delete(slices.Clone(v.sessions), i, i+1)
	}
	v.mutation = Mutation{State: Committed, Op: OpRemove, Session: target}
	v.setNotice("Removed", removedNoticeFor)
	return nil
}

// Detach marks the view as torn down. Completions that arrive afterwards
// are discarded.
func (v *View) Detach() {
	v.mu.Lock()
	v.detached = true
	v.mu.Unlock()
}

// DismissErrors clears the page and modal errors.
func (v *View) DismissErrors() {
	v.mu.Lock()
	v.pageErr, v.modalErr = "", ""
	v.mu.Unlock()
}

// Busy reports whether a create or remove is in flight.
func (v *View) Busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mutation.State == Pending
}

// Mutation returns the state of the latest create or remove.
func (v *View) Mutation() Mutation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mutation
}

// Window returns the loaded window and whether a load has succeeded.
func (v *View) Window() (calendar.WeekWindow, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.window, v.loaded
}

// Sessions returns a copy of the cached sessions ordered by date and time.
func (v *View) Sessions() []models.ScheduledSession {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.sessions)
}

// SessionsOn returns the sessions of one date ordered by time.
func (v *View) SessionsOn(dateISO string) []models.ScheduledSession {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sessionsOn(dateISO)
}

func (v *View) sessionsOn(dateISO string) []models.ScheduledSession {
	out := []models.ScheduledSession{}
	for _, s := range v.sessions {
		if s.DateISO == dateISO {
			out = append(out, s)
		}
	}
	return out
}

// PageError returns the message of the last failed load or remove.
func (v *View) PageError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pageErr
}

// ModalError returns the message of the last failed create.
func (v *View) ModalError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.modalErr
}

// Notice returns the transient confirmation, or "" once it has expired.
func (v *View) Notice() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentNotice()
}

func (v *View) currentNotice() string {
	if v.notice.text == "" || !v.now().Before(v.notice.expires) {
		return ""
	}
	return v.notice.text
}

func (v *View) setNotice(text string, d time.Duration) {
	v.notice = notice{text: text, expires: v.now().Add(d)}
}

func (v *View) indexOf(id string) int {
	return slices.IndexFunc(v.sessions, func(s models.ScheduledSession) bool { return s.ID == id })
}

func sortSessions(s []models.ScheduledSession) {
	slices.SortStableFunc(s, func(a, b models.ScheduledSession) int {
		if c := strings.Compare(a.DateISO, b.DateISO); c != 0 {
			return c
		}
		return strings.Compare(a.Time, b.Time)
	})
}
