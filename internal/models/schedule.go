package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultSessionTitle is shown when the backend returns no title.
const DefaultSessionTitle = "Session"

// UDIPrefix is the document reference scheme used by the CMS.
const UDIPrefix = "umb://document/"

// ScheduledSession is one entry of the member's schedule. Sessions are never
// edited in place; the backend assigns ID and normalizes date and time.
type ScheduledSession struct {
	ID               string `json:"id"`
	DateISO          string `json:"date_iso"`
	Time             string `json:"time"`
	Title            string `json:"title"`
	WorkoutReference string `json:"workout_reference,omitempty"`
}

// ScheduleItem is the backend wire shape of a scheduled session.
type ScheduleItem struct {
	Key        string `json:"key" validate:"required"`
	StartTime  string `json:"startTime"`
	DateISO    string `json:"dateISO" validate:"required,dateiso"`
	Time       string `json:"time" validate:"required,hhmm"`
	Title      string `json:"title"`
	WorkoutUdi string `json:"workoutUdi" validate:"omitempty,udi"`
}

func (s *ScheduleItem) normalize() {
	s.Key = strings.TrimSpace(s.Key)
	s.WorkoutUdi = strings.TrimSpace(s.WorkoutUdi)
	if strings.TrimSpace(s.Title) == "" {
		s.Title = DefaultSessionTitle
	}
}

// Session converts the wire item to the view model.
func (s ScheduleItem) Session() ScheduledSession {
	return ScheduledSession{
		ID:               s.Key,
		DateISO:          s.DateISO,
		Time:             s.Time,
		Title:            s.Title,
		WorkoutReference: s.WorkoutUdi,
	}
}

// CreateScheduleRequest is the body of POST /schedule. StartTime is a local
// datetime without offset, e.g. 2024-05-15T17:00:00.
type CreateScheduleRequest struct {
	StartTime string  `json:"startTime" validate:"required"`
	Title     string  `json:"title" validate:"required"`
	WorkoutID *string `json:"workoutId"`
}

// NewCreateScheduleRequest builds the create body for a day and HH:mm time.
func NewCreateScheduleRequest(dateISO, hhmm, title, workoutRef string) CreateScheduleRequest {
	req := CreateScheduleRequest{
		StartTime: dateISO + "T" + hhmm + ":00",
		Title:     strings.TrimSpace(title),
	}
	if ref := strings.TrimSpace(workoutRef); ref != "" {
		req.WorkoutID = &ref
	}
	return req
}

// ErrInvalidReference is returned for workout references that are neither a
// document UDI nor a GUID.
var ErrInvalidReference = errors.New("invalid workout reference")

// NormalizeWorkoutReference accepts a document UDI or a GUID (with or
// without hyphens) and returns the UDI form. Empty input returns "".
func NormalizeWorkoutReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if strings.Contains(ref, "://") {
		if !udiPattern.MatchString(ref) {
			return "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
		}
		return ref, nil
	}
	return UDIFromGUID(ref)
}

// UDIFromGUID converts a content GUID to umb://document/<32 hex>.
func UDIFromGUID(guid string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(guid))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, guid)
	}
	return UDIPrefix + strings.ReplaceAll(id.String(), "-", ""), nil
}
