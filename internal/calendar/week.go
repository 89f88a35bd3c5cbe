// Package calendar computes the 7-day windows shown by the schedule view.
// All functions work on the wall-clock fields of the time's own location;
// nothing is converted to UTC.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the YYYY-MM-DD layout used for dateISO values.
const DateLayout = "2006-01-02"

// Day is one chip of the week strip.
type Day struct {
	Key        string    `json:"key"`
	Label      string    `json:"label"`
	DateISO    string    `json:"date_iso"`
	DayOfMonth int       `json:"day_of_month"`
	Date       time.Time `json:"-"`
}

// WeekWindow is the Monday-first week displayed for a given offset.
type WeekWindow struct {
	Offset     int       `json:"offset"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	WeekNumber int       `json:"week_number"`
	ISOYear    int       `json:"iso_year"`
	Days       [7]Day    `json:"days"`
}

var weekDays = [7]struct{ key, label string }{
	{"Mon", "M"},
	{"Tue", "T"},
	{"Wed", "W"},
	{"Thu", "Th"},
	{"Fri", "F"},
	{"Sat", "Sa"},
	{"Sun", "Su"},
}

// StartOfWeek returns Monday 00:00 of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	diff := 1 - int(t.Weekday())
	if t.Weekday() == time.Sunday {
		diff = -6
	}
	d := AddDays(t, diff)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// ISOWeekNumber returns the ISO-8601 week of t. The week belongs to the year
// of its Thursday, so Jan 1 may be week 52/53 and Dec 31 may be week 1.
func ISOWeekNumber(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// FormatISODate formats the local calendar date of t as YYYY-MM-DD.
func FormatISODate(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// ParseISODate parses YYYY-MM-DD as midnight in loc.
func ParseISODate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// AddDays adds n calendar days, rolling over months and years. The
// wall-clock time of day is preserved across DST changes.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// NewWeekWindow builds the window for today shifted by offset weeks.
func NewWeekWindow(today time.Time, offset int) WeekWindow {
	start := StartOfWeek(AddDays(today, offset*7))
	year, week := start.ISOWeek()

	w := WeekWindow{
		Offset:     offset,
		Start:      start,
		End:        AddDays(start, 6),
		WeekNumber: week,
		ISOYear:    year,
	}
	for i, wd := range weekDays {
		d := AddDays(start, i)
		w.Days[i] = Day{
			Key:        wd.key,
			Label:      wd.label,
			DateISO:    FormatISODate(d),
			DayOfMonth: d.Day(),
			Date:       d,
		}
	}
	return w
}

// From returns the first dateISO of the window.
func (w WeekWindow) From() string { return w.Days[0].DateISO }

// To returns the last dateISO of the window.
func (w WeekWindow) To() string { return w.Days[6].DateISO }

// DayIndex returns the position of dateISO in the window, or -1.
func (w WeekWindow) DayIndex(dateISO string) int {
	for i, d := range w.Days {
		if d.DateISO == dateISO {
			return i
		}
	}
	return -1
}

// Contains reports whether dateISO falls inside the window.
func (w WeekWindow) Contains(dateISO string) bool {
	return w.DayIndex(dateISO) >= 0
}

// TodayIndex returns the index of today's date in the window, or 0 when
// today is outside it.
func (w WeekWindow) TodayIndex(today time.Time) int {
	if i := w.DayIndex(FormatISODate(today)); i >= 0 {
		return i
	}
	return 0
}

// ValidTimeHHmm reports whether s is a 24-hour HH:mm clock time.
func ValidTimeHHmm(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	return hh <= 23 && mm <= 59
}
