package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/movekind/gateway/internal/calendar"
	"github.com/movekind/gateway/internal/favorites"
	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/player"
	"github.com/movekind/gateway/internal/schedule"
	"github.com/movekind/gateway/internal/umbraco"
)

type weekResponse struct {
	schedule.Snapshot
	SelectedDay int                    `json:"selected_day"`
	Selected    schedule.DayView       `json:"selected"`
	Workouts    []models.WorkoutOption `json:"workouts"`
}

func (s *Server) handleWeekView(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be an integer"})
		return
	}
	now := s.now()
	window := calendar.NewWeekWindow(now, offset)

	day := window.TodayIndex(now)
	if day, err = intParam(r, "day", day); err != nil || day < 0 || day > 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be between 0 and 6"})
		return
	}

	ctx := umbraco.WithCookie(r.Context(), r.Header.Get("Cookie"))
	view := schedule.NewView(s.client, schedule.WithClock(s.now))
	defer view.Detach()

	var options []models.WorkoutOption
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return view.LoadWeek(gctx, window)
	})
	g.Go(func() error {
		list, err := s.client.ListWorkouts(gctx)
		if err != nil {
			// The dropdown is optional; the week still renders.
			s.log.Warn("listing workouts failed", "error", err)
			return nil
		}
		options = list.Options()
		return nil
	})
	if err := g.Wait(); err != nil {
		writeError(w, err)
		return
	}
	if options == nil {
		options = []models.WorkoutOption{}
	}

	writeJSON(w, http.StatusOK, weekResponse{
		Snapshot:    view.Snapshot(),
		SelectedDay: day,
		Selected:    view.Day(day),
		Workouts:    options,
	})
}

type createSessionRequest struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Title   string `json:"title"`
	Workout string `json:"workout"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	now := s.now()
	date, err := calendar.ParseISODate(req.Date, now.Location())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Please choose a valid date."})
		return
	}
	window := calendar.NewWeekWindow(date, 0)
	day := window.Days[window.DayIndex(req.Date)]

	ctx := umbraco.WithCookie(r.Context(), r.Header.Get("Cookie"))
	view := schedule.NewView(s.client, schedule.WithClock(s.now))
	defer view.Detach()

	session, err := view.CreateSession(ctx, day, req.Time, req.Title, req.Workout)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session": session,
		"notice":  view.Notice(),
	})
}

func (s *Server) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	ctx := umbraco.WithCookie(r.Context(), r.Header.Get("Cookie"))
	view := schedule.NewView(s.client, schedule.WithClock(s.now))
	defer view.Detach()

	if err := view.RemoveSession(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"notice": view.Notice()})
}

type stepsResponse struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Level     string        `json:"level"`
	Video     string        `json:"video,omitempty"`
	Total     float64       `json:"total_seconds"`
	TotalText string        `json:"total_text"`
	Steps     []player.Step `json:"steps"`
}

func (s *Server) loadSteps(w http.ResponseWriter, r *http.Request) (models.WorkoutItem, []player.Step, bool) {
	duration, err := floatParam(r, "duration", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "duration must be a number"})
		return models.WorkoutItem{}, nil, false
	}
	ctx := umbraco.WithCookie(r.Context(), r.Header.Get("Cookie"))
	item, err := s.client.GetWorkout(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return models.WorkoutItem{}, nil, false
	}
	return item, player.StepsFromWorkout(item, duration), true
}

func (s *Server) handleWorkoutSteps(w http.ResponseWriter, r *http.Request) {
	item, steps, ok := s.loadSteps(w, r)
	if !ok {
		return
	}
	ps := player.NewSynchronizer(steps)
	if steps == nil {
		steps = []player.Step{}
	}
	writeJSON(w, http.StatusOK, stepsResponse{
		ID:        item.ID,
		Title:     item.DisplayTitle(),
		Level:     item.LevelOrDefault(),
		Video:     item.Properties.Video,
		Total:     ps.Total(),
		TotalText: player.FormatMMSS(ps.Total()),
		Steps:     steps,
	})
}

type progressResponse struct {
	player.Progress
	ElapsedText string   `json:"elapsed_text"`
	TotalText   string   `json:"total_text"`
	NextAt      *float64 `json:"next_at"`
}

func (s *Server) handleWorkoutProgress(w http.ResponseWriter, r *http.Request) {
	t, err := floatParam(r, "t", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "t must be a number of seconds"})
		return
	}
	_, steps, ok := s.loadSteps(w, r)
	if !ok {
		return
	}

	ps := player.NewSynchronizer(steps)
	var p player.Progress
	if r.URL.Query().Get("ended") == "1" {
		p, _ = ps.Ended()
	} else {
		p, _ = ps.Update(t)
	}
	resp := progressResponse{
		Progress:    p,
		ElapsedText: player.FormatMMSS(p.OverallElapsed),
		TotalText:   player.FormatMMSS(ps.Total()),
	}
	if next, ok := ps.NextTarget(); ok {
		resp.NextAt = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	initial, _ := strconv.ParseBool(r.URL.Query().Get("favorited"))
	ctx := umbraco.WithCookie(r.Context(), r.Header.Get("Cookie"))

	btn := favorites.NewButton(s.client, chi.URLParam(r, "id"), initial)
	favorited, err := btn.Toggle(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorited": favorited})
}

type favoriteView struct {
	models.Favorite
	DisplayTitle string `json:"display_title"`
	MinutesText  string `json:"minutes_text"`
	Summary      string `json:"summary"`
}

func (s *Server) handleFavoritesView(w http.ResponseWriter, r *http.Request) {
	ctx := umbraco.WithCookie(r.Context(), r.Header.Get("Cookie"))
	list := favorites.NewList(s.client)
	if err := list.Load(ctx); err != nil {
		writeError(w, err)
		return
	}
	items := list.Filter(r.URL.Query().Get("q"))
	out := make([]favoriteView, len(items))
	for i, f := range items {
		out[i] = favoriteView{
			Favorite:     f,
			DisplayTitle: f.DisplayTitle(),
			MinutesText:  f.MinutesText(),
			Summary:      favorites.PlainText(f.Description),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the flat error taxonomy onto HTTP statuses; the body is
// always the single user-facing message.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": umbraco.Message(err)})
}

func errorStatus(err error) int {
	var (
		he *umbraco.HTTPError
		te *umbraco.TransportError
		de *models.DecodeError
	)
	switch {
	case errors.Is(err, schedule.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrBusy), errors.Is(err, favorites.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &he):
		return he.Status
	case errors.As(err, &te), errors.As(err, &de):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}
