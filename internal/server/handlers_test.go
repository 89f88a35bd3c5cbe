package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/movekind/gateway/internal/events"
	"github.com/movekind/gateway/internal/proxy"
	"github.com/movekind/gateway/internal/umbraco"
)

const workoutGUID = "8b0e2d3c-6a1f-4b7e-9c55-3d2a1f0e9b77"

type testEnv struct {
	srv     *Server
	hub     *events.Hub
	backend *httptest.Server
	calls   atomic.Int32
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
}

// newTestEnv wires a Server to a fake CMS backend.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{hub: events.NewHub()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/schedule", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "2024-05-13" {
			http.Error(w, "unexpected week", http.StatusBadRequest)
			return
		}
		writeTestJSON(t, w, []map[string]any{
			{"key": "s1", "dateISO": "2024-05-15", "time": "07:00", "title": "Morning"},
			{"key": "s2", "dateISO": "2024-05-17", "time": "18:00", "title": "Evening"},
		})
	})
	mux.HandleFunc("POST /api/schedule", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		start, _ := body["startTime"].(string)
		date, clock, _ := strings.Cut(start, "T")
		w.WriteHeader(http.StatusCreated)
		writeTestJSON(t, w, map[string]any{"key": "new", "dateISO": date, "time": clock[:5], "title": body["title"]})
	})
	mux.HandleFunc("DELETE /api/schedule/{key}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("key") == "locked" {
			http.Error(w, "Session is locked", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/favorites", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(t, w, []map[string]any{
			{"id": 11, "key": "k1", "name": "knee-care", "title": "Knee Care", "description": "<p>Gentle <b>knee</b> work</p>", "duration": 600},
			{"id": 12, "key": "k2", "name": "back-basics", "title": "Back Basics", "description": "<p>Core</p>", "duration": 0},
		})
	})
	mux.HandleFunc("POST /api/favorites/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(t, w, map[string]any{"workoutId": r.PathValue("id"), "favorited": false})
	})
	mux.HandleFunc("POST /api/members/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", IdentityCookie+"=tok; Domain=cms.internal; HttpOnly")
		writeTestJSON(t, w, map[string]string{"username": "anna"})
	})
	mux.HandleFunc("GET /umbraco/delivery/api/v2/content", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(t, w, map[string]any{"total": 1, "items": []any{
			map[string]any{"id": workoutGUID, "name": "Morning flow", "properties": map[string]any{"title": "Morning flow"}},
		}})
	})
	mux.HandleFunc("GET /umbraco/delivery/api/v2/content/item/{slug}", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(t, w, map[string]any{
			"id":   workoutGUID,
			"name": "Morning flow",
			"properties": map[string]any{
				"video": "/media/flow.mp4",
				"steps": map[string]any{"items": []any{
					map[string]any{"content": map[string]any{"id": "b", "properties": map[string]any{"startAt": 10, "timeSeconds": 5, "instruction": "Lunge"}}},
					map[string]any{"content": map[string]any{"id": "a", "properties": map[string]any{"startAt": 0, "timeSeconds": 10, "instruction": "Squat"}}},
				}},
			},
		})
	})
	env.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.calls.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(env.backend.Close)

	env.srv = newServerFor(env.backend.URL, env.hub)
	return env
}

func newServerFor(baseURL string, hub *events.Hub) *Server {
	return New(Options{
		Client: umbraco.New(baseURL, umbraco.Options{}),
		Proxy:  proxy.New(proxy.Options{BaseURL: baseURL, Events: hub, Logger: quietLogger()}),
		Hub:    hub,
		Logger: quietLogger(),
		Now:    fixedNow,
	})
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func TestWeekView(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/view/week", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Window struct {
			WeekNumber int `json:"week_number"`
			Days       []struct {
				DateISO string `json:"date_iso"`
			} `json:"days"`
		} `json:"window"`
		SelectedDay int `json:"selected_day"`
		Selected    struct {
			Empty    bool `json:"empty"`
			Sessions []struct {
				ID string `json:"id"`
			} `json:"sessions"`
		} `json:"selected"`
		Days []struct {
			Empty bool `json:"empty"`
		} `json:"days"`
		Workouts []struct {
			UDI string `json:"udi"`
		} `json:"workouts"`
	}
	decodeBody(t, rec, &resp)

	if resp.Window.WeekNumber != 20 {
		t.Errorf("week = %d, want 20", resp.Window.WeekNumber)
	}
	if resp.Window.Days[0].DateISO != "2024-05-13" || resp.Window.Days[6].DateISO != "2024-05-19" {
		t.Errorf("days = %+v", resp.Window.Days)
	}
	if resp.SelectedDay != 2 {
		t.Errorf("selected day = %d, want 2 (Wednesday)", resp.SelectedDay)
	}
	if len(resp.Selected.Sessions) != 1 || resp.Selected.Sessions[0].ID != "s1" {
		t.Errorf("selected sessions = %+v", resp.Selected.Sessions)
	}
	if !resp.Days[0].Empty || resp.Days[4].Empty {
		t.Errorf("empty flags: monday=%v friday=%v", resp.Days[0].Empty, resp.Days[4].Empty)
	}
	if len(resp.Workouts) != 1 || resp.Workouts[0].UDI != "umb://document/8b0e2d3c6a1f4b7e9c553d2a1f0e9b77" {
		t.Errorf("workouts = %+v", resp.Workouts)
	}
}

func TestWeekViewBadParams(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{"/api/view/week?offset=x", "/api/view/week?day=7"} {
		if rec := env.do(http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestWeekViewBackendUnreachable(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	srv := newServerFor(url, events.NewHub())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/view/week", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestCreateSessionRejectsInvalidTime(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/view/week/sessions", `{"date":"2024-05-15","time":"25:00","title":"Yoga"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "Please choose a valid time (HH:mm)." {
		t.Errorf("error = %q", body["error"])
	}
	if n := env.calls.Load(); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/view/week/sessions", `{"date":"2024-05-15","time":"17:00","title":"Yoga"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Session struct {
			ID   string `json:"id"`
			Time string `json:"time"`
		} `json:"session"`
		Notice string `json:"notice"`
	}
	decodeBody(t, rec, &body)
	if body.Session.ID != "new" || body.Session.Time != "17:00" {
		t.Errorf("session = %+v", body.Session)
	}
	if body.Notice != "Added to Wed 17:00" {
		t.Errorf("notice = %q", body.Notice)
	}
}

func TestRemoveSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodDelete, "/api/view/week/sessions/s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = env.do(http.MethodDelete, "/api/view/week/sessions/locked", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "Session is locked" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestWorkoutProgress(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/view/workouts/morning-flow/progress?t=12", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var p struct {
		Index           int      `json:"index"`
		ElapsedInStep   float64  `json:"elapsed_in_step"`
		StepFraction    float64  `json:"step_fraction"`
		OverallElapsed  float64  `json:"overall_elapsed"`
		OverallFraction float64  `json:"overall_fraction"`
		ElapsedText     string   `json:"elapsed_text"`
		NextAt          *float64 `json:"next_at"`
	}
	decodeBody(t, rec, &p)
	if p.Index != 1 || p.ElapsedInStep != 2 || p.StepFraction != 0.4 || p.OverallElapsed != 12 {
		t.Errorf("progress = %+v", p)
	}
	if p.OverallFraction != 12.0/15.0 {
		t.Errorf("overall fraction = %v", p.OverallFraction)
	}
	if p.ElapsedText != "0:12" {
		t.Errorf("elapsed text = %q", p.ElapsedText)
	}
	if p.NextAt != nil {
		t.Errorf("next_at = %v, want null at the last step", *p.NextAt)
	}

	rec = env.do(http.MethodGet, "/api/view/workouts/morning-flow/progress?t=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad t: status = %d, want 400", rec.Code)
	}
}

func TestWorkoutSteps(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/view/workouts/morning-flow/steps", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Title     string `json:"title"`
		Level     string `json:"level"`
		TotalText string `json:"total_text"`
		Steps     []struct {
			ID string `json:"id"`
		} `json:"steps"`
	}
	decodeBody(t, rec, &body)
	if body.Title != "Morning flow" || body.Level != "Easy" || body.TotalText != "0:15" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Steps) != 2 || body.Steps[0].ID != "a" {
		t.Errorf("steps = %+v", body.Steps)
	}
}

func TestForwardedRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodDelete, "/api/schedule/s1", "")
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("delete: %d %q", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/schedule?from=2024-05-13&to=2024-05-19", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"s1"`) {
		t.Errorf("list: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLoginPublishesAuthChanged(t *testing.T) {
	env := newTestEnv(t)
	ch, cancel := env.hub.Subscribe()
	defer cancel()

	rec := env.do(http.MethodPost, "/api/auth/login", `{"username":"anna","password":"x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Set-Cookie"); strings.Contains(got, "Domain=") {
		t.Errorf("set-cookie kept backend domain: %q", got)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Error("no auth-changed signal after login")
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	readEvent := func() string {
		t.Helper()
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("reading stream: %v", err)
			}
			if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event: "); ok {
				return name
			}
		}
	}

	if got := readEvent(); got != "ready" {
		t.Fatalf("first event = %q, want ready", got)
	}
	env.hub.Publish()
	if got := readEvent(); got != "auth-changed" {
		t.Errorf("event = %q, want auth-changed", got)
	}
}

func TestMissingBaseURL(t *testing.T) {
	srv := newServerFor("", events.NewHub())
	for _, target := range []string{"/api/favorites", "/api/view/week"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", target, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestFrontendFallback(t *testing.T) {
	env := newTestEnv(t)
	env.srv.SetFrontend(fstest.MapFS{
		"index.html":    {Data: []byte("<html>app</html>")},
		"assets/app.js": {Data: []byte("console.log(1)")},
	})

	req := httptest.NewRequest(http.MethodGet, "/plan", nil)
	req.Header.Set("Cookie", IdentityCookie+"=abc")
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "app") {
		t.Errorf("spa fallback: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plan", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("signed out: status = %d, want 302", rec.Code)
	}
}

func TestFavoritesView(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/view/favorites?q=knee", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var items []struct {
		Key         string `json:"key"`
		MinutesText string `json:"minutes_text"`
		Summary     string `json:"summary"`
	}
	decodeBody(t, rec, &items)
	if len(items) != 1 || items[0].Key != "k1" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].MinutesText != "10 min" || items[0].Summary != "Gentle knee work" {
		t.Errorf("item = %+v", items[0])
	}
}

func TestToggleFavoriteView(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/view/favorites/k1/toggle?favorited=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]bool
	decodeBody(t, rec, &body)
	if body["favorited"] {
		t.Error("favorited = true, want server value false")
	}
}
