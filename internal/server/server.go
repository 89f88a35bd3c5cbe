package server

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/movekind/gateway/internal/events"
	"github.com/movekind/gateway/internal/proxy"
	"github.com/movekind/gateway/internal/umbraco"
)

// Options holds the dependencies of a Server.
type Options struct {
	Client       *umbraco.Client
	Proxy        *proxy.Proxy
	Hub          *events.Hub
	Logger       *slog.Logger
	AuthCheckTTL time.Duration
	CORSOrigin   string
	// Now overrides the clock used for "today" in week views.
	Now func() time.Time
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	client     *umbraco.Client
	proxy      *proxy.Proxy
	hub        *events.Hub
	gate       *AuthGate
	log        *slog.Logger
	now        func() time.Time
	corsOrigin string
	router     chi.Router
}

// New creates a new Server with all routes configured.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hub == nil {
		opts.Hub = events.NewHub()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var checker MemberChecker
	if opts.Client != nil {
		checker = opts.Client
	}
	s := &Server{
		client:     opts.Client,
		proxy:      opts.Proxy,
		hub:        opts.Hub,
		gate:       NewAuthGate(checker, opts.AuthCheckTTL, opts.Logger),
		log:        opts.Logger,
		now:        opts.Now,
		corsOrigin: opts.CORSOrigin,
		router:     chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// WatchAuthChanges flushes cached member checks whenever an auth-changed
// signal arrives. It blocks until ctx is done.
func (s *Server) WatchAuthChanges(ctx context.Context) {
	ch, cancel := s.hub.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.gate.Flush()
		}
	}
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS(s.corsOrigin))
	s.router.Use(s.gate.Middleware)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Schedule
		r.Get("/schedule", s.proxy.To(umbraco.PathSchedule))
		r.Post("/schedule", s.proxy.To(umbraco.PathSchedule))
		r.Put("/schedule/{key}", s.forwardScheduleItem)
		r.Delete("/schedule/{key}", s.forwardScheduleItem)

		// Favorites
		r.Get("/favorites", s.proxy.To(umbraco.PathFavorites))
		r.Get("/favorites/ids", s.proxy.To(umbraco.PathFavoriteIDs))
		r.Post("/favorites/{id}", s.forwardFavorite)
		r.Delete("/favorites/{id}", s.forwardFavorite)
		r.Post("/favorites/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
			s.proxy.Forward(w, r, umbraco.FavoriteTogglePath(chi.URLParam(r, "id")))
		})

		// Personalization answers change what the member sees, so saving
		// them counts as an auth change.
		r.Get("/personalization", s.proxy.To(umbraco.PathPersonalization))
		r.Put("/personalization", s.proxy.ForwardAuth(umbraco.PathPersonalization))

		// Auth and members
		r.Post("/auth/login", s.proxy.ForwardAuth(umbraco.PathMembersLogin))
		r.Post("/auth/register", s.proxy.ForwardAuth(umbraco.PathMembersRegister))
		r.Post("/auth/logout", s.proxy.ForwardAuth(umbraco.PathMembersLogout))
		r.Get("/auth/me", s.proxy.To(umbraco.PathMembersMe))
		r.Get("/members/me", s.proxy.To(umbraco.PathMembersMe))
		r.Put("/members/me", s.proxy.ForwardAuth(umbraco.PathMembersMe))

		// Workout content
		r.Get("/workouts", func(w http.ResponseWriter, r *http.Request) {
			s.proxy.ForwardCached(w, r, umbraco.WorkoutListPath())
		})
		r.Get("/workouts/{slug}", func(w http.ResponseWriter, r *http.Request) {
			s.proxy.ForwardCached(w, r, umbraco.WorkoutItemPath(chi.URLParam(r, "slug")))
		})

		// Computed view-state
		r.Get("/view/week", s.handleWeekView)
		r.Post("/view/week/sessions", s.handleCreateSession)
		r.Delete("/view/week/sessions/{id}", s.handleRemoveSession)
		r.Get("/view/workouts/{slug}/steps", s.handleWorkoutSteps)
		r.Get("/view/workouts/{slug}/progress", s.handleWorkoutProgress)
		r.Post("/view/favorites/{id}/toggle", s.handleToggleFavorite)
		r.Get("/view/favorites", s.handleFavoritesView)

		r.Get("/events", s.handleEvents)
	})

	s.router.Get("/media/*", s.handleMedia)
	s.router.Head("/media/*", s.handleMedia)
}

func (s *Server) forwardScheduleItem(w http.ResponseWriter, r *http.Request) {
	s.proxy.Forward(w, r, umbraco.ScheduleItemPath(chi.URLParam(r, "key")))
}

func (s *Server) forwardFavorite(w http.ResponseWriter, r *http.Request) {
	s.proxy.Forward(w, r, umbraco.FavoritePath(chi.URLParam(r, "id")))
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	s.proxy.Media(w, r, chi.URLParam(r, "*"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.Len(),
	})
}

// SetFrontend mounts the SPA filesystem.
// Unmatched routes serve index.html for client-side routing.
func (s *Server) SetFrontend(webFS fs.FS) {
	fileServer := http.FileServerFS(webFS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file first
		f, err := webFS.Open(r.URL.Path[1:]) // strip leading /
		if err == nil {
			_ = f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		// Fallback to index.html for SPA routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
