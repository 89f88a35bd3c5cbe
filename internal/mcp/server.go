package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/movekind/gateway/internal/favorites"
	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/schedule"
	"github.com/movekind/gateway/internal/umbraco"
)

// Backend is the member API the tools drive. *umbraco.Client satisfies it.
type Backend interface {
	schedule.Backend
	favorites.Store
	favorites.Toggler
	GetWorkout(ctx context.Context, slug string) (models.WorkoutItem, error)
}

// New creates an MCP server with all tools and resources registered. cookie
// is the member session used when the transport does not carry one.
func New(b Backend, cookie, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("MoveKind", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("MoveKind workout planner. Read and edit the member's weekly schedule, look up workout steps and favorites. All calls act as the signed-in member."),
	)

	h := &handlers{b: b, cookie: cookie, log: log, now: time.Now}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetWeekSchedule, Handler: h.getWeekSchedule},
		server.ServerTool{Tool: toolAddSession, Handler: h.addSession},
		server.ServerTool{Tool: toolRemoveSession, Handler: h.removeSession},
		server.ServerTool{Tool: toolGetWorkoutSteps, Handler: h.getWorkoutSteps},
		server.ServerTool{Tool: toolGetStepAtTime, Handler: h.getStepAtTime},
		server.ServerTool{Tool: toolListFavorites, Handler: h.listFavorites},
		server.ServerTool{Tool: toolToggleFavorite, Handler: h.toggleFavorite},
	)

	// Resources
	s.AddResource(resThisWeek, h.thisWeek)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	b      Backend
	cookie string
	log    *slog.Logger
	now    func() time.Time
}

// ctx attaches the configured cookie unless the transport already put one
// on the context.
func (h *handlers) ctx(ctx context.Context) context.Context {
	if umbraco.CookieFromContext(ctx) != "" || h.cookie == "" {
		return ctx
	}
	return umbraco.WithCookie(ctx, h.cookie)
}

var resThisWeek = mcp.NewResource(
	"movekind://this_week",
	"This Week",
	mcp.WithResourceDescription("The member's scheduled sessions for the current Monday to Sunday week"),
	mcp.WithMIMEType("application/json"),
)
