package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/movekind/gateway/internal/calendar"
	"github.com/movekind/gateway/internal/favorites"
	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/player"
	"github.com/movekind/gateway/internal/schedule"
	"github.com/movekind/gateway/internal/umbraco"
)

// --- Tool definitions ---

var toolGetWeekSchedule = mcp.NewTool("get_week_schedule",
	mcp.WithDescription("List the member's scheduled sessions for one Monday to Sunday week, grouped by day."),
	mcp.WithNumber("offset", mcp.Description("Week offset from the current week (-1 = last week, 1 = next week). Defaults to 0.")),
)

var toolAddSession = mcp.NewTool("add_session",
	mcp.WithDescription("Schedule a workout session on a date and time."),
	mcp.WithString("date", mcp.Required(), mcp.Description("Date (YYYY-MM-DD)")),
	mcp.WithString("time", mcp.Required(), mcp.Description("Start time (HH:mm, 24-hour)")),
	mcp.WithString("title", mcp.Required(), mcp.Description("Session name")),
	mcp.WithString("workout", mcp.Required(), mcp.Description("Workout reference: a workout GUID or an umb://document/ UDI")),
)

var toolRemoveSession = mcp.NewTool("remove_session",
	mcp.WithDescription("Remove a scheduled session by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session id as returned by get_week_schedule")),
)

var toolGetWorkoutSteps = mcp.NewTool("get_workout_steps",
	mcp.WithDescription("Get a workout's timed instructional steps in playback order."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Workout slug (e.g. 'morning-mobility')")),
	mcp.WithNumber("duration", mcp.Description("Video duration in seconds, used to size the last step. Defaults to the workout duration.")),
)

var toolGetStepAtTime = mcp.NewTool("get_step_at_time",
	mcp.WithDescription("Find the active step and progress for a playback position in a workout video."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Workout slug")),
	mcp.WithNumber("t", mcp.Required(), mcp.Description("Playback position in seconds")),
	mcp.WithNumber("duration", mcp.Description("Video duration in seconds. Defaults to the workout duration.")),
)

var toolListFavorites = mcp.NewTool("list_favorites",
	mcp.WithDescription("List the member's favorite workouts, optionally filtered by a search query."),
	mcp.WithString("query", mcp.Description("Case-insensitive filter on title, name and description")),
)

var toolToggleFavorite = mcp.NewTool("toggle_favorite",
	mcp.WithDescription("Flip a workout's favorite flag. Returns the new state."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id")),
)

// --- Tool handlers ---

func (h *handlers) getWeekSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := h.week(h.ctx(ctx), req.GetInt("offset", 0))
	if err != nil {
		h.log.Error("mcp get_week_schedule", "error", err)
		return mcp.NewToolResultError(umbraco.Message(err)), nil
	}
	return jsonResult(snap)
}

func (h *handlers) week(ctx context.Context, offset int) (schedule.Snapshot, error) {
	view := schedule.NewView(h.b, schedule.WithClock(h.now))
	defer view.Detach()
	if err := view.LoadWeek(ctx, calendar.NewWeekWindow(h.now(), offset)); err != nil {
		return schedule.Snapshot{}, err
	}
	return view.Snapshot(), nil
}

func (h *handlers) addSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError("date parameter is required"), nil
	}
	d, err := calendar.ParseISODate(date, h.now().Location())
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	window := calendar.NewWeekWindow(d, 0)
	day := window.Days[window.DayIndex(date)]

	view := schedule.NewView(h.b, schedule.WithClock(h.now))
	defer view.Detach()

	session, err := view.CreateSession(h.ctx(ctx), day,
		req.GetString("time", ""), req.GetString("title", ""), req.GetString("workout", ""))
	if err != nil {
		h.log.Warn("mcp add_session", "error", err)
		return mcp.NewToolResultError(umbraco.Message(err)), nil
	}
	return jsonResult(map[string]any{"session": session, "notice": view.Notice()})
}

func (h *handlers) removeSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	view := schedule.NewView(h.b, schedule.WithClock(h.now))
	defer view.Detach()

	if err := view.RemoveSession(h.ctx(ctx), id); err != nil {
		h.log.Warn("mcp remove_session", "error", err)
		return mcp.NewToolResultError(umbraco.Message(err)), nil
	}
	return mcp.NewToolResultText(view.Notice()), nil
}

func (h *handlers) steps(ctx context.Context, req mcp.CallToolRequest) ([]player.Step, *mcp.CallToolResult) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return nil, mcp.NewToolResultError("slug parameter is required")
	}
	item, err := h.b.GetWorkout(h.ctx(ctx), slug)
	if err != nil {
		h.log.Error("mcp workout lookup", "slug", slug, "error", err)
		return nil, mcp.NewToolResultError(umbraco.Message(err))
	}
	return player.StepsFromWorkout(item, req.GetFloat("duration", 0)), nil
}

func (h *handlers) getWorkoutSteps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	steps, failed := h.steps(ctx, req)
	if failed != nil {
		return failed, nil
	}
	if steps == nil {
		steps = []player.Step{}
	}
	ps := player.NewSynchronizer(steps)
	return jsonResult(map[string]any{
		"total_seconds": ps.Total(),
		"total_text":    player.FormatMMSS(ps.Total()),
		"steps":         steps,
	})
}

func (h *handlers) getStepAtTime(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := req.RequireFloat("t")
	if err != nil {
		return mcp.NewToolResultError("t parameter is required"), nil
	}
	steps, failed := h.steps(ctx, req)
	if failed != nil {
		return failed, nil
	}
	ps := player.NewSynchronizer(steps)
	p, _ := ps.Update(t)
	return jsonResult(p)
}

func (h *handlers) listFavorites(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := favorites.NewList(h.b)
	if err := list.Load(h.ctx(ctx)); err != nil {
		h.log.Error("mcp list_favorites", "error", err)
		return mcp.NewToolResultError(list.Error()), nil
	}
	items := list.Filter(req.GetString("query", ""))
	if items == nil {
		items = []models.Favorite{}
	}
	return jsonResult(items)
}

func (h *handlers) toggleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	btn := favorites.NewButton(h.b, id, false)
	favorited, err := btn.Toggle(h.ctx(ctx))
	if err != nil {
		h.log.Warn("mcp toggle_favorite", "id", id, "error", err)
		return mcp.NewToolResultError(umbraco.Message(err)), nil
	}
	return jsonResult(map[string]any{"id": id, "favorited": favorited})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
