package umbraco

import (
	"net/url"
	"strings"
)

// Upstream paths on the CMS backend.
const (
	PathSchedule        = "/api/schedule"
	PathFavorites       = "/api/favorites"
	PathFavoriteIDs     = "/api/favorites/ids"
	PathPersonalization = "/api/personalization"
	PathMembersMe       = "/api/members/me"
	PathMembersLogin    = "/api/members/login"
	PathMembersRegister = "/api/members/register"
	PathMembersLogout   = "/api/members/logout"
	PathWorkouts        = "/umbraco/delivery/api/v2/content"
	PathMedia           = "/media/"
)

// ScheduleItemPath returns /api/schedule/{key}.
func ScheduleItemPath(key string) string {
	return PathSchedule + "/" + url.PathEscape(key)
}

// FavoritePath returns /api/favorites/{id}.
func FavoritePath(id string) string {
	return PathFavorites + "/" + url.PathEscape(id)
}

// FavoriteTogglePath returns /api/favorites/{id}/toggle.
func FavoriteTogglePath(id string) string {
	return FavoritePath(id) + "/toggle"
}

// WorkoutItemPath returns the delivery API path for a workout slug or id,
// with all properties expanded.
func WorkoutItemPath(slug string) string {
	return PathWorkouts + "/item/" + url.PathEscape(strings.Trim(slug, "/")) + "?expand=" + url.QueryEscape("properties[$all]")
}

// WorkoutListPath returns the delivery API listing path for workouts.
func WorkoutListPath() string {
	q := url.Values{}
	q.Set("filter", "contentType:workout")
	q.Set("expand", "properties[$all]")
	q.Set("take", "100")
	return PathWorkouts + "?" + q.Encode()
}
