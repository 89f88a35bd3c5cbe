// Package favorites holds the favorites view-state: the per-workout
// toggle, which is the only optimistic update in the app, and the
// favorites list page.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/umbraco"
)

// ErrBusy is returned by Toggle while a previous toggle is in flight.
var ErrBusy = errors.New("favorite toggle already in progress")

// Toggler flips a workout's favorite flag on the backend.
type Toggler interface {
	ToggleFavorite(ctx context.Context, id string) (models.FavoriteToggle, error)
}

// Button is the favorite state of one workout.
type Button struct {
	backend Toggler
	id      string

	mu        sync.Mutex
	favorited bool
	loading   bool
	errMsg    string
}

// NewButton returns a button for workout id with its initial state.
func NewButton(b Toggler, id string, favorited bool) *Button {
	return &Button{backend: b, id: id, favorited: favorited}
}

// Toggle flips the state immediately, then confirms with the backend. On
// failure the previous state is restored; on success the server's value
// wins.
func (b *Button) Toggle(ctx context.Context) (bool, error) {
	b.mu.Lock()
	if b.loading {
		cur := b.favorited
		b.mu.Unlock()
		return cur, ErrBusy
	}
	prev := b.favorited
	b.favorited = !prev
	b.loading = true
	b.errMsg = ""
	b.mu.Unlock()

	res, err := b.backend.ToggleFavorite(ctx, b.id)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
	if err != nil {
		b.favorited = prev
		b.errMsg = umbraco.Message(err)
		return prev, fmt.Errorf("toggling favorite %s: %w", b.id, err)
	}
	b.favorited = res.Favorited
	return b.favorited, nil
}

// State returns the favorite flag, whether a toggle is in flight and the
// last error message.
func (b *Button) State() (favorited, loading bool, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.favorited, b.loading, b.errMsg
}
