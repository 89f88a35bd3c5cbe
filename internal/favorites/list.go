package favorites

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/umbraco"
)

// Store lists and removes favorites. *umbraco.Client satisfies it.
type Store interface {
	ListFavorites(ctx context.Context) ([]models.Favorite, error)
	RemoveFavorite(ctx context.Context, id string) error
}

// List is the favorites page state.
type List struct {
	backend Store

	mu       sync.Mutex
	items    []models.Favorite
	pageErr  string
	removing string
}

// NewList returns an empty list.
func NewList(s Store) *List {
	return &List{backend: s}
}

// Load replaces the items. On failure the previous items stay.
func (l *List) Load(ctx context.Context) error {
	items, err := l.backend.ListFavorites(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.pageErr = umbraco.Message(err)
		return fmt.Errorf("loading favorites: %w", err)
	}
	l.items = items
	l.pageErr = ""
	return nil
}

// Remove unfavorites key. The item is dropped only after the backend
// confirms.
func (l *List) Remove(ctx context.Context, key string) error {
	l.mu.Lock()
	if l.removing != "" {
		l.mu.Unlock()
		return ErrBusy
	}
	l.removing = key
	l.mu.Unlock()

	err := l.backend.RemoveFavorite(ctx, key)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.removing = ""
	if err != nil {
		l.pageErr = umbraco.Message(err)
		return fmt.Errorf("removing favorite %s: %w", key, err)
	}
	l.items = slices.DeleteFunc(slices.Clone(l.items), func(f models.Favorite) bool { return f.Key == key })
	return nil
}

// Items returns a copy of the loaded favorites.
func (l *List) Items() []models.Favorite {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

// Error returns the last load or remove failure message.
func (l *List) Error() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pageErr
}

// Filter returns the favorites whose title, name or plain-text description
// contain query, case-insensitively. An empty query returns everything.
func (l *List) Filter(query string) []models.Favorite {
	items := l.Items()
	return Filter(items, query)
}

// Filter is the stateless form of List.Filter.
func Filter(items []models.Favorite, query string) []models.Favorite {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := []models.Favorite{}
	for _, f := range items {
		hay := strings.ToLower(f.DisplayTitle() + "\n" + f.Name + "\n" + PlainText(f.Description))
		if strings.Contains(hay, q) {
			out = append(out, f)
		}
	}
	return out
}
