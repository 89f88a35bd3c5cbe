package favorites

import (
	"context"
	"errors"
	"testing"

	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/umbraco"
)

type toggleFunc func(id string) (models.FavoriteToggle, error)

func (f toggleFunc) ToggleFavorite(_ context.Context, id string) (models.FavoriteToggle, error) {
	return f(id)
}

func TestToggleAdoptsServerValue(t *testing.T) {
	b := NewButton(toggleFunc(func(id string) (models.FavoriteToggle, error) {
		return models.FavoriteToggle{WorkoutID: models.FlexID(id), Favorited: true}, nil
	}), "w1", false)

	got, err := b.Toggle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Error("favorited = false, want true")
	}
}

func TestToggleRollsBackOnFailure(t *testing.T) {
	b := NewButton(toggleFunc(func(string) (models.FavoriteToggle, error) {
		return models.FavoriteToggle{}, &umbraco.HTTPError{Op: "toggle favorite", Status: 401}
	}), "w1", true)

	got, err := b.Toggle(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	fav, loading, msg := b.State()
	if got != true || fav != true {
		t.Errorf("state after failure = %v/%v, want rollback to true", got, fav)
	}
	if loading {
		t.Error("still loading after failure")
	}
	if msg != "HTTP 401" {
		t.Errorf("message = %q, want HTTP 401", msg)
	}
}

func TestToggleIsOptimisticAndRejectsWhileLoading(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	b := NewButton(toggleFunc(func(string) (models.FavoriteToggle, error) {
		close(started)
		<-release
		return models.FavoriteToggle{Favorited: true}, nil
	}), "w1", false)

	done := make(chan struct{})
	go func() {
		_, _ = b.Toggle(context.Background())
		close(done)
	}()
	<-started

	fav, loading, _ := b.State()
	if !fav || !loading {
		t.Errorf("in flight: favorited=%v loading=%v, want true true", fav, loading)
	}
	if _, err := b.Toggle(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second toggle err = %v, want ErrBusy", err)
	}
	close(release)
	<-done
}

type fakeStore struct {
	items     []models.Favorite
	removeErr error
	removed   []string
}

func (s *fakeStore) ListFavorites(context.Context) ([]models.Favorite, error) {
	return s.items, nil
}

func (s *fakeStore) RemoveFavorite(_ context.Context, id string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, id)
	return nil
}

func sampleFavorites() []models.Favorite {
	return []models.Favorite{
		{Key: "k1", Name: "knee-care", Title: "Knee Care", Description: "<p>Gentle <strong>mobility</strong></p>"},
		{Key: "k2", Name: "back-basics", Title: "", Description: "<p>Core &amp; back</p>"},
	}
}

func TestListRemove(t *testing.T) {
	store := &fakeStore{items: sampleFavorites()}
	l := NewList(store)
	if err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := l.Remove(context.Background(), "k1"); err != nil {
		t.Fatal(err)
	}
	if items := l.Items(); len(items) != 1 || items[0].Key != "k2" {
		t.Errorf("items = %+v", items)
	}
	if len(store.removed) != 1 || store.removed[0] != "k1" {
		t.Errorf("removed = %v", store.removed)
	}
}

func TestListRemoveFailureKeepsItem(t *testing.T) {
	store := &fakeStore{items: sampleFavorites(), removeErr: errors.New("offline")}
	l := NewList(store)
	if err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := l.Remove(context.Background(), "k1"); err == nil {
		t.Fatal("expected error")
	}
	if len(l.Items()) != 2 {
		t.Errorf("items = %d, want 2", len(l.Items()))
	}
	if l.Error() != "offline" {
		t.Errorf("error = %q", l.Error())
	}
}

func TestFilter(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{"k1", "k2"}},
		{"KNEE", []string{"k1"}},
		{"mobility", []string{"k1"}},
		{"core & back", []string{"k2"}},
		{"back-basics", []string{"k2"}},
		{"strong", nil},
	}
	for _, tc := range cases {
		got := Filter(sampleFavorites(), tc.query)
		if len(got) != len(tc.want) {
			t.Errorf("Filter(%q) = %d items, want %d", tc.query, len(got), len(tc.want))
			continue
		}
		for i := range got {
			if got[i].Key != tc.want[i] {
				t.Errorf("Filter(%q)[%d] = %s, want %s", tc.query, i, got[i].Key, tc.want[i])
			}
		}
	}
}

func TestPlainText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<p>One</p><p>Two</p>", "One\nTwo"},
		{"Line<br>break", "Line\nbreak"},
		{"<style>p{}</style><script>alert(1)</script>Safe", "Safe"},
		{"Fish &amp; chips&nbsp;today", "Fish & chips today"},
		{"<p>A</p><p></p><p></p><p>B</p>", "A\n\nB"},
	}
	for _, tc := range cases {
		if got := PlainText(tc.in); got != tc.want {
			t.Errorf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
