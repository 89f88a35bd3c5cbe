package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexID is an identifier the backend sends either as a JSON number or a
// string.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// Favorite is a favorited workout node.
type Favorite struct {
	ID          FlexID   `json:"id"`
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	ImageURL    string   `json:"imageUrl"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    float64  `json:"duration" validate:"gte=0"`
	Level       string   `json:"level"`
	Tags        []string `json:"tags"`
}

func (f *Favorite) normalize() {
	f.Key = strings.TrimSpace(f.Key)
}

// DisplayTitle falls back from title to name.
func (f Favorite) DisplayTitle() string {
	if t := strings.TrimSpace(f.Title); t != "" {
		return t
	}
	return strings.TrimSpace(f.Name)
}

// MinutesText renders the duration as "N min", or "" when unknown.
func (f Favorite) MinutesText() string {
	if f.Duration <= 0 {
		return ""
	}
	m := int(f.Duration/60 + 0.5)
	if m < 1 {
		m = 1
	}
	return fmt.Sprintf("%d min", m)
}

// FavoriteToggle is the response of POST /favorites/{id}/toggle.
type FavoriteToggle struct {
	WorkoutID FlexID `json:"workoutId"`
	Favorited bool   `json:"favorited"`
}
