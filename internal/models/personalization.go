package models

// Personalization holds the member's onboarding answers. encoding/json
// matches keys case-insensitively, so PascalCase payloads decode too.
type Personalization struct {
	Needs   []string `json:"personalizationNeeds" validate:"dive,oneof=Knee Back Shoulder Hips Seated 'No floor' Mobility Balance"`
	Level   *string  `json:"personalizationLevel" validate:"omitempty,oneof=Easy Medium Advanced"`
	Skipped bool     `json:"personalizationSkipped"`
}

func (p *Personalization) normalize() {
	if p.Level != nil && *p.Level == "" {
		p.Level = nil
	}
	if p.Needs == nil {
		p.Needs = []string{}
	}
}

// Member is the signed-in member profile.
type Member struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}
