package schedule

import "github.com/movekind/gateway/internal/models"

// MutationState tags the lifecycle of a create or remove.
type MutationState int

const (
	Idle MutationState = iota
	Pending
	Committed
	Failed
)

func (s MutationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// MarshalText renders the state name in JSON.
func (s MutationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mutation operations.
const (
	OpCreate = "create"
	OpRemove = "remove"
)

// Mutation is the latest create or remove. Session is the committed
// session for Committed creates and the target for removes; Err is set
// only when State is Failed.
type Mutation struct {
	State   MutationState           `json:"state"`
	Op      string                  `json:"op,omitempty"`
	Session models.ScheduledSession `json:"session"`
	Err     error                   `json:"-"`
}
