package models

import "strings"

// Role tags who produced a turn.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

// Turn is one immutable message unit of a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SessionKey identifies a single conversation.
type SessionKey struct {
	UserID     string `json:"user_id"`
	ScenarioID string `json:"scenario_id"`
}

// Valid reports whether both halves of the key are present.
func (k SessionKey) Valid() bool {
	return strings.TrimSpace(k.UserID) != "" && strings.TrimSpace(k.ScenarioID) != ""
}

func (k SessionKey) String() string {
	return k.UserID + "/" + k.ScenarioID
}

// CloneTurns returns an independent copy of turns.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
