// Package game implements the session state machine: it compiles
// player turns into backend requests, validates the backend's free-text
// output against the response contract, and reconciles the result into
// the persistent session record.
package game

// ModelTurnResult is the contract every validated backend reply
// satisfies. It is the only shape the rest of the system accepts from
// the model gateway.
type ModelTurnResult struct {
	Narrative           string          `json:"narrative"`
	AchievementUnlocked bool            `json:"achievement_unlocked"`
	StatusUpdate        StatusUpdate    `json:"status_update"`
	GameStateChange     GameStateChange `json:"game_state_change"`
}

// StatusUpdate carries the turn's numeric deltas and event line.
type StatusUpdate struct {
	HealthChange        int    `json:"health_change"`
	MoneyChange         int    `json:"money_change"`
	NewEventDescription string `json:"new_event_description"`
}

// GameStateChange carries the turn's terminal-state decision. The
// model's game_over is advisory only: the zero-health floor in the
// reconciler overrides it on lethal outcomes.
type GameStateChange struct {
	GameOver        bool   `json:"game_over"`
	CriticalMessage string `json:"critical_message"`
}
