// Package prompts builds the instruction templates sent to the
// narrative backend. Two templates exist: the normal turn, which
// narrates the outcome of a player action, and the ending turn, which
// forces the story to a conclusion once the session's time budget has
// elapsed. Both embed the player's long-term memory (biography, goal,
// event log) and mandate a single strict JSON object as output.
package prompts

import (
	"fmt"
	"strings"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/session"
)

// calmWorldPlaceholder stands in for an empty event log so the model
// always has something to anchor on.
const calmWorldPlaceholder = "(The world is calm. Nothing notable has happened yet.)"

// responseContract is the structural contract every backend reply must
// honor. It is embedded verbatim in both instruction templates and
// mirrored by ResponseSchema for backends with native structured output.
const responseContract = `Respond with EXACTLY ONE JSON object and nothing else — no markdown fences,
no commentary, no surrounding prose. The object must have this exact shape:

{
  "narrative": "the story text shown to the player",
  "achievement_unlocked": false,
  "status_update": {
    "health_change": 0,
    "money_change": 0,
    "new_event_description": "one short line describing what just happened, or empty"
  },
  "game_state_change": {
    "game_over": false,
    "critical_message": "only set when game_over is true"
  }
}

All four top-level fields are required. health_change and money_change are
integers (negative for losses). game_over is a boolean.`

const normalTemplate = `You are the narrator of an alternative-reality life simulation. The player
lives inside the world described below. Narrate the outcome of the player's
latest action in second person, grounded in their biography, their current
goal, and the recent world events. Keep the tone immersive; never mention
that you are a language model or that this is a game engine.

## Player biography
%s

## Current goal
%s

## Recent world events
%s

## Rules
- End the narrative by proposing at least 2 concrete next actions the player could take.
- If the action is lethal, or would leave the player's health at zero, set game_over to true and explain why in critical_message.
- If the action causes a significant gain or loss of wealth, reflect it precisely in money_change.
- Report health changes from injuries, healing, illness, or recovery in health_change.
- Put one short summary line of any notable development in new_event_description.

%s`

const endingTemplate = `You are the narrator of an alternative-reality life simulation, and the
player's allotted time in this world has just run out. Write the closing
chapter: summarize the player's whole journey using their biography, their
goal, and the recorded world events below. Acknowledge their final action,
give the story a worthy conclusion, and say farewell.

## Player biography
%s

## Current goal
%s

## Recorded world events
%s

## Rules
- This is the end: set game_over to true and put a farewell in critical_message.
- Set health_change and money_change to 0. The story is over; the numbers no longer move.
- Leave new_event_description empty.

%s`

// Normal returns the instruction template for a regular turn.
func Normal(world session.WorldContext) string {
	return fmt.Sprintf(normalTemplate,
		world.PlayerBio,
		world.CurrentGoal,
		eventLog(world),
		responseContract,
	)
}

// Ending returns the instruction template for a forced ending turn.
func Ending(world session.WorldContext) string {
	return fmt.Sprintf(endingTemplate,
		world.PlayerBio,
		world.CurrentGoal,
		eventLog(world),
		responseContract,
	)
}

// EndingMessage builds the synthetic outgoing message for an ending
// turn. The player's literal last action rides along for flavor.
func EndingMessage(lastAction string) string {
	return fmt.Sprintf("(Time is up. My final action was: %s. Please conclude my story.)", lastAction)
}

func eventLog(world session.WorldContext) string {
	if strings.TrimSpace(world.WorldEvents) == "" {
		return calmWorldPlaceholder
	}
	return world.WorldEvents
}

// ResponseSchema returns the structured-output schema handed to
// backends that support schema-constrained generation (Gemini). It is
// the same contract as the prose version embedded in the templates.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"narrative":            map[string]any{"type": "STRING"},
			"achievement_unlocked": map[string]any{"type": "BOOLEAN"},
			"status_update": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"health_change":         map[string]any{"type": "INTEGER"},
					"money_change":          map[string]any{"type": "INTEGER"},
					"new_event_description": map[string]any{"type": "STRING"},
				},
				"required": []string{"health_change", "money_change", "new_event_description"},
			},
			"game_state_change": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"game_over":        map[string]any{"type": "BOOLEAN"},
					"critical_message": map[string]any{"type": "STRING"},
				},
				"required": []string{"game_over", "critical_message"},
			},
		},
		"required": []string{"narrative", "achievement_unlocked", "status_update", "game_state_change"},
	}
}
