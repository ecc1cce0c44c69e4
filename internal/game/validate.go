package game

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// parseErrorEvent is the event log marker for malformed backend output.
const parseErrorEvent = "JSON Parsing Error"

// formatErrorNarrative is shown to the player when the backend's text
// could not be parsed. The game continues; only this turn is lost.
const formatErrorNarrative = "The world flickers for a moment — the narrator's words came out garbled " +
	"and could not be understood. Nothing has changed. Try your action again."

// ValidateResponse parses raw backend text against the response
// contract. Any parse failure — malformed JSON, markdown fences,
// surrounding prose — yields a deterministic non-terminal fallback so
// the game never stalls on bad output. Beyond JSON decoding, field
// values are accepted as-is; a syntactically valid but semantically
// wrong object passes through unchecked.
func ValidateResponse(raw string, logger *slog.Logger) ModelTurnResult {
	trimmed := strings.TrimSpace(raw)

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var result ModelTurnResult
	if err := dec.Decode(&result); err != nil {
		if logger != nil {
			logger.Error("backend output failed validation", "error", err, "raw", raw)
		}
		return parseFallback()
	}

	// Trailing content after the object means the model wrapped its
	// JSON in prose. Treat it the same as malformed output.
	if _, err := dec.Token(); err != io.EOF {
		if logger != nil {
			logger.Error("backend output has trailing content", "raw", raw)
		}
		return parseFallback()
	}

	return result
}

func parseFallback() ModelTurnResult {
	return ModelTurnResult{
		Narrative: formatErrorNarrative,
		StatusUpdate: StatusUpdate{
			NewEventDescription: parseErrorEvent,
		},
		GameStateChange: GameStateChange{GameOver: false},
	}
}
