package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/bio"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/session"
)

// Caps on the session's bounded logs. Oldest entries drop first.
const (
	maxWorldEvents = 5
	maxHistory     = 10
)

// defaultDeathMessage is attached when the zero-health floor forces a
// game over the model did not call itself.
const defaultDeathMessage = "Your health has reached zero. Your story ends here."

// Reconcile applies a validated turn result to the session: numeric
// deltas through the biography codec, the event log append, and the
// history commit. Call with the session's turn lock held.
//
// The single most important rule lives here: the narrative model is
// never trusted to end the game on lethal outcomes. When the health
// delta drives the value to zero, game_over is forced on regardless of
// what the model decided, and result is mutated to reflect that.
func Reconcile(sess *session.Session, result *ModelTurnResult, outgoing string, now time.Time) {
	bioText := sess.World.PlayerBio

	if hr := bio.Apply(bioText, bio.StatHealth, result.StatusUpdate.HealthChange); hr.Applied {
		bioText = hr.Bio
		sess.World.Health = hr.Value
		if hr.ForcedZero && !result.GameStateChange.GameOver {
			result.GameStateChange.GameOver = true
			result.GameStateChange.CriticalMessage = defaultDeathMessage
		}
	}

	if mr := bio.Apply(bioText, bio.StatMoney, result.StatusUpdate.MoneyChange); mr.Applied {
		bioText = mr.Bio
		sess.World.Money = mr.Value
	}

	if desc := strings.TrimSpace(result.StatusUpdate.NewEventDescription); desc != "" {
		entry := fmt.Sprintf("[%s] %s", now.Format("15:04"), desc)
		sess.World.WorldEvents = appendEvent(sess.World.WorldEvents, entry)
	}

	sess.World.PlayerBio = bioText

	sess.History = append(sess.History,
		session.Message{Role: session.RoleUser, Text: outgoing},
		session.Message{Role: session.RoleModel, Text: result.Narrative},
	)
	if len(sess.History) > maxHistory {
		sess.History = sess.History[len(sess.History)-maxHistory:]
	}
}

// appendEvent adds entry to the newline-joined event log, keeping only
// the most recent maxWorldEvents lines.
func appendEvent(events, entry string) string {
	var lines []string
	for _, l := range strings.Split(events, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	lines = append(lines, entry)
	if len(lines) > maxWorldEvents {
		lines = lines[len(lines)-maxWorldEvents:]
	}
	return strings.Join(lines, "\n")
}
