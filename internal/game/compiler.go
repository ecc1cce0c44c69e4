package game

import (
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/llm"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/prompts"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/session"
)

// CompiledTurn is an outbound backend request built from session state.
// Conversation is a copy: nothing is committed to the session until the
// reply has been validated and reconciled.
type CompiledTurn struct {
	Instructions string
	Conversation []llm.Message

	// Outgoing is the message actually sent (and later committed to
	// history). On an ending turn it is the synthetic time-is-up
	// prompt, which still carries the player's literal action text.
	Outgoing string

	// IsEnding reports that the session's time budget has elapsed.
	// Elapsed time only grows, so once true it is true for every
	// subsequent turn of the session.
	IsEnding bool
}

// Compile builds the outbound request for one turn. As a deliberate
// side effect it refreshes the session's time_remaining_sec, on the
// ending path and off it. Call with the session's turn lock held.
func Compile(sess *session.Session, message string, now time.Time) CompiledTurn {
	remaining := sess.Remaining(now)
	sess.World.TimeRemainingSec = int(remaining / time.Second)

	isEnding := now.Sub(sess.StartTime) >= sess.Duration

	var instructions, outgoing string
	if isEnding {
		instructions = prompts.Ending(sess.World)
		outgoing = prompts.EndingMessage(message)
	} else {
		instructions = prompts.Normal(sess.World)
		outgoing = message
	}

	conversation := make([]llm.Message, 0, len(sess.History)+1)
	for _, m := range sess.History {
		conversation = append(conversation, llm.Message{Role: m.Role, Content: m.Text})
	}
	conversation = append(conversation, llm.Message{Role: session.RoleUser, Content: outgoing})

	return CompiledTurn{
		Instructions: instructions,
		Conversation: conversation,
		Outgoing:     outgoing,
		IsEnding:     isEnding,
	}
}
