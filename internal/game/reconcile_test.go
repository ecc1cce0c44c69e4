package game

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/session"
)

func reconcileSession(bioText string) *session.Session {
	return &session.Session{
		UserID:    "u1",
		World:     session.WorldContext{PlayerBio: bioText, Health: 100, Money: 100},
		StartTime: time.Now(),
		Duration:  time.Minute,
	}
}

func TestReconcileAppliesDeltas(t *testing.T) {
	sess := reconcileSession("health 100 money 100")
	result := ModelTurnResult{
		Narrative: "You sell your watch.",
		StatusUpdate: StatusUpdate{
			HealthChange:        -10,
			MoneyChange:         50,
			NewEventDescription: "Sold the watch",
		},
	}

	Reconcile(sess, &result, "sell my watch", time.Now())

	if !strings.Contains(sess.World.PlayerBio, "health 90") {
		t.Errorf("bio = %q, want health 90", sess.World.PlayerBio)
	}
	if !strings.Contains(sess.World.PlayerBio, "money 150") {
		t.Errorf("bio = %q, want money 150", sess.World.PlayerBio)
	}
	if sess.World.Health != 90 || sess.World.Money != 150 {
		t.Errorf("structured stats = %d/%d, want 90/150", sess.World.Health, sess.World.Money)
	}
	if !strings.Contains(sess.World.WorldEvents, "Sold the watch") {
		t.Errorf("event log = %q", sess.World.WorldEvents)
	}
	if len(sess.History) != 2 {
		t.Fatalf("history = %d entries, want 2", len(sess.History))
	}
	if sess.History[0].Role != session.RoleUser || sess.History[0].Text != "sell my watch" {
		t.Errorf("history[0] = %+v", sess.History[0])
	}
	if sess.History[1].Role != session.RoleModel || sess.History[1].Text != "You sell your watch." {
		t.Errorf("history[1] = %+v", sess.History[1])
	}
}

func TestReconcileZeroHealthForcesGameOver(t *testing.T) {
	// Localized bio, lethal delta, lying model.
	sess := reconcileSession("生命值 10 金錢 50")
	result := ModelTurnResult{
		Narrative:       "A scratch, nothing more.",
		StatusUpdate:    StatusUpdate{HealthChange: -15},
		GameStateChange: GameStateChange{GameOver: false},
	}

	Reconcile(sess, &result, "fight the bear", time.Now())

	if !strings.Contains(sess.World.PlayerBio, "生命值 0") {
		t.Errorf("bio = %q, want 生命值 0", sess.World.PlayerBio)
	}
	if !result.GameStateChange.GameOver {
		t.Fatal("zero health must force game_over regardless of the model")
	}
	if result.GameStateChange.CriticalMessage != defaultDeathMessage {
		t.Errorf("critical message = %q, want default", result.GameStateChange.CriticalMessage)
	}
	if sess.World.Health != 0 {
		t.Errorf("structured health = %d, want 0", sess.World.Health)
	}
}

func TestReconcileKeepsModelGameOverMessage(t *testing.T) {
	sess := reconcileSession("health 5")
	result := ModelTurnResult{
		StatusUpdate: StatusUpdate{HealthChange: -5},
		GameStateChange: GameStateChange{
			GameOver:        true,
			CriticalMessage: "The dragon wins.",
		},
	}

	Reconcile(sess, &result, "charge", time.Now())

	if result.GameStateChange.CriticalMessage != "The dragon wins." {
		t.Errorf("model's own terminal message was replaced: %q", result.GameStateChange.CriticalMessage)
	}
}

func TestReconcileMissingFieldIsSilentNoop(t *testing.T) {
	sess := reconcileSession("A drifter with no records.")
	result := ModelTurnResult{
		StatusUpdate: StatusUpdate{HealthChange: -50, MoneyChange: -50},
	}

	Reconcile(sess, &result, "gamble", time.Now())

	if sess.World.PlayerBio != "A drifter with no records." {
		t.Errorf("bio changed despite missing stat fields: %q", sess.World.PlayerBio)
	}
	if result.GameStateChange.GameOver {
		t.Error("no-op delta must not force game over")
	}
}

func TestReconcileEventLogCap(t *testing.T) {
	sess := reconcileSession("health 100 money 100")
	now := time.Now()

	for i := 1; i <= 7; i++ {
		result := ModelTurnResult{
			StatusUpdate: StatusUpdate{NewEventDescription: fmt.Sprintf("event %d", i)},
		}
		Reconcile(sess, &result, "act", now)
	}

	lines := strings.Split(sess.World.WorldEvents, "\n")
	if len(lines) != 5 {
		t.Fatalf("event log holds %d lines, want 5", len(lines))
	}
	// FIFO: oldest dropped first.
	if !strings.Contains(lines[0], "event 3") {
		t.Errorf("oldest surviving line = %q, want event 3", lines[0])
	}
	if !strings.Contains(lines[4], "event 7") {
		t.Errorf("newest line = %q, want event 7", lines[4])
	}
}

func TestReconcileEventLineTimestamped(t *testing.T) {
	sess := reconcileSession("health 100 money 100")
	now := time.Date(2026, 3, 1, 14, 7, 0, 0, time.Local)

	result := ModelTurnResult{
		StatusUpdate: StatusUpdate{NewEventDescription: "It rained."},
	}
	Reconcile(sess, &result, "wait", now)

	if !strings.HasPrefix(sess.World.WorldEvents, "[14:07] ") {
		t.Errorf("event line = %q, want [14:07] prefix", sess.World.WorldEvents)
	}
}

func TestReconcileBlankEventSkipped(t *testing.T) {
	sess := reconcileSession("health 100 money 100")
	result := ModelTurnResult{
		StatusUpdate: StatusUpdate{NewEventDescription: "   "},
	}

	Reconcile(sess, &result, "idle", time.Now())

	if sess.World.WorldEvents != "" {
		t.Errorf("blank event appended: %q", sess.World.WorldEvents)
	}
}

func TestReconcileHistoryCap(t *testing.T) {
	sess := reconcileSession("health 100 money 100")

	for i := 1; i <= 8; i++ {
		result := ModelTurnResult{Narrative: fmt.Sprintf("reply %d", i)}
		Reconcile(sess, &result, fmt.Sprintf("action %d", i), time.Now())
	}

	if len(sess.History) != 10 {
		t.Fatalf("history = %d entries, want 10", len(sess.History))
	}
	// 8 turns = 16 entries; the oldest 6 drop, leaving action 4 first.
	if sess.History[0].Text != "action 4" {
		t.Errorf("history[0] = %q, want action 4", sess.History[0].Text)
	}
	if sess.History[9].Text != "reply 8" {
		t.Errorf("history[9] = %q, want reply 8", sess.History[9].Text)
	}
}

func TestReconcileMoneyFloor(t *testing.T) {
	sess := reconcileSession("health 100 money 10")
	result := ModelTurnResult{
		StatusUpdate: StatusUpdate{MoneyChange: -100},
	}

	Reconcile(sess, &result, "get robbed", time.Now())

	if !strings.Contains(sess.World.PlayerBio, "money 0") {
		t.Errorf("bio = %q, want money 0", sess.World.PlayerBio)
	}
	// Money has no forced-termination semantics.
	if result.GameStateChange.GameOver {
		t.Error("empty wallet must not end the game")
	}
}
