package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/bio"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/llm"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/session"
)

// InitSentinel is the literal message value that triggers session
// (re)initialization instead of a model turn.
const InitSentinel = "INIT_CONTEXT"

// defaultStatSeed is the starting value for health and money when the
// incoming biography carries no stat tokens.
const defaultStatSeed = 100

// worldCreatedNarrative is the canned reply for a successful
// initialization. No model call is made for it.
const worldCreatedNarrative = "A new world has taken shape around you. Your story begins now — " +
	"tell me what you do first."

// TurnRequest is one inbound player turn.
type TurnRequest struct {
	APIKey  string
	APIType string
	UserID  string
	Message string
	World   session.WorldContext
}

// TurnReply is the HTTP-level reply for one turn. IsEnd mirrors the
// reconciled game_state_change.game_over, so the numeric-floor override
// drives it too.
type TurnReply struct {
	Reply          ModelTurnResult      `json:"reply"`
	UpdatedContext session.WorldContext `json:"updatedContext"`
	IsEnd          bool                 `json:"isEnd"`
}

// TurnRecord is handed to observers after a completed model turn.
// Raw is the backend's unvalidated text, kept for offline diagnosis.
type TurnRecord struct {
	UserID  string
	APIType string
	Message string
	Raw     string
	Reply   TurnReply
}

// TurnObserver receives completed turns. Observers must be cheap; they
// run on the request path after the reply is built.
type TurnObserver func(ctx context.Context, rec TurnRecord)

// ClientFactory builds a gateway client for one request. The API key is
// per-request material and must not outlive the returned client.
type ClientFactory func(apiType, apiKey string, logger *slog.Logger) (llm.Client, error)

// Controller is the per-request orchestrator: it owns the session for
// the duration of one turn and ties compiler, gateway, validator, and
// reconciler together.
type Controller struct {
	store     *session.Store
	clients   ClientFactory
	duration  time.Duration
	logger    *slog.Logger
	observers []TurnObserver

	// now is injectable for tests.
	now func() time.Time
}

// NewController creates a controller. duration is the time budget given
// to each new session.
func NewController(store *session.Store, clients ClientFactory, duration time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    store,
		clients:  clients,
		duration: duration,
		logger:   logger,
		now:      time.Now,
	}
}

// AddObserver registers fn to receive every completed model turn.
func (c *Controller) AddObserver(fn TurnObserver) {
	c.observers = append(c.observers, fn)
}

// HandleTurn runs one full turn. A returned error is a client error
// (unknown backend type); upstream failures never surface as errors —
// they become a terminal fallback reply so the game cannot hang.
func (c *Controller) HandleTurn(ctx context.Context, req TurnRequest) (TurnReply, error) {
	if req.Message == InitSentinel {
		return c.initialize(req), nil
	}

	client, err := c.clients(req.APIType, req.APIKey, c.logger)
	if err != nil {
		return TurnReply{}, fmt.Errorf("build gateway client: %w", err)
	}

	now := c.now()
	sess := c.store.GetOrCreate(req.UserID, seedWorld(req.World, int(c.duration/time.Second)), c.duration)

	sess.Lock()
	defer sess.Unlock()
	sess.Touch(now)

	compiled := Compile(sess, req.Message, now)

	raw, genErr := client.Generate(ctx, compiled.Instructions, compiled.Conversation)

	var result ModelTurnResult
	if genErr != nil {
		c.logger.Error("gateway exhausted, substituting terminal fallback",
			"user_id", req.UserID,
			"backend", client.Name(),
			"error", genErr,
		)
		result = gatewayFallback(client.Name())
	} else {
		result = ValidateResponse(raw, c.logger)
	}

	Reconcile(sess, &result, compiled.Outgoing, now)

	reply := TurnReply{
		Reply:          result,
		UpdatedContext: sess.World,
		IsEnd:          result.GameStateChange.GameOver,
	}

	rec := TurnRecord{
		UserID:  req.UserID,
		APIType: req.APIType,
		Message: compiled.Outgoing,
		Raw:     raw,
		Reply:   reply,
	}
	for _, fn := range c.observers {
		fn(ctx, rec)
	}

	return reply, nil
}

// initialize creates or resets the session and returns the canned
// world-created reply without contacting the model.
func (c *Controller) initialize(req TurnRequest) TurnReply {
	world := seedWorld(req.World, int(c.duration/time.Second))
	sess := c.store.Reset(req.UserID, world, c.duration)

	c.logger.Info("session initialized",
		"user_id", req.UserID,
		"duration", c.duration,
		"health", world.Health,
		"money", world.Money,
	)

	return TurnReply{
		Reply: ModelTurnResult{
			Narrative: worldCreatedNarrative,
		},
		UpdatedContext: sess.World,
		IsEnd:          false,
	}
}

// seedWorld guarantees the biography invariant: after initialization
// the bio carries exactly one health token and one money token. The
// structured stat fields are derived from the (possibly just seeded)
// tokens so text and numbers start in sync.
func seedWorld(world session.WorldContext, durationSec int) session.WorldContext {
	world.PlayerBio = bio.Seed(world.PlayerBio, bio.StatHealth, defaultStatSeed)
	world.PlayerBio = bio.Seed(world.PlayerBio, bio.StatMoney, defaultStatSeed)

	if v, ok := bio.Value(world.PlayerBio, bio.StatHealth); ok {
		world.Health = v
	}
	if v, ok := bio.Value(world.PlayerBio, bio.StatMoney); ok {
		world.Money = v
	}
	world.TimeRemainingSec = durationSec
	return world
}

// gatewayFallback is the deterministic terminal result substituted when
// the gateway's attempt budget is exhausted.
func gatewayFallback(backend string) ModelTurnResult {
	return ModelTurnResult{
		Narrative: fmt.Sprintf("The voice of the %s storyteller falls silent mid-sentence, "+
			"and the world around you dissolves into static.", backend),
		GameStateChange: GameStateChange{
			GameOver:        true,
			CriticalMessage: fmt.Sprintf("Connection to the %s backend failed after repeated attempts.", backend),
		},
	}
}
