package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mulabo.app/chatbot/common/id"
	"mulabo.app/chatbot/common/logger"
	"mulabo.app/chatbot/internal/model"
	"mulabo.app/chatbot/internal/store"
)

const (
	ResetReply    = "会話をリセットしました。"
	GreetingReply = "おはようございます。"
	BirthdayReply = "お誕生日おめでとうございます！"
	ApologyReply  = "ごめんなさい、いまうまく返事ができません。少し待ってもう一度話しかけてください。"
)

// Completer generates a reply from the accumulated message history.
// internal/llm satisfies this.
type Completer interface {
	Complete(ctx context.Context, messages []model.Message) (string, error)
}

// Dispatcher routes one inbound message to its response path and owns the
// mutation of session state. Turns for the same user are serialized with a
// per-user mutex held for the whole turn, completion call included; turns
// for different users never contend.
type Dispatcher struct {
	sessions  store.SessionStore
	completer Completer
	archive   store.TurnArchive // nil disables archiving
	timeout   time.Duration

	locks sync.Map // user id -> *sync.Mutex
}

type DispatcherConfig struct {
	Sessions  store.SessionStore
	Completer Completer
	Archive   store.TurnArchive
	// Timeout bounds the completion call on the fallback path.
	Timeout time.Duration
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		sessions:  cfg.Sessions,
		completer: cfg.Completer,
		archive:   cfg.Archive,
		timeout:   timeout,
	}
}

// HandleMessage classifies the text, mutates the sender's session and
// returns the reply. The session is created lazily on the first message.
// A completion failure never leaves a dangling user message: the appended
// message is rolled back and the fixed apology reply is returned.
func (d *Dispatcher) HandleMessage(ctx context.Context, userID, displayName, text string) (string, error) {
	mu := d.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := d.sessions.Get(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sess = &model.Session{
			UserID:       userID,
			DisplayName:  displayName,
			Conversation: NewConversation(displayName),
		}
	case err != nil:
		return "", fmt.Errorf("loading session: %w", err)
	}

	intent := Classify(text, sess.Game.Active)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID: logger.Ptr(userID),
		Intent: logger.Ptr(string(intent)),
	})

	var reply string
	switch intent {
	case IntentReset:
		// Reset clears both subsystems: a fresh primed context and an
		// inactive game.
		sess.Conversation = NewConversation(displayName)
		sess.Game = model.GameState{}
		reply = ResetReply

	case IntentGreeting:
		sess.Conversation = Append(sess.Conversation, model.RoleUser, text)
		reply = GreetingReply
		sess.Conversation = Append(sess.Conversation, model.RoleAssistant, reply)

	case IntentBirthday:
		sess.Conversation = Append(sess.Conversation, model.RoleUser, text)
		reply = BirthdayReply
		sess.Conversation = Append(sess.Conversation, model.RoleAssistant, reply)

	case IntentGame:
		// Game turns are not recorded into the conversation replayed to
		// the completion gateway.
		reply = Game{State: &sess.Game}.HandleWord(text)

	default:
		reply = d.fallback(ctx, sess, text)
	}

	if err := d.sessions.Put(ctx, sess); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}

	d.recordTurn(ctx, userID, intent, text, reply)
	return reply, nil
}

// fallback replays the context to the completion gateway. On failure the
// appended user message is rolled back so the context holds no unanswered
// user turn.
func (d *Dispatcher) fallback(ctx context.Context, sess *model.Session, text string) string {
	sess.Conversation = Append(sess.Conversation, model.RoleUser, text)

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	reply, err := d.completer.Complete(cctx, sess.Conversation)
	if err != nil {
		slog.WarnContext(ctx, "completion failed, rolling back user turn",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		sess.Conversation = sess.Conversation[:len(sess.Conversation)-1]
		return ApologyReply
	}

	slog.DebugContext(ctx, "completion ok",
		"duration_ms", time.Since(start).Milliseconds(),
		"context_len", len(sess.Conversation),
	)
	sess.Conversation = Append(sess.Conversation, model.RoleAssistant, reply)
	return reply
}

func (d *Dispatcher) recordTurn(ctx context.Context, userID string, intent Intent, text, reply string) {
	if d.archive == nil {
		return
	}

	turn := model.Turn{
		ID:        id.New(),
		UserID:    userID,
		Intent:    string(intent),
		Text:      text,
		Reply:     reply,
		CreatedAt: time.Now(),
	}
	if err := d.archive.Record(ctx, turn); err != nil {
		slog.WarnContext(ctx, "turn archive write failed", "error", err, "turn_id", turn.ID)
	}
}

func (d *Dispatcher) userLock(userID string) *sync.Mutex {
	mu, _ := d.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
