package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"mulabo.app/chatbot/common/logger"
)

// fallbackDisplayName seeds the primer when the profile lookup fails.
const fallbackDisplayName = "ゲスト"

// Responder is the core entry point; internal/chat.Dispatcher satisfies it.
type Responder interface {
	HandleMessage(ctx context.Context, userID, displayName, text string) (string, error)
}

type LineWebhookHandler struct {
	channelSecret string
	messenger     Messenger
	responder     Responder
}

func NewLineWebhookHandler(channelSecret string, messenger Messenger, responder Responder) *LineWebhookHandler {
	return &LineWebhookHandler{
		channelSecret: channelSecret,
		messenger:     messenger,
		responder:     responder,
	}
}

// HandleCallback receives the signed platform payload. Signature
// verification happens inside ParseRequest (HMAC-SHA256 over the raw body
// with the channel secret); a mismatch is rejected with 400 and the core is
// never invoked. Once the payload is authentic the webhook always
// acknowledges 200, regardless of reply-delivery outcome — the platform
// retries otherwise.
func (h *LineWebhookHandler) HandleCallback(c *gin.Context) {
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		Component: "chatbot.webhook",
	})

	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			slog.WarnContext(ctx, "webhook signature mismatch")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		slog.WarnContext(ctx, "webhook payload unparsable", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	for _, event := range cb.Events {
		h.handleEvent(ctx, event)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *LineWebhookHandler) handleEvent(ctx context.Context, event webhook.EventInterface) {
	me, ok := event.(webhook.MessageEvent)
	if !ok {
		slog.DebugContext(ctx, "ignoring non-message event")
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ReplyToken: logger.Ptr(me.ReplyToken),
	})

	tm, ok := me.Message.(webhook.TextMessageContent)
	if !ok {
		// Non-text content never reaches the core.
		h.reply(ctx, me.ReplyToken, "Received message.")
		return
	}

	source, ok := me.Source.(webhook.UserSource)
	if !ok {
		// Group/room sources get the generic echo, as the core keys
		// sessions by user identity.
		h.reply(ctx, me.ReplyToken, "Received message: "+tm.Text)
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID: logger.Ptr(source.UserId),
	})

	displayName, err := h.messenger.DisplayName(ctx, source.UserId)
	if err != nil {
		slog.WarnContext(ctx, "profile lookup failed", "error", err)
		displayName = fallbackDisplayName
	}

	reply, err := h.responder.HandleMessage(ctx, source.UserId, displayName, tm.Text)
	if err != nil {
		slog.ErrorContext(ctx, "dispatch failed", "error", err,
			"text", logger.Truncate(tm.Text, 200))
		reply = errorReply
	}

	h.reply(ctx, me.ReplyToken, reply)
}

func (h *LineWebhookHandler) reply(ctx context.Context, replyToken, text string) {
	if err := h.messenger.ReplyText(ctx, replyToken, text); err != nil {
		slog.ErrorContext(ctx, "reply delivery failed", "error", err)
	}
}

// errorReply is sent when the dispatcher itself errors (session store
// unavailable). Completion failures are degraded inside the dispatcher and
// never surface here.
const errorReply = "ごめんなさい、いま調子が悪いみたい。少し待ってもう一度話しかけてください。"
