// Package handler processes one inbound message event end to end: resolve
// the chat's session, ask the model, deliver the outcome.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kritika-bot/kritika/internal/convo"
	"github.com/kritika-bot/kritika/internal/gemini"
	"github.com/kritika-bot/kritika/internal/telegram"
)

// Sender delivers outbound text to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Fixed user-facing strings. Failures never leak internal detail to chat.
const (
	welcomeFormat = "Namaste %s! 🙏\n" +
		"Main Kritika hoon - Himanshu sir ki teaching assistant.\n\n" +
		"Aap mujhse poochh sakte hain:\n" +
		"• English grammar ke sawal\n" +
		"• Translation help (Hindi ↔ English)\n" +
		"• Vocabulary doubts\n" +
		"• Aur bhi koi bhi English-related problem!\n\n" +
		"Bas apna doubt bhejiye... Main poori koshish karungi aapki madad karne ki! 💪"

	replyEmptyModel   = "Maaf kijiye, main samjha nahi. Phir se try karein?"
	replyModelFailure = "Kuch technical problem aa raha hai. Thodi der baad try karein."
	replyInternal     = "Kuch technical problem aa gayi hai. Hum team ko inform kar diya hai."
)

// Result is the terminal state of one event.
type Result int

const (
	// Skipped: the event carried nothing to act on; no reply was sent.
	Skipped Result = iota
	// Delivered: a model reply (or the fixed apology for an empty one)
	// went to the chat.
	Delivered
	// FailedNotified: processing failed and the chat was told so with a
	// fixed message.
	FailedNotified
)

// Handler is the per-event state machine. Safe for concurrent use; per-chat
// serialization happens on the session's own lock.
type Handler struct {
	registry *convo.Registry
	model    gemini.Client
	sender   Sender
	log      *slog.Logger
}

// New builds a handler.
func New(registry *convo.Registry, model gemini.Client, sender Sender, log *slog.Logger) *Handler {
	return &Handler{registry: registry, model: model, sender: sender, log: log}
}

// HandleEvent processes one inbound event to a terminal state. Nothing it
// returns or logs ever propagates as an error to the caller's loop.
func (h *Handler) HandleEvent(ctx context.Context, ev telegram.Event) Result {
	log := h.log.With("chat_id", ev.ChatID, "event_id", uuid.NewString())

	if ev.IsCommand {
		if ev.Command == "start" {
			return h.handleStart(ctx, ev, log)
		}
		log.Debug("ignoring unknown command", "command", ev.Command)
		return Skipped
	}
	if strings.TrimSpace(ev.Text) == "" {
		log.Debug("empty message, nothing to do")
		return Skipped
	}
	return h.handleText(ctx, ev, log)
}

func (h *Handler) handleStart(ctx context.Context, ev telegram.Event, log *slog.Logger) Result {
	h.registry.GetOrCreate(ev.ChatID)

	name := strings.TrimSpace(ev.DisplayName)
	if name == "" {
		name = "dost"
	}
	if err := h.sender.SendMessage(ctx, ev.ChatID, fmt.Sprintf(welcomeFormat, name)); err != nil {
		log.Error("failed to send welcome", "error", err)
		h.notifyFailure(ctx, ev.ChatID, replyInternal, log)
		return FailedNotified
	}
	log.Info("sent welcome message")
	return Delivered
}

func (h *Handler) handleText(ctx context.Context, ev telegram.Event, log *slog.Logger) Result {
	log.Info("processing message", "text", truncate(ev.Text, 50))

	sess, _ := h.registry.GetOrCreate(ev.ChatID)

	// One exchange at a time per chat; other chats proceed independently.
	sess.Lock()
	defer sess.Unlock()

	reply, err := h.model.Generate(ctx, sess.History(), ev.Text)
	if err != nil {
		// The user turn is not recorded for a failed exchange.
		log.Error("model invocation failed", "error", err, "text", truncate(ev.Text, 50))
		h.notifyFailure(ctx, ev.ChatID, replyModelFailure, log)
		return FailedNotified
	}
	if reply == "" {
		log.Error("empty model response")
		h.notifyFailure(ctx, ev.ChatID, replyEmptyModel, log)
		return Delivered
	}

	sess.Append(
		convo.Turn{Role: convo.RoleUser, Text: ev.Text},
		convo.Turn{Role: convo.RoleModel, Text: reply},
	)
	if err := h.sender.SendMessage(ctx, ev.ChatID, reply); err != nil {
		// Logged and swallowed: no retry, no escalation.
		log.Error("failed to deliver reply", "error", err)
		return Delivered
	}
	log.Info("sent response")
	return Delivered
}

func (h *Handler) notifyFailure(ctx context.Context, chatID int64, text string, log *slog.Logger) {
	if err := h.sender.SendMessage(ctx, chatID, text); err != nil {
		log.Error("failed to deliver failure notice", "error", err)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
