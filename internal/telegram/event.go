package telegram

import "strings"

// Event is a normalized inbound message, consumed once by the request
// handler and never retained.
type Event struct {
	ChatID      int64
	DisplayName string
	Text        string
	IsCommand   bool
	Command     string
}

// Normalize converts a raw update into an Event. The second return is false
// when the update carries nothing a text bot can act on (no message, no chat,
// or a message from another bot).
func Normalize(u Update) (Event, bool) {
	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return Event{}, false
	}
	if msg.From != nil && msg.From.IsBot {
		return Event{}, false
	}

	ev := Event{
		ChatID:      msg.Chat.ID,
		DisplayName: DisplayName(msg.From),
		Text:        msg.Text,
	}
	if cmd, ok := parseCommand(msg.Text); ok {
		ev.IsCommand = true
		ev.Command = cmd
	}
	return ev, true
}

// parseCommand extracts the leading bot command, stripping any @botname
// suffix ("/start@KritikaBot" -> "start").
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return "", false
	}
	return strings.ToLower(cmd), true
}
