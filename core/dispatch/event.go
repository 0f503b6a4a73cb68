package dispatch

import (
	"strings"

	"github.com/m3rciful/pagebot/core/apperror"
	"github.com/m3rciful/pagebot/core/nav"
)

// callbackPrefix marks callback data produced for buttons with a unique id,
// encoded as "\f<unique>|<data>".
const callbackPrefix = "\f"

// Event is a transport-neutral inbound update.
type Event struct {
	UpdateID int
	ChatID   int64
	Sender   nav.Sender
	// Message is set for chat messages. Text is empty for media without a caption.
	Message *Message
	// Callback is set for button presses.
	Callback *Callback
}

// Message carries the text of an inbound chat message.
type Message struct {
	Text string
}

// Callback carries the data attached to a pressed button.
type Callback struct {
	ID   string
	Data string
}

// Classify maps ev onto exactly one request kind. Events that fit none of
// them yield a ClassificationError.
func Classify(ev Event) (nav.Request, error) {
	if ev.Sender.ID == 0 {
		return nav.Request{}, apperror.Unclassifiable("event has no sender")
	}
	switch {
	case ev.Callback != nil:
		payload := ParseCallbackData(ev.Callback.Data)
		if payload == "" {
			return nav.Request{}, apperror.Unclassifiable("callback without data")
		}
		return nav.ButtonRequest(ev.Sender, payload), nil

	case ev.Message != nil:
		text := ev.Message.Text
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nav.Request{}, apperror.Unclassifiable("message without text")
		}
		// A lone "/" or "/ words" carries no command name and reads as text.
		if name := CommandName(trimmed); strings.HasPrefix(trimmed, "/") && name != "" {
			cmd, ok := nav.ParseCommand(name)
			if !ok {
				return nav.Request{}, apperror.Unclassifiable("unknown command /" + name)
			}
			return nav.CommandRequest(ev.Sender, cmd), nil
		}
		return nav.TextRequest(ev.Sender, text), nil
	}
	return nav.Request{}, apperror.Unclassifiable("unsupported update")
}

// CommandName extracts the bare command from "/cmd@bot args".
func CommandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

// ParseCallbackData returns the payload of raw callback data, decoding the
// "\f<unique>|<data>" form. A unique id without data is the payload itself.
func ParseCallbackData(raw string) string {
	if !strings.HasPrefix(raw, callbackPrefix) {
		return strings.TrimSpace(raw)
	}
	unique, data, found := strings.Cut(strings.TrimPrefix(raw, callbackPrefix), "|")
	if found && strings.TrimSpace(data) != "" {
		return strings.TrimSpace(data)
	}
	return strings.TrimSpace(unique)
}
