package nav

import "strings"

// Sender identifies who produced an inbound event.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName is the name used in greetings.
func (s Sender) DisplayName() string {
	if name := strings.TrimSpace(s.FirstName); name != "" {
		return name
	}
	if name := strings.TrimSpace(s.Username); name != "" {
		return name
	}
	return "friend"
}

// Kind tags the variant carried by a Request.
type Kind int

const (
	KindCommand Kind = iota + 1
	KindText
	KindButton
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindButton:
		return "button"
	}
	return "unknown"
}

// Command is a slash command understood by the engine, without the slash.
type Command string

const (
	CommandStart Command = "start"
	CommandHelp  Command = "help"
	CommandStats Command = "stats"
)

// CommandInfo describes a command for the transport's command menu.
type CommandInfo struct {
	Command     Command
	Description string
}

var commandInfos = []CommandInfo{
	{Command: CommandStart, Description: "Open the main menu"},
	{Command: CommandHelp, Description: "How to use this bot"},
	{Command: CommandStats, Description: "Your interaction statistics"},
}

// Commands lists the supported commands in menu order.
func Commands() []CommandInfo {
	return append([]CommandInfo(nil), commandInfos...)
}

// ParseCommand maps a command name with or without the leading slash.
func ParseCommand(name string) (Command, bool) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	for _, info := range commandInfos {
		if string(info.Command) == name {
			return info.Command, true
		}
	}
	return "", false
}

// Label is the form recorded in the interaction log, e.g. "/start".
func (c Command) Label() string {
	return "/" + string(c)
}

// Request is a normalized inbound event. Payload holds the command label,
// the message text or the button data depending on Kind.
type Request struct {
	Sender  Sender
	Kind    Kind
	Payload string
}

// CommandRequest builds a command request.
func CommandRequest(s Sender, c Command) Request {
	return Request{Sender: s, Kind: KindCommand, Payload: c.Label()}
}

// TextRequest builds a free-text request.
func TextRequest(s Sender, text string) Request {
	return Request{Sender: s, Kind: KindText, Payload: text}
}

// ButtonRequest builds a button press request carrying the raw callback payload.
func ButtonRequest(s Sender, payload string) Request {
	return Request{Sender: s, Kind: KindButton, Payload: payload}
}

// Command returns the command of a KindCommand request.
func (r Request) Command() (Command, bool) {
	if r.Kind != KindCommand {
		return "", false
	}
	return ParseCommand(r.Payload)
}
