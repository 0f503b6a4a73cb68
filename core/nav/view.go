package nav

import "github.com/m3rciful/pagebot/core/pages"

// Mode selects whether a view is sent as a new message or replaces the one
// holding the pressed button.
type Mode int

const (
	ModeSend Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "send"
}

// View is the render instruction produced for one event.
type View struct {
	Text     string
	Format   pages.Format
	Controls []pages.Transition
	Mode     Mode
}
