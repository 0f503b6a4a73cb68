// Package keyboard builds inline keyboards for rendered views.
package keyboard

import (
	"github.com/m3rciful/pagebot/core/pages"

	tele "gopkg.in/telebot.v4"
)

// InlineBtn describes one inline button. An empty Unique sends Data as the
// raw callback data.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtons builds an inline keyboard where each button sits on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// FromControls renders page transitions one per row, in order. The callback
// data of each button is the target page id. No controls yields nil.
func FromControls(controls []pages.Transition) *tele.ReplyMarkup {
	if len(controls) == 0 {
		return nil
	}
	buttons := make([]InlineBtn, 0, len(controls))
	for _, c := range controls {
		buttons = append(buttons, InlineBtn{Text: c.Label, Data: string(c.Target)})
	}
	return InlineButtons(buttons)
}
