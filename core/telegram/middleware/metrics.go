package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const countersKey = "render_counters"

// Counters describe what was delivered while handling one update.
type Counters struct {
	Sent     int
	Edited   int
	Keyboard bool
}

// Messages is the number of delivered messages, sent or edited.
func (c Counters) Messages() int { return c.Sent + c.Edited }

// metricsContext counts successful sends and edits made through the context.
type metricsContext struct {
	tele.Context
	counters *Counters
}

// Send proxies tele.Context.Send.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.counters.Sent++
		m.counters.Keyboard = m.counters.Keyboard || hasKeyboard(opts)
	}
	return err
}

// Edit proxies tele.Context.Edit.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.counters.Edited++
		m.counters.Keyboard = m.counters.Keyboard || hasKeyboard(opts)
	}
	return err
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// MessageMetricsMiddleware wraps the context so the renderer reports what it delivered.
// Counters are per update; the view of one update is rendered by a single worker.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counters := &Counters{}
		c.Set(countersKey, counters)
		return next(metricsContext{Context: c, counters: counters})
	}
}

// GetCounters returns the delivery counters of c, zero when the middleware did not run.
func GetCounters(c tele.Context) Counters {
	if v, ok := c.Get(countersKey).(*Counters); ok && v != nil {
		return *v
	}
	return Counters{}
}
