package app

import (
	"context"

	"neurotutor/internal/assistant"
	"neurotutor/internal/eventbus"
	"neurotutor/internal/rotation"
	logx "neurotutor/pkg/logx"
)

// startEventLog mirrors bus events into the log. Routine events stay at
// debug; the end of a campaign and delivery failures are surfaced.
func (a *App) startEventLog() {
	if a.bus == nil {
		return
	}
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.logEvent(e)
			}
		}
	})
}

func (a *App) logEvent(e eventbus.Event) {
	fields := append([]logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}, eventFields(e)...)
	switch e.Type {
	case eventbus.TypeExhausted:
		a.log.Info("broadcast finished", fields...)
	case eventbus.TypeDeliveryFail:
		a.log.Warn("event", fields...)
	default:
		a.log.Debug("event", fields...)
	}
}

func eventFields(e eventbus.Event) []logx.Field {
	switch d := e.Data.(type) {
	case rotation.TickSummary:
		return []logx.Field{
			logx.String("tick_id", d.TickID),
			logx.Int("index", d.Index),
			logx.Int("users", d.Users),
			logx.Int("delivered", d.Delivered),
			logx.Int("failed", d.Failed),
		}
	case rotation.State:
		return []logx.Field{logx.Int("index", d.Index), logx.Int("bound", d.Bound)}
	case rotation.DeliveryFailure:
		return []logx.Field{
			logx.String("tick_id", d.TickID),
			logx.Int64("user_id", d.UserID),
			logx.String("file", d.File),
			logx.Err(d.Err),
		}
	case assistant.Greeted:
		return []logx.Field{
			logx.Int64("user_id", d.UserID),
			logx.Bool("first", d.First),
			logx.Bool("authorized", d.Authorized),
		}
	case assistant.LanguageChosen:
		return []logx.Field{logx.Int64("user_id", d.UserID), logx.String("lang", string(d.Lang))}
	case int64:
		return []logx.Field{logx.Int64("user_id", d)}
	default:
		return nil
	}
}
