package assistant

import (
	"context"
	"fmt"
	"time"

	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	kit "neurotutor/internal/transport"
	"neurotutor/internal/transport/telegram/router"
	logx "neurotutor/pkg/logx"
	"neurotutor/pkg/tgui"
)

const (
	langScope  = "lang"
	langAction = "select"
)

// start activates the user, gates on the allow-list and offers the language
// picker.
func (h *Handlers) start(ctx context.Context, req *router.Request) error {
	first := h.opts.Sessions.MarkActive(req.FromID, req.FromUsername)
	authorized := h.opts.Access.IsAuthorized(req.FromUsername)
	h.bus.Publish(eventbus.Event{Type: eventbus.TypeUserGreeted, Data: Greeted{
		UserID:     req.FromID,
		Handle:     req.FromUsername,
		First:      first,
		Authorized: authorized,
	}})
	if !authorized {
		req.Logger.Info("greeting refused", logx.String("handle", req.FromUsername))
		return h.reply(ctx, req, h.cat.T(h.lang(req.FromID), i18n.KeyDisallowed), nil)
	}

	if h.opts.Registrar != nil {
		if ok, err := h.opts.Registrar.Register(ctx, req.FromUsername, req.Chat.ChatID); err != nil {
			req.Logger.Warn("chat id registration failed", logx.Err(err))
		} else if ok {
			req.Logger.Info("chat id registered", logx.String("handle", req.FromUsername))
		}
	}
	return h.reply(ctx, req, h.cat.T(h.lang(req.FromID), i18n.KeyGreeting), &kit.SendOptions{
		ReplyMarkupAdapter: h.languageKeyboard().Markup(),
	})
}

func (h *Handlers) languageKeyboard() *tgui.Inline {
	kb := tgui.NewInline()
	for _, l := range i18n.Supported {
		kb.Row(tgui.Btn(h.cat.T(l, i18n.KeyLanguageName), tgui.Data(langScope, langAction, string(l))))
	}
	return kb
}

// selectLanguage stores the picked language and turns the greeting into the
// localized welcome.
func (h *Handlers) selectLanguage(ctx context.Context, req *router.Request) error {
	l, err := i18n.Parse(req.Payload)
	if err != nil {
		return fmt.Errorf("language callback: %w", err)
	}
	h.opts.Sessions.SetLanguage(req.FromID, l)
	h.bus.Publish(eventbus.Event{Type: eventbus.TypeLanguageSet, Data: LanguageChosen{UserID: req.FromID, Lang: l}})

	welcome := h.cat.T(l, i18n.KeyWelcome)
	ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
	if err := h.opts.Sender.EditText(ctx, ref, welcome, nil); err != nil {
		req.Logger.Debug("edit failed; sending welcome instead", logx.Err(err))
		return h.reply(ctx, req, welcome, nil)
	}
	return nil
}

// help is limited to allow-listed users, like the course document.
func (h *Handlers) help(ctx context.Context, req *router.Request) error {
	l := h.lang(req.FromID)
	if !h.opts.Access.IsAuthorized(req.FromUsername) {
		return h.reply(ctx, req, h.cat.T(l, i18n.KeyDisallowed), nil)
	}
	return h.reply(ctx, req, h.cat.T(l, i18n.KeyHelp), &kit.SendOptions{DisablePreview: true})
}

// course sends the per-language course document to authorized users.
func (h *Handlers) course(ctx context.Context, req *router.Request) error {
	l := h.lang(req.FromID)
	if !h.opts.Access.IsAuthorized(req.FromUsername) {
		return h.reply(ctx, req, h.cat.T(l, i18n.KeyDisallowed), nil)
	}
	id := h.opts.CourseDocs[l]
	if id == "" || h.opts.Docs == nil {
		return h.reply(ctx, req, h.cat.T(l, i18n.KeyCourseMissing), nil)
	}
	text, err := h.opts.Docs.ExportText(ctx, id)
	if err != nil || text == "" {
		if err != nil {
			req.Logger.Warn("course document fetch failed", logx.String("doc", id), logx.Err(err))
		}
		return h.reply(ctx, req, h.cat.T(l, i18n.KeyCourseMissing), nil)
	}
	return h.reply(ctx, req, tgui.TruncRunes(text, tgui.MaxMessageRunes), &kit.SendOptions{DisablePreview: true})
}

func (h *Handlers) status(ctx context.Context, req *router.Request) error {
	r := h.opts.Rotation
	st := r.State()
	last := "-"
	if sum, ok := r.LastSummary(); ok {
		last = fmt.Sprintf("%s #%d, %d/%d files, %d users, %s",
			sum.At.Format(time.DateTime), sum.Index, sum.Delivered, sum.Delivered+sum.Failed, sum.Users, sum.Duration.Round(time.Millisecond))
	}
	text := h.cat.Tf(h.lang(req.FromID), i18n.KeyStatus, st.Index, st.Bound, st.Exhausted, string(r.Policy()), h.opts.Sessions.Len(), last)
	return h.reply(ctx, req, text, nil)
}

func (h *Handlers) denied(ctx context.Context, req *router.Request) error {
	return h.reply(ctx, req, h.cat.T(h.lang(req.FromID), i18n.KeyOwnerOnly), nil)
}

// text hands free text to the question flow.
func (h *Handlers) text(ctx context.Context, req *router.Request) error {
	msg := req.Update.Message
	if msg == nil || msg.IsGroup {
		return nil
	}
	dec, err := h.opts.Chat.Handle(ctx, msg)
	if err != nil {
		return err
	}
	req.Logger.Debug("chat handled", logx.String("decision", dec.Kind.String()))
	return nil
}
