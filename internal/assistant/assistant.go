// Package assistant holds the Telegram-facing handlers: the greeting and
// language picker, help, course content, operator status and the free-text
// question flow.
package assistant

import (
	"context"
	"time"

	"neurotutor/internal/conversation"
	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	"neurotutor/internal/rotation"
	"neurotutor/internal/session"
	kit "neurotutor/internal/transport"
	"neurotutor/internal/transport/telegram/router"
	logx "neurotutor/pkg/logx"
)

// Sender is the transport surface the handlers use.
type Sender interface {
	kit.TextSender
	EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error
}

type Authorizer interface {
	IsAuthorized(handle string) bool
}

// Registrar records a greeting user's chat id in the allow-list source.
type Registrar interface {
	Register(ctx context.Context, handle string, chatID int64) (bool, error)
}

type DocReader interface {
	ExportText(ctx context.Context, id string) (string, error)
}

type ChatHandler interface {
	Handle(ctx context.Context, msg *kit.Message) (conversation.Decision, error)
}

// RotationStatus is the read side of the broadcast used by /status.
type RotationStatus interface {
	State() rotation.State
	LastSummary() (rotation.TickSummary, bool)
	Policy() rotation.Policy
}

type Options struct {
	Sessions        *session.Store
	Access          Authorizer
	Registrar       Registrar // optional
	Sender          Sender
	Docs            DocReader
	CourseDocs      map[i18n.Lang]string
	Chat            ChatHandler
	Rotation        RotationStatus // optional; /status is not registered without it
	Catalog         *i18n.Catalog
	DefaultLanguage i18n.Lang
	Bus             eventbus.Bus
	Log             logx.Logger

	CommandTimeout time.Duration
	ChatTimeout    time.Duration
}

// Greeted is the payload of eventbus.TypeUserGreeted.
type Greeted struct {
	UserID     int64
	Handle     string
	First      bool
	Authorized bool
}

// LanguageChosen is the payload of eventbus.TypeLanguageSet.
type LanguageChosen struct {
	UserID int64
	Lang   i18n.Lang
}

type Handlers struct {
	opts Options
	log  logx.Logger
	cat  *i18n.Catalog
	bus  eventbus.Bus
}

func New(opts Options) *Handlers {
	h := &Handlers{opts: opts, log: opts.Log, cat: opts.Catalog, bus: opts.Bus}
	if h.log.IsZero() {
		h.log = logx.Nop()
	}
	if h.cat == nil {
		h.cat = i18n.Default()
	}
	if h.bus == nil {
		h.bus = eventbus.Nop()
	}
	if !h.opts.DefaultLanguage.Valid() {
		h.opts.DefaultLanguage = i18n.RU
	}
	return h
}

// Registry lists the routes for router.Dispatcher.SetRegistry.
func (h *Handlers) Registry() router.Registry {
	def := h.opts.DefaultLanguage
	ct := h.opts.CommandTimeout
	cmds := []router.Command{
		{Name: "start", Description: h.cat.T(def, i18n.KeyCmdStart), Timeout: ct, Handle: h.start},
		{Name: "help", Description: h.cat.T(def, i18n.KeyCmdHelp), Timeout: ct, Handle: h.help},
		{Name: "course_content", Description: h.cat.T(def, i18n.KeyCmdCourse), Timeout: ct, Handle: h.course},
	}
	if h.opts.Rotation != nil {
		cmds = append(cmds, router.Command{
			Name:        "status",
			Description: h.cat.T(def, i18n.KeyCmdStatus),
			Access:      router.AccessOwnerOnly,
			Timeout:     ct,
			Handle:      h.status,
		})
	}
	return router.Registry{
		Commands: cmds,
		Callbacks: []router.CallbackRoute{
			{Scope: langScope, Action: langAction, Timeout: ct, Handle: h.selectLanguage},
		},
		Text:        h.text,
		TextTimeout: h.opts.ChatTimeout,
		Denied:      h.denied,
	}
}

func (h *Handlers) lang(userID int64) i18n.Lang {
	return h.opts.Sessions.Language(userID, h.opts.DefaultLanguage)
}

func (h *Handlers) reply(ctx context.Context, req *router.Request, text string, opt *kit.SendOptions) error {
	_, err := h.opts.Sender.SendText(ctx, req.Chat, text, opt)
	return err
}
