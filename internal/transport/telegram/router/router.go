package router

import (
	"context"
	"strings"
	"sync"
	"time"

	kit "neurotutor/internal/transport"
	logx "neurotutor/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Name        string   // without the leading "/"
	Aliases     []string // e.g. ["h"]
	Description string   // shown in the Telegram command menu
	Access      Access
	Hidden      bool // registered but kept out of the menu
	Timeout     time.Duration
	Handle      HandlerFunc
}

// CallbackRoute handles inline-button data of the form "scope:action:payload".
type CallbackRoute struct {
	Scope   string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  HandlerFunc
}

// Registry is everything the dispatcher routes to.
type Registry struct {
	Commands  []Command
	Callbacks []CallbackRoute
	// Text receives plain messages and unknown commands.
	Text        HandlerFunc
	TextTimeout time.Duration
	// Denied answers an owner-only request from someone else.
	Denied HandlerFunc
}

type Request struct {
	Update       kit.Update
	Chat         kit.ChatTarget
	FromID       int64
	FromUsername string
	Command      string // command name, "text" or "cb:scope:action"
	Args         []string
	Text         string // full message text
	MessageID    int
	CallbackID   string
	Payload      string // callback payload
	ReqID        string
	Logger       logx.Logger
}

// Responder is the transport surface the dispatcher itself needs.
type Responder interface {
	kit.TextSender
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// OwnerChecker reports whether a user may run owner-only routes.
type OwnerChecker interface {
	IsOwner(userID int64) bool
}

type Options struct {
	Log       logx.Logger
	Responder Responder
	Owners    OwnerChecker
	// Workers is the handler pool size. 0 means NumCPU (min 2).
	Workers  int
	QueueCap int
	// Busy is sent when the handler queue is full.
	Busy string
}

type Dispatcher struct {
	log  logx.Logger
	resp Responder
	busy string

	workers int
	jobs    chan func()

	mu       sync.RWMutex
	owners   OwnerChecker
	commands map[string]Command
	alias    map[string]string
	cbs      map[string]CallbackRoute // "scope:action"
	reg      Registry
}

func New(opt Options) *Dispatcher {
	log := opt.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	qc := opt.QueueCap
	if qc <= 0 {
		qc = 256
	}
	busy := strings.TrimSpace(opt.Busy)
	if busy == "" {
		busy = "busy, try again"
	}
	return &Dispatcher{
		log:      log,
		resp:     opt.Responder,
		busy:     busy,
		workers:  opt.Workers,
		jobs:     make(chan func(), qc),
		owners:   opt.Owners,
		commands: map[string]Command{},
		alias:    map[string]string{},
		cbs:      map[string]CallbackRoute{},
	}
}

// SetOwners swaps the owner set. Safe during hot reload.
func (d *Dispatcher) SetOwners(o OwnerChecker) {
	d.mu.Lock()
	d.owners = o
	d.mu.Unlock()
}

func (d *Dispatcher) isOwner(id int64) bool {
	d.mu.RLock()
	o := d.owners
	d.mu.RUnlock()
	return o != nil && o.IsOwner(id)
}

func (d *Dispatcher) SetRegistry(r Registry) {
	cmds := map[string]Command{}
	alias := map[string]string{}
	for _, c := range r.Commands {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		cmds[name] = c
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" && a != name {
				alias[a] = name
			}
		}
	}
	cbs := map[string]CallbackRoute{}
	for _, cb := range r.Callbacks {
		s, a := strings.TrimSpace(cb.Scope), strings.TrimSpace(cb.Action)
		if s == "" || a == "" || cb.Handle == nil {
			continue
		}
		cbs[s+":"+a] = cb
	}

	d.mu.Lock()
	d.commands = cmds
	d.alias = alias
	d.cbs = cbs
	d.reg = r
	d.mu.Unlock()
}

func (d *Dispatcher) lookup(word string) (Command, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	word = strings.ToLower(word)
	if c, ok := d.commands[word]; ok {
		return c, true
	}
	if name, ok := d.alias[word]; ok {
		c, ok := d.commands[name]
		return c, ok
	}
	return Command{}, false
}

// UpdateMenu pushes the visible commands to the platform menu when the
// transport supports it.
func (d *Dispatcher) UpdateMenu(ctx context.Context, up kit.CommandMenuUpdater) error {
	if up == nil {
		return nil
	}
	d.mu.RLock()
	cmds := append([]Command(nil), d.reg.Commands...)
	d.mu.RUnlock()
	return up.UpdateMenuCommands(ctx, BuildMenu(cmds))
}
