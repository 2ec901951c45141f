package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"neurotutor/internal/runtime/supervisor"
	kit "neurotutor/internal/transport"
	logx "neurotutor/pkg/logx"
	"neurotutor/pkg/tgui"
)

// DispatchLoop consumes updates until ctx is done or updates is closed.
// Handlers run on a bounded worker pool.
func (d *Dispatcher) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := d.workers
	if workers <= 0 {
		workers = max(runtime.NumCPU(), 2)
	}
	sup := supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(d.log.With(logx.String("comp", "telegram.router"))),
		supervisor.WithCancelOnError(false),
	)
	d.log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(d.jobs)))

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-d.jobs:
					if !ok {
						return nil
					}
					d.runJob(idx, job)
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		close(d.jobs)
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		d.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			d.Route(ctx, up)
		}
	}
}

func (d *Dispatcher) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic in handler job", logx.Int("worker", worker), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

// tryEnqueue reports false when the queue is full or already closed.
func (d *Dispatcher) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case d.jobs <- fn:
		return true
	default:
		return false
	}
}

// Route turns one update into a queued handler call.
func (d *Dispatcher) Route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			d.routeMessage(ctx, up)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			d.routeCallback(ctx, up)
		}
	}
}

func (d *Dispatcher) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	req := &Request{
		Update:       up,
		Chat:         kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:       msg.FromID,
		FromUsername: msg.FromUsername,
		Command:      "text",
		Text:         msg.Text,
		MessageID:    msg.ID,
	}

	d.mu.RLock()
	reg := d.reg
	d.mu.RUnlock()

	h, timeout, access := reg.Text, reg.TextTimeout, AccessEveryone
	if word, args, ok := parseCommand(msg.Text); ok {
		if cmd, found := d.lookup(word); found {
			req.Command = cmd.Name
			req.Args = args
			h, timeout, access = cmd.Handle, cmd.Timeout, cmd.Access
		}
	}
	if h == nil {
		return
	}
	if access == AccessOwnerOnly && !d.isOwner(msg.FromID) {
		if reg.Denied != nil {
			d.enqueue(ctx, req, reg.Denied, 0, func() { d.sendBusy(ctx, req) })
		}
		return
	}
	d.enqueue(ctx, req, h, timeout, func() { d.sendBusy(ctx, req) })
}

func (d *Dispatcher) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	scope, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok {
		return
	}
	d.mu.RLock()
	route, found := d.cbs[scope+":"+action]
	d.mu.RUnlock()
	if !found {
		_ = d.answer(ctx, cb.ID, "")
		return
	}
	if route.Access == AccessOwnerOnly && !d.isOwner(cb.FromID) {
		_ = d.answer(ctx, cb.ID, "forbidden")
		return
	}
	req := &Request{
		Update:       up,
		Chat:         kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:       cb.FromID,
		FromUsername: cb.FromUsername,
		Command:      "cb:" + scope + ":" + action,
		MessageID:    cb.MessageID,
		CallbackID:   cb.ID,
		Payload:      payload,
	}
	h := func(c context.Context, r *Request) error {
		err := route.Handle(c, r)
		// stop the client spinner
		_ = d.answer(c, cb.ID, "")
		return err
	}
	d.enqueue(ctx, req, h, route.Timeout, func() { _ = d.answer(ctx, cb.ID, d.busy) })
}

func (d *Dispatcher) enqueue(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration, onBusy func()) {
	req.ReqID = newReqID()
	req.Logger = d.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", req.Command),
	)
	final := Chain(h,
		MWPanicRecover(d.log),
		MWRequestLog(d.log),
		MWTimeout(timeout),
	)
	if !d.tryEnqueue(func() { _ = final(ctx, req) }) {
		req.Logger.Warn("handler queue full; request dropped")
		onBusy()
	}
}

func (d *Dispatcher) sendBusy(ctx context.Context, req *Request) {
	if d.resp == nil {
		return
	}
	_, _ = d.resp.SendText(ctx, req.Chat, d.busy, nil)
}

func (d *Dispatcher) answer(ctx context.Context, id, text string) error {
	if d.resp == nil || strings.TrimSpace(id) == "" {
		return nil
	}
	return d.resp.AnswerCallback(ctx, id, text)
}
