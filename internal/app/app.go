package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"neurotutor/internal/access"
	"neurotutor/internal/answer"
	"neurotutor/internal/assistant"
	"neurotutor/internal/config"
	"neurotutor/internal/content"
	"neurotutor/internal/conversation"
	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	"neurotutor/internal/langdetect"
	"neurotutor/internal/observability/ops"
	"neurotutor/internal/remote"
	"neurotutor/internal/rotation"
	"neurotutor/internal/runtime/supervisor"
	"neurotutor/internal/session"
	"neurotutor/internal/storage"
	"neurotutor/internal/task/scheduler"
	kit "neurotutor/internal/transport"
	telegram "neurotutor/internal/transport/telegram/adapter"
	"neurotutor/internal/transport/telegram/router"
	logx "neurotutor/pkg/logx"
)

// TickJob is the scheduler entry that drives the broadcast.
const TickJob = "rotation.tick"

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *telegram.Adapter
	remote  remote.Storage

	gate     *access.Gate
	sessions *session.Store
	engine   *answer.Service
	rotation *rotation.Scheduler // nil when broadcast is disabled
	sched    *scheduler.Service
	handlers *assistant.Handlers
	disp     *router.Dispatcher
	ops      *ops.Service

	startedAt time.Time
	updates   chan kit.Update
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Telegram logging stays off until the target is set, so Apply does not
	// warn about a missing chat.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	if chatID := groupLogTarget(cfg); chatID != 0 {
		logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	rs, err := openRemote(ctx, cfg.Remote)
	if err != nil {
		return nil, err
	}

	cat := i18n.Default()
	def := i18n.Lang(cfg.Content.DefaultLanguage)

	gate := loadGate(ctx, cfg.Access, rs, log.With(logx.String("comp", "access")))
	var registrar assistant.Registrar
	if cfg.Access.Source == "sheet" && cfg.Access.RegisterColumn != "" {
		registrar = &access.Registry{
			Sheet:   rs,
			SheetID: cfg.Access.SheetID,
			Range:   sheetRange(cfg.Access),
			Column:  cfg.Access.RegisterColumn,
		}
	}

	sessions := session.NewStore()

	engine, err := newAnswerEngine(cfg.Answer, rs, cat.T(def, i18n.KeyNoAnswer), log.With(logx.String("comp", "answer")))
	if err != nil {
		return nil, err
	}
	detector, err := langdetect.New(cfg.Detector.Candidates)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, log.With(logx.String("comp", "scheduler")))

	var (
		rot    *rotation.Scheduler
		status assistant.RotationStatus
	)
	if cfg.Broadcast.Enabled {
		ro, err := rotationOptions(cfg)
		if err != nil {
			return nil, err
		}
		ro.Sessions = sessions
		ro.Gate = gate
		ro.Resolver = content.NewResolver(contentLocations(cfg.Content))
		ro.Storage = rs
		ro.Sender = ad
		ro.Catalog = cat
		ro.Audit = store
		ro.Bus = bus
		ro.Log = log.With(logx.String("comp", "rotation"))
		rot, err = rotation.New(ro)
		if err != nil {
			return nil, err
		}
		status = rot
		if _, err := sched.AddSchedule(TickJob, cfg.Broadcast.Schedule, 0, func(ctx context.Context) error {
			rot.Tick(ctx)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("broadcast.schedule: %w", err)
		}
	}

	var stickers []string
	if cfg.Chat.StickersFile != "" {
		stickers, err = conversation.LoadStickers(cfg.Chat.StickersFile)
		if err != nil {
			log.Warn("stickers not loaded", logx.String("path", cfg.Chat.StickersFile), logx.Err(err))
		}
	}
	chat := &conversation.Chat{
		Gate: &conversation.Gate{
			Access:          gate,
			Sessions:        sessions,
			Detector:        detector,
			DefaultLanguage: def,
		},
		Engine:   engine,
		Sender:   ad,
		Catalog:  cat,
		Stickers: stickers,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "chat")),
	}

	chatTimeout, err := config.ParseDurationOrDefault("telegram.handler_timeout", cfg.Telegram.HandlerTimeout, 2*time.Minute)
	if err != nil {
		return nil, err
	}
	handlers := assistant.New(assistant.Options{
		Sessions:        sessions,
		Access:          gate,
		Registrar:       registrar,
		Sender:          ad,
		Docs:            rs,
		CourseDocs:      courseDocs(cfg.Content),
		Chat:            chat,
		Rotation:        status,
		Catalog:         cat,
		DefaultLanguage: def,
		Bus:             bus,
		Log:             log.With(logx.String("comp", "assistant")),
		CommandTimeout:  30 * time.Second,
		ChatTimeout:     chatTimeout,
	})

	disp := router.New(router.Options{
		Log:       log.With(logx.String("comp", "router")),
		Responder: ad,
		Owners:    access.NewOwners(cfg.Telegram.OwnerUserIDs),
		Workers:   cfg.Telegram.Workers,
		Busy:      cat.T(def, i18n.KeyGenericError),
	})
	disp.SetRegistry(handlers.Registry())

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  ad,
		remote:   rs,
		gate:     gate,
		sessions: sessions,
		engine:   engine,
		rotation: rot,
		sched:    sched,
		handlers: handlers,
		disp:     disp,
		updates:  make(chan kit.Update, 256),
	}
	a.ops = ops.New(mapOpsConfig(cfg), func() any { return a.Status() }, log.With(logx.String("comp", "ops")))
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.startedAt = time.Now()
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateReload)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go0("telegram.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		if err := a.disp.UpdateMenu(mctx, a.adapter); err != nil {
			a.log.Warn("menu update failed", logx.Err(err))
		}
	})
	a.sup.Go("telegram.dispatch", func(c context.Context) error {
		return a.disp.DispatchLoop(c, a.updates)
	})

	// The first question would otherwise pay for the whole corpus embedding.
	a.sup.Go0("answer.warm", func(c context.Context) {
		start := time.Now()
		if err := a.engine.Warm(c); err != nil {
			if c.Err() == nil {
				a.log.Warn("answer index warm-up failed; will retry on first question", logx.Err(err))
			}
			return
		}
		a.log.Info("answer index ready", logx.Duration("took", time.Since(start)))
	})

	a.sched.Start(a.sup.Context())
	a.ops.Start(a.sup.Context())

	a.startEventLog()
	a.startConfigReload()
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("app started",
		logx.Bool("broadcast", a.rotation != nil),
		logx.Bool("audit", a.store != nil),
	)
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// never extend the caller's deadline
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			elapsed := time.Since(start)
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", elapsed),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// A tick in flight finishes its current sends before the adapter goes away.
	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("ops", 1*time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped", logx.Int("sessions", a.sessions.Len()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
