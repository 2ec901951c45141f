package app

import (
	"context"
	"strings"

	"neurotutor/internal/config"
	"neurotutor/internal/rotation"
	"neurotutor/internal/task/scheduler"
	logx "neurotutor/pkg/logx"
)

// validateReload rejects a reloaded file that could not be started from, even
// when the changed section only applies after a restart.
func validateReload(_ context.Context, cfg *config.Config) error {
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := rotationOptions(cfg); err != nil {
		return err
	}
	if _, err := scheduler.ParseSchedule(cfg.Broadcast.Schedule); err != nil {
		return err
	}
	_, err := rotation.ParsePolicy(cfg.Broadcast.Policy)
	return err
}

// startConfigReload applies logging and ops changes live; every other
// section is reported as needing a restart.
func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, old, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(old, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	// Target first, so Apply does not warn when Telegram logging is enabled.
	a.logs.SetTelegramTarget(groupLogTarget(cfg), cfg.Logging.Telegram.ThreadID)
	a.logs.Apply(mapLogConfig(cfg))
	a.ops.Reconfigure(ctx, mapOpsConfig(cfg))

	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config sections changed; restart required for changes to take effect",
			logx.Strings("sections", pending))
	}
	a.log.Info("config reloaded", fields...)
}
