package config

import (
	"reflect"
	"strings"

	logx "neurotutor/pkg/logx"
)

// LiveSections lists the sections applied without a restart.
var LiveSections = map[string]bool{"logging": true, "ops": true}

// SummarizeConfigChange returns the changed top-level sections and safe log
// fields describing them. Secrets (tokens, api keys) are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	var attrs []logx.Field
	mark := func(section string, differs bool, fields ...logx.Field) {
		if !differs {
			return
		}
		changed = append(changed, section)
		attrs = append(attrs, fields...)
	}

	mark("telegram", oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) ||
		oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout ||
		oldCfg.Telegram.Workers != newCfg.Telegram.Workers ||
		oldCfg.Telegram.HandlerTimeout != newCfg.Telegram.HandlerTimeout,
		logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
		logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
	)
	mark("logging", !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging),
		logx.String("logging.level", newCfg.Logging.Level),
		logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
	)
	mark("scheduler", oldCfg.Scheduler != newCfg.Scheduler,
		logx.String("scheduler.timezone", newCfg.Scheduler.Timezone))
	mark("broadcast", oldCfg.Broadcast != newCfg.Broadcast,
		logx.String("broadcast.schedule", newCfg.Broadcast.Schedule),
		logx.String("broadcast.policy", newCfg.Broadcast.Policy),
		logx.Int("broadcast.bound", newCfg.Broadcast.Bound),
	)
	mark("content", oldCfg.Content != newCfg.Content,
		logx.String("content.default_language", newCfg.Content.DefaultLanguage))
	mark("access", oldCfg.Access != newCfg.Access,
		logx.String("access.source", newCfg.Access.Source))
	mark("remote", oldCfg.Remote != newCfg.Remote,
		logx.String("remote.driver", newCfg.Remote.Driver))
	mark("answer", !reflect.DeepEqual(oldCfg.Answer, newCfg.Answer),
		logx.String("answer.model", newCfg.Answer.Model))
	mark("detector", !reflect.DeepEqual(oldCfg.Detector, newCfg.Detector))
	mark("chat", oldCfg.Chat != newCfg.Chat)
	mark("ops", oldCfg.Ops != newCfg.Ops,
		logx.Bool("ops.enabled", newCfg.Ops.Enabled),
		logx.String("ops.addr", newCfg.Ops.Addr),
	)
	mark("storage", !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage))

	return changed, attrs
}

// RestartRequired filters sections that only take effect after a restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if !LiveSections[s] {
			out = append(out, s)
		}
	}
	return out
}
