package router

import (
	"sort"
	"strings"
	"unicode"

	kit "neurotutor/internal/transport"
)

// sanitizeTelegramCommand converts a name into Telegram's [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || r == '/' || unicode.IsSpace(r):
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = strings.TrimRight(("cmd_" + out)[:min(len(out)+4, 32)], "_")
	}
	return out
}

// BuildMenu lists visible commands for the platform menu, public ones first.
func BuildMenu(cmds []Command) []kit.BotCommand {
	type entry struct {
		kit.BotCommand
		owner bool
	}
	seen := map[string]bool{}
	entries := make([]entry, 0, len(cmds))
	for _, c := range cmds {
		if c.Hidden || c.Handle == nil {
			continue
		}
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		if c.Access == AccessOwnerOnly {
			desc = "🔒 " + desc
		}
		entries = append(entries, entry{kit.BotCommand{Command: name, Description: desc}, c.Access == AccessOwnerOnly})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return !entries[i].owner && entries[j].owner
	})
	out := make([]kit.BotCommand, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.BotCommand)
	}
	return out
}
