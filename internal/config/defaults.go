package config

import "strings"

const (
	DefaultSchedule       = "20s"
	DefaultBound          = 8
	DefaultPolicy         = "stop"
	DefaultLanguage       = "ru"
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// ApplyDefaults fills zero values in place. It runs after the env overlay and
// before validation.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	b := &cfg.Broadcast
	if strings.TrimSpace(b.Schedule) == "" {
		b.Schedule = DefaultSchedule
	}
	if b.Bound == 0 {
		b.Bound = DefaultBound
	}
	if strings.TrimSpace(b.Policy) == "" {
		b.Policy = DefaultPolicy
	}
	b.Policy = strings.ToLower(strings.TrimSpace(b.Policy))
	if b.StartIndex == 0 {
		b.StartIndex = 1
	}
	if b.Concurrency == 0 {
		b.Concurrency = 4
	}
	if b.RatePerSec == 0 {
		b.RatePerSec = 20
	}

	c := &cfg.Content
	if strings.TrimSpace(c.DefaultLanguage) == "" {
		c.DefaultLanguage = DefaultLanguage
	}
	c.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.DefaultLanguage))

	if strings.TrimSpace(cfg.Access.Source) == "" {
		cfg.Access.Source = "doc"
	}
	if strings.TrimSpace(cfg.Access.SheetRange) == "" {
		cfg.Access.SheetRange = "A:A"
	}
	if strings.TrimSpace(cfg.Remote.Driver) == "" {
		cfg.Remote.Driver = "gdrive"
	}

	a := &cfg.Answer
	if strings.TrimSpace(a.Model) == "" {
		a.Model = DefaultModel
	}
	if strings.TrimSpace(a.EmbeddingModel) == "" {
		a.EmbeddingModel = DefaultEmbeddingModel
	}
	if a.TopK == 0 {
		a.TopK = 4
	}
	if a.ChunkSize == 0 {
		a.ChunkSize = 250
	}
}
