package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"neurotutor/internal/access"
	"neurotutor/internal/answer"
	"neurotutor/internal/config"
	"neurotutor/internal/content"
	"neurotutor/internal/i18n"
	"neurotutor/internal/remote"
	"neurotutor/internal/remote/gdrive"
	"neurotutor/internal/remote/localfs"
	"neurotutor/internal/rotation"
	logx "neurotutor/pkg/logx"
)

func openRemote(ctx context.Context, cfg config.RemoteConfig) (remote.Storage, error) {
	switch cfg.Driver {
	case "localfs":
		st, err := localfs.New(cfg.Root)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "gdrive", "":
		c, err := gdrive.New(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown remote.driver: %s", cfg.Driver)
	}
}

func accessSource(cfg config.AccessConfig, rs remote.Storage) (access.Source, error) {
	switch cfg.Source {
	case "doc":
		return access.DocSource{Reader: rs, DocID: cfg.DocID}, nil
	case "file":
		return access.FileSource{Path: cfg.File}, nil
	case "sheet":
		return access.SheetSource{Reader: rs, SheetID: cfg.SheetID, Range: sheetRange(cfg), HeaderRow: cfg.HeaderRow}, nil
	default:
		return nil, fmt.Errorf("unknown access.source: %s", cfg.Source)
	}
}

func sheetRange(cfg config.AccessConfig) string {
	if r := strings.TrimSpace(cfg.SheetRange); r != "" {
		return r
	}
	return "A:A"
}

// loadGate never fails: an unreadable allow-list yields a gate that refuses
// everyone until the next restart.
func loadGate(ctx context.Context, cfg config.AccessConfig, rs remote.Storage, log logx.Logger) *access.Gate {
	src, err := accessSource(cfg, rs)
	if err != nil {
		log.Error("allow-list source invalid; refusing everyone", logx.Err(err))
		return access.Closed(err)
	}
	lctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	gate, err := access.Load(lctx, src)
	if err != nil {
		log.Error("allow-list load failed; refusing everyone", logx.String("source", cfg.Source), logx.Err(err))
		return gate
	}
	log.Info("allow-list loaded", logx.String("source", cfg.Source), logx.Int("handles", gate.Len()))
	return gate
}

func contentLocations(cfg config.ContentConfig) map[i18n.Lang]content.Location {
	loc := func(c config.LanguageContent) content.Location {
		return content.Location{ImageFolder: c.ImageFolder, DocumentFolder: c.DocumentFolder, CaptionDoc: c.CaptionDoc}
	}
	return map[i18n.Lang]content.Location{
		i18n.RU: loc(cfg.RU),
		i18n.UZ: loc(cfg.UZ),
	}
}

func courseDocs(cfg config.ContentConfig) map[i18n.Lang]string {
	out := map[i18n.Lang]string{}
	if cfg.RU.CourseDoc != "" {
		out[i18n.RU] = cfg.RU.CourseDoc
	}
	if cfg.UZ.CourseDoc != "" {
		out[i18n.UZ] = cfg.UZ.CourseDoc
	}
	return out
}

func newAnswerEngine(cfg config.AnswerConfig, rs remote.Storage, fallback string, log logx.Logger) (*answer.Service, error) {
	timeout, err := config.ParseDurationOrDefault("answer.timeout", cfg.Timeout, 60*time.Second)
	if err != nil {
		return nil, err
	}
	refresh, err := config.ParseDurationOrDefault("answer.refresh", cfg.Refresh, 0)
	if err != nil {
		return nil, err
	}
	oa := answer.NewOpenAI(answer.OpenAIConfig{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		Temperature:    cfg.Temperature,
		Timeout:        timeout,
	})
	return answer.New(answer.Options{
		Corpus:    rs,
		Folder:    cfg.CorpusFolder,
		Embedder:  oa,
		Completer: oa,
		TopK:      cfg.TopK,
		ChunkSize: cfg.ChunkSize,
		Refresh:   refresh,
		Fallback:  fallback,
		Log:       log,
	})
}

// rotationOptions maps broadcast settings; the caller fills in the
// collaborators.
func rotationOptions(cfg *config.Config) (rotation.Options, error) {
	policy, err := rotation.ParsePolicy(cfg.Broadcast.Policy)
	if err != nil {
		return rotation.Options{}, err
	}
	fetch, err := config.ParseDurationOrDefault("broadcast.fetch_timeout", cfg.Broadcast.FetchTimeout, 30*time.Second)
	if err != nil {
		return rotation.Options{}, err
	}
	send, err := config.ParseDurationOrDefault("broadcast.send_timeout", cfg.Broadcast.SendTimeout, 30*time.Second)
	if err != nil {
		return rotation.Options{}, err
	}
	return rotation.Options{
		DefaultLanguage: i18n.Lang(cfg.Content.DefaultLanguage),
		Bound:           cfg.Broadcast.Bound,
		StartIndex:      cfg.Broadcast.StartIndex,
		Policy:          policy,
		Concurrency:     cfg.Broadcast.Concurrency,
		RatePerSec:      cfg.Broadcast.RatePerSec,
		FetchTimeout:    fetch,
		SendTimeout:     send,
	}, nil
}
