package rotation

import (
	"context"
	"fmt"

	"neurotutor/internal/content"
	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	"neurotutor/internal/remote"
	"neurotutor/internal/session"
	"neurotutor/internal/storage"
	kit "neurotutor/internal/transport"
	logx "neurotutor/pkg/logx"
)

// serve delivers the batch for index to one user. It never panics the tick:
// errors end up in the returned Outcome.
func (s *Scheduler) serve(ctx context.Context, log logx.Logger, tickID string, index int, u session.UserSession, cache *tickCache) (out Outcome) {
	out.UserID = u.UserID
	log = log.With(logx.Int64("user_id", u.UserID))
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
			log.Error("user delivery panicked", logx.Any("panic", r))
		}
	}()

	// Authorization is re-checked on every tick.
	if !s.opts.Gate.IsAuthorized(u.Handle) {
		out.Skipped = true
		log.Debug("user not authorized; skipped")
		return out
	}

	lang := u.Language
	if lang == "" {
		lang = s.opts.DefaultLanguage
	}
	batch, text, err := s.prepare(ctx, cache, lang, index)
	if err != nil {
		out.Err = err
		log.Warn("content resolution failed; user skipped this tick", logx.String("lang", lang.String()), logx.Err(err))
		return out
	}

	to := kit.UserTarget(u.UserID)
	for _, f := range batch.Files {
		if err := s.deliverFile(ctx, cache, to, f, text); err != nil {
			out.Failed++
			log.Warn("file delivery failed", logx.String("file", f.Name), logx.Err(err))
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryFail, Time: s.now(), Data: DeliveryFailure{TickID: tickID, UserID: u.UserID, File: f.Name, Err: err}})
			s.recordDelivery(ctx, tickID, index, u.UserID, lang, f, err)
			continue
		}
		out.Delivered++
		s.recordDelivery(ctx, tickID, index, u.UserID, lang, f, nil)
	}

	fields := []logx.Field{logx.Int("delivered", out.Delivered), logx.Int("failed", out.Failed), logx.Int("files", len(batch.Files))}
	if out.Fully() {
		log.Debug("user fully delivered", fields...)
	} else {
		log.Info("user partially delivered", fields...)
	}
	return out
}

// prepare resolves the batch and caption text that lang should receive.
func (s *Scheduler) prepare(ctx context.Context, cache *tickCache, lang i18n.Lang, index int) (content.Batch, string, error) {
	loc, err := s.opts.Resolver.Resolve(lang, index)
	if err != nil {
		return content.Batch{}, "", err
	}
	captions, err := cache.captionIndex(ctx, loc.CaptionDoc)
	if err != nil {
		return content.Batch{}, "", fmt.Errorf("caption doc: %w", err)
	}
	text, ok := captions.Lookup(index)
	if !ok {
		text = s.catalog.T(lang, i18n.KeyCaptionNotFound)
	}

	images, err := cache.list(ctx, loc.ImageFolder)
	if err != nil {
		return content.Batch{}, "", fmt.Errorf("list images: %w", err)
	}
	docs, err := cache.list(ctx, loc.DocumentFolder)
	if err != nil {
		return content.Batch{}, "", fmt.Errorf("list documents: %w", err)
	}
	files := make([]remote.File, 0, len(images)+len(docs))
	files = append(append(files, images...), docs...)
	return content.Select(files, index), text, nil
}

func (s *Scheduler) deliverFile(ctx context.Context, cache *tickCache, to kit.ChatTarget, f content.File, text string) error {
	data, err := cache.download(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	sctx := ctx
	if s.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, s.opts.SendTimeout)
		defer cancel()
	}

	m := kit.Media{Name: f.Name, Bytes: data}
	if f.Kind == content.KindImage {
		_, err = s.opts.Sender.SendPhoto(sctx, to, m, text)
	} else {
		_, err = s.opts.Sender.SendDocument(sctx, to, m)
	}
	return err
}

func (s *Scheduler) recordDelivery(ctx context.Context, tickID string, index int, userID int64, lang i18n.Lang, f content.File, err error) {
	if s.opts.Audit == nil {
		return
	}
	r := storage.DeliveryRecord{
		At: s.now(), TickID: tickID, Index: index, UserID: userID, Language: lang.String(),
		FileID: f.ID, FileName: f.Name, Kind: f.Kind.String(), OK: err == nil,
	}
	if err != nil {
		r.Error = err.Error()
	}
	if aerr := s.opts.Audit.AppendDelivery(ctx, r); aerr != nil {
		s.log.Debug("audit append failed", logx.Err(aerr))
	}
}

func (s *Scheduler) recordTick(ctx context.Context, sum TickSummary) {
	if s.opts.Audit == nil {
		return
	}
	r := storage.TickRecord{
		At: sum.At, TickID: sum.TickID, Index: sum.Index, NextIndex: sum.Next.Index,
		Users: sum.Users, Skipped: sum.Skipped, Delivered: sum.Delivered, Failed: sum.Failed,
		Exhausted: sum.Next.Exhausted, TookMS: sum.Duration.Milliseconds(),
	}
	if err := s.opts.Audit.AppendTick(ctx, r); err != nil {
		s.log.Debug("audit append failed", logx.Err(err))
	}
}
