package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "neurotutor/pkg/logx"
)

// fileStore writes JSON Lines.
//
// Files:
//   - <prefix>.deliveries.jsonl
//   - <prefix>.ticks.jsonl
type fileStore struct {
	log logx.Logger

	mu         sync.Mutex
	deliveries *os.File
	ticks      *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	df, err := openAppend(prefix + ".deliveries.jsonl")
	if err != nil {
		return nil, err
	}
	tf, err := openAppend(prefix + ".ticks.jsonl")
	if err != nil {
		_ = df.Close()
		return nil, err
	}
	log.Debug("file audit store opened", logx.String("prefix", prefix))
	return &fileStore{log: log, deliveries: df, ticks: tf}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, f := range []**os.File{&s.deliveries, &s.ticks} {
		if *f != nil {
			errs = append(errs, (*f).Close())
			*f = nil
		}
	}
	return errors.Join(errs...)
}

func (s *fileStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	return s.append(ctx, &s.deliveries, r)
}

func (s *fileStore) AppendTick(ctx context.Context, r TickRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	return s.append(ctx, &s.ticks, r)
}

func (s *fileStore) append(ctx context.Context, f **os.File, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if *f == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(*f).Encode(v)
}
