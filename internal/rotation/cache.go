package rotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"neurotutor/internal/caption"
	"neurotutor/internal/remote"
)

// tickCache memoizes remote reads for the duration of one tick, so users
// sharing a language cause one fetch per document. Only successful reads are
// kept: a failed fetch is retried by the next user that needs it. The cache is
// discarded at the end of the tick; every tick reads fresh data.
type tickCache struct {
	st      Storage
	timeout time.Duration
	group   singleflight.Group

	mu        sync.Mutex
	captions  map[string]caption.Index
	listings  map[string][]remote.File
	downloads map[string][]byte
	sections  int
}

func newTickCache(st Storage, timeout time.Duration) *tickCache {
	return &tickCache{
		st:        st,
		timeout:   timeout,
		captions:  map[string]caption.Index{},
		listings:  map[string][]remote.File{},
		downloads: map[string][]byte{},
	}
}

// memo returns the cached value for key or loads it. Concurrent callers share
// one in-flight load; a caller that joined a load which failed tries once on
// its own, so one user's error never becomes another user's result.
func memo[T any](ctx context.Context, c *tickCache, m map[string]T, kind, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := cached(c, m, key); ok {
		return v, nil
	}
	ran := false
	v, err, _ := c.group.Do(kind+"\x00"+key, func() (any, error) {
		ran = true
		if v, ok := cached(c, m, key); ok {
			return v, nil
		}
		return fill(ctx, c, m, key, load)
	})
	if err != nil && !ran {
		return fill(ctx, c, m, key, load)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func cached[T any](c *tickCache, m map[string]T, key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := m[key]
	return v, ok
}

// fill runs load and stores the value on success. A panic becomes an error
// and nothing is stored.
func fill[T any](ctx context.Context, c *tickCache, m map[string]T, key string, load func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load %s: panic: %v", key, r)
		}
	}()
	cctx, cancel := c.bound(ctx)
	defer cancel()
	v, err = load(cctx)
	if err != nil {
		return v, err
	}
	c.mu.Lock()
	m[key] = v
	c.mu.Unlock()
	return v, nil
}

func (c *tickCache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *tickCache) captionIndex(ctx context.Context, docID string) (caption.Index, error) {
	return memo(ctx, c, c.captions, "caption", docID, func(ctx context.Context) (caption.Index, error) {
		raw, err := c.st.ExportText(ctx, docID)
		if err != nil {
			return nil, err
		}
		idx := caption.Extract(raw)
		c.mu.Lock()
		c.sections = max(c.sections, idx.Len())
		c.mu.Unlock()
		return idx, nil
	})
}

func (c *tickCache) list(ctx context.Context, folderID string) ([]remote.File, error) {
	return memo(ctx, c, c.listings, "list", folderID, func(ctx context.Context) ([]remote.File, error) {
		return c.st.ListFiles(ctx, folderID)
	})
}

func (c *tickCache) download(ctx context.Context, fileID string) ([]byte, error) {
	return memo(ctx, c, c.downloads, "download", fileID, func(ctx context.Context) ([]byte, error) {
		return c.st.Download(ctx, fileID)
	})
}

func (c *tickCache) maxSections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sections
}
