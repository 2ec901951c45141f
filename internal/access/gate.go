// Package access decides who may use the bot.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by Gate.Err when the allow-list could not be loaded.
var ErrClosed = errors.New("access: allow-list unavailable")

// HandlePrefix is prepended to raw usernames in the stored format.
const HandlePrefix = "@"

// Gate answers authorization checks against an immutable allow-list.
// A closed gate rejects everyone.
type Gate struct {
	allowed map[string]struct{}
	err     error
}

// NewGate builds a gate from stored-format handles ("@name"). Entries are
// kept as given apart from surrounding whitespace.
func NewGate(handles []string) *Gate {
	g := &Gate{allowed: make(map[string]struct{}, len(handles))}
	for _, h := range handles {
		if h = strings.TrimSpace(h); h != "" {
			g.allowed[h] = struct{}{}
		}
	}
	return g
}

// Closed returns a gate that rejects every user. cause is reported by Err.
func Closed(cause error) *Gate {
	if cause == nil {
		cause = ErrClosed
	} else {
		cause = fmt.Errorf("%w: %w", ErrClosed, cause)
	}
	return &Gate{err: cause}
}

// Load reads the allow-list from src. On failure it returns a closed gate
// together with the error, so callers can keep running fail-closed.
func Load(ctx context.Context, src Source) (*Gate, error) {
	handles, err := src.Handles(ctx)
	if err != nil {
		g := Closed(err)
		return g, g.err
	}
	return NewGate(handles), nil
}

// IsAuthorized reports whether the raw username (without "@") is listed.
// Matching is exact and case-sensitive. An empty handle is never authorized.
func (g *Gate) IsAuthorized(handle string) bool {
	if g == nil || g.err != nil || handle == "" {
		return false
	}
	_, ok := g.allowed[HandlePrefix+handle]
	return ok
}

// Err is non-nil for a closed gate.
func (g *Gate) Err() error {
	if g == nil {
		return ErrClosed
	}
	return g.err
}

func (g *Gate) Len() int {
	if g == nil {
		return 0
	}
	return len(g.allowed)
}
