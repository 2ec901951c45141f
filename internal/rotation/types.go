// Package rotation runs the timer-driven broadcast: every tick it delivers
// batch N to each active, authorized user and then advances N once.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"neurotutor/internal/content"
	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	"neurotutor/internal/remote"
	"neurotutor/internal/session"
	"neurotutor/internal/storage"
	kit "neurotutor/internal/transport"
	logx "neurotutor/pkg/logx"
)

var (
	ErrNoStorage = errors.New("rotation: remote storage is required")
	ErrNoSender  = errors.New("rotation: media sender is required")
)

// Policy decides what happens after the last batch.
type Policy string

const (
	// PolicyStop delivers batches 1..Bound once and then goes inert.
	PolicyStop Policy = "stop"
	// PolicyWrap restarts at 1 after the last caption section.
	PolicyWrap Policy = "wrap"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyStop, PolicyWrap:
		return p, nil
	case "":
		return PolicyStop, nil
	default:
		return "", fmt.Errorf("unknown rotation policy %q", s)
	}
}

// State is the shared rotation counter.
type State struct {
	Index     int  `json:"index"`
	Bound     int  `json:"bound"`
	Exhausted bool `json:"exhausted"`
}

// Authorizer is the allow-list check. Handles are raw usernames.
type Authorizer interface {
	IsAuthorized(handle string) bool
}

type Sessions interface {
	ActiveUsers() []session.UserSession
}

type Resolver interface {
	Resolve(lang i18n.Lang, index int) (content.Location, error)
}

// Storage is the remote access a tick needs.
type Storage interface {
	ListFiles(ctx context.Context, folderID string) ([]remote.File, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	ExportText(ctx context.Context, fileID string) (string, error)
}

// Audit receives per-file and per-tick records. storage.Store satisfies it.
type Audit interface {
	AppendDelivery(ctx context.Context, r storage.DeliveryRecord) error
	AppendTick(ctx context.Context, r storage.TickRecord) error
}

type Options struct {
	Sessions Sessions
	Gate     Authorizer
	Resolver Resolver
	Storage  Storage
	Sender   kit.MediaSender

	// Catalog supplies the "caption not found" text. Defaults to i18n.Default().
	Catalog         *i18n.Catalog
	DefaultLanguage i18n.Lang

	Bound      int
	StartIndex int
	Policy     Policy

	// Concurrency is the number of users served in parallel. Files of one
	// user are always sent in order.
	Concurrency int
	// RatePerSec caps sends across all users. 0 disables the limiter.
	RatePerSec   int
	FetchTimeout time.Duration
	SendTimeout  time.Duration

	Audit Audit
	Bus   eventbus.Bus
	Log   logx.Logger
}

// TickSummary describes one pass. Skipped counts active users that failed
// the authorization re-check; Errored counts users whose content could not be
// resolved or fetched. Advanced is false only for a no-op tick on an
// exhausted rotation.
type TickSummary struct {
	TickID    string        `json:"tick_id"`
	At        time.Time     `json:"at"`
	Index     int           `json:"index"`
	Next      State         `json:"next"`
	Users     int           `json:"users"`
	Skipped   int           `json:"skipped"`
	Errored   int           `json:"errored"`
	Full      int           `json:"full"`
	Partial   int           `json:"partial"`
	Delivered int           `json:"delivered"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Advanced  bool          `json:"advanced"`
}

// Outcome is the per-user result of a tick. It is logged, never acted on.
type Outcome struct {
	UserID    int64
	Skipped   bool
	Delivered int
	Failed    int
	Err       error
}

// Fully reports whether every selected file reached the user.
func (o Outcome) Fully() bool { return o.Err == nil && !o.Skipped && o.Failed == 0 }

// DeliveryFailure is published on the bus for each failed file.
type DeliveryFailure struct {
	TickID string
	UserID int64
	File   string
	Err    error
}
