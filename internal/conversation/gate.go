// Package conversation admits free-text questions and runs the answer flow.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"neurotutor/internal/i18n"
	"neurotutor/internal/langdetect"
)

// ErrDetection wraps failures of the language detector.
var ErrDetection = errors.New("conversation: language detection failed")

type Kind int

const (
	Reject Kind = iota + 1
	DetectMismatch
	Admit
)

func (k Kind) String() string {
	switch k {
	case Reject:
		return "reject"
	case DetectMismatch:
		return "mismatch"
	case Admit:
		return "admit"
	default:
		return "unknown"
	}
}

// Decision is the verdict for one message. Expected is the session
// language; Detected is set for mismatches and admits.
type Decision struct {
	Kind     Kind
	Reason   string
	Expected i18n.Lang
	Detected i18n.Lang
}

type Authorizer interface {
	IsAuthorized(handle string) bool
}

type Languages interface {
	Language(userID int64, def i18n.Lang) i18n.Lang
}

type Gate struct {
	Access          Authorizer
	Sessions        Languages
	Detector        langdetect.Detector
	DefaultLanguage i18n.Lang
}

// Admit checks authorization and then that text is written in the user's
// session language. It never calls the answer engine.
func (g *Gate) Admit(ctx context.Context, userID int64, handle, text string) (Decision, error) {
	if !g.Access.IsAuthorized(handle) {
		reason := "not on allow-list"
		if handle == "" {
			reason = "no username"
		}
		return Decision{Kind: Reject, Reason: reason}, nil
	}
	expected := g.Sessions.Language(userID, g.DefaultLanguage)
	detected, err := g.Detector.Detect(ctx, text)
	if err != nil {
		return Decision{Expected: expected}, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	if detected != expected {
		return Decision{Kind: DetectMismatch, Reason: "language mismatch", Expected: expected, Detected: detected}, nil
	}
	return Decision{Kind: Admit, Expected: expected, Detected: detected}, nil
}
