// Package langdetect guesses the language of free text.
package langdetect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"neurotutor/internal/i18n"
)

// ErrUndetermined is returned when the text carries no usable signal
// (empty, digits, emoji only).
var ErrUndetermined = errors.New("langdetect: language undetermined")

// Detector returns the ISO 639-1 code of text. The result may be a language
// the bot does not support.
type Detector interface {
	Detect(ctx context.Context, text string) (i18n.Lang, error)
}

// Whatlang detects with trigram statistics, optionally restricted to a
// candidate set. whatlanggo only models Latin-script Uzbek, so Uzbek written
// in Cyrillic comes back as ru.
type Whatlang struct {
	opts whatlanggo.Options
}

// New builds a detector. candidates are ISO 639-1 codes; empty means all
// languages known to whatlanggo.
func New(candidates []string) (*Whatlang, error) {
	d := &Whatlang{}
	if len(candidates) == 0 {
		return d, nil
	}
	d.opts.Whitelist = make(map[whatlanggo.Lang]bool, len(candidates))
	for _, c := range candidates {
		base, err := language.ParseBase(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("detector candidate %q: %w", c, err)
		}
		l := whatlanggo.CodeToLang(base.ISO3())
		if l.Iso6391() == "" {
			return nil, fmt.Errorf("detector candidate %q: not supported", c)
		}
		d.opts.Whitelist[l] = true
	}
	return d, nil
}

func (d *Whatlang) Detect(ctx context.Context, text string) (i18n.Lang, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrUndetermined
	}
	info := whatlanggo.DetectWithOptions(text, d.opts)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", ErrUndetermined
	}
	return i18n.Lang(code), nil
}
