// Package i18n holds the bot languages and the localized message catalog.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Lang is an ISO 639-1 code of a supported bot language.
type Lang string

const (
	RU Lang = "ru"
	UZ Lang = "uz"
)

// Supported lists the languages a user can pick, in menu order.
var Supported = []Lang{RU, UZ}

// Parse accepts any BCP 47 tag or ISO 639 code ("ru", "ru-RU", "uzb") and
// reduces it to a supported base language.
func Parse(s string) (Lang, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty language")
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse language %q: %w", s, err)
	}
	base, _ := tag.Base()
	l := Lang(base.String())
	if !l.Valid() {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return l, nil
}

// MustParse is Parse for compile-time constants and tests.
func MustParse(s string) Lang {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Lang) Valid() bool {
	for _, s := range Supported {
		if l == s {
			return true
		}
	}
	return false
}

func (l Lang) String() string { return string(l) }
