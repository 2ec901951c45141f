package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	kit "neurotutor/internal/transport"
	logx "neurotutor/pkg/logx"
)

func TestSplitTextShort(t *testing.T) {
	t.Parallel()

	got := splitText("привет", 10, "")
	if len(got) != 1 || got[0] != "привет" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewline(t *testing.T) {
	t.Parallel()

	s := strings.Repeat("а", 8) + "\n" + strings.Repeat("б", 8)
	got := splitText(s, 10, "")
	if len(got) != 2 || got[0] != strings.Repeat("а", 8) || got[1] != strings.Repeat("б", 8) {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	t.Parallel()

	s := strings.Repeat("x", 25)
	for _, c := range splitText(s, 10, "") {
		if n := utf8.RuneCountInString(c); n > 10 {
			t.Fatalf("chunk too long: %d", n)
		}
	}
	if got := strings.Join(splitText(s, 10, ""), ""); got != s {
		t.Fatalf("content lost: %q", got)
	}
}

func TestSplitTextAvoidsOpenTag(t *testing.T) {
	t.Parallel()

	got := splitText("abcdefg<b>hi</b>", 9, "HTML")
	if got[0] != "abcdefg" {
		t.Fatalf("first chunk %q", got[0])
	}
}

func TestMenuCommands(t *testing.T) {
	t.Parallel()

	list := menuCommands([]kit.BotCommand{
		{Command: "start", Description: "Начать"},
		{Command: ""},
		{Command: "help"},
	})
	if len(list) != 2 || list[1].Description != "help" {
		t.Fatalf("list=%+v", list)
	}
	if menuHash(list) == menuHash(list[:1]) {
		t.Fatalf("hash should change with the list")
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatalf("expected token error")
	}
}
