package tgui

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"привет", 3, "пр…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncRunes(tc.in, tc.n); got != tc.want {
			t.Fatalf("TruncRunes(%q,%d)=%q want %q", tc.in, tc.n, got, tc.want)
		}
	}

	long := strings.Repeat("ж", MaxMessageRunes+10)
	if got := utf8.RuneCountInString(TruncRunes(long, MaxMessageRunes)); got != MaxMessageRunes {
		t.Fatalf("clipped length=%d", got)
	}
}

func TestCallbackData(t *testing.T) {
	t.Parallel()

	d := Data("lang", "select", "ru")
	if d != "lang:select:ru" {
		t.Fatalf("Data=%q", d)
	}
	scope, action, payload, ok := ParseData(d)
	if !ok || scope != "lang" || action != "select" || payload != "ru" {
		t.Fatalf("ParseData=%q %q %q %v", scope, action, payload, ok)
	}
	if _, _, _, ok := ParseData("ru"); ok {
		t.Fatalf("single token must not parse")
	}
	if _, err := CheckedData("x", "y", strings.Repeat("z", 80)); !errors.Is(err, ErrCallbackDataTooLong) {
		t.Fatalf("expected ErrCallbackDataTooLong, got %v", err)
	}
}
