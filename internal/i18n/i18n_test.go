package i18n

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Lang
		ok   bool
	}{
		{"ru", RU, true},
		{"ru-RU", RU, true},
		{" UZ ", UZ, true},
		{"uz-Latn-UZ", UZ, true},
		{"en", "", false},
		{"", "", false},
		{"??", "", false},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			require.Equal(t, tc.want, got, tc.in)
		} else {
			require.Error(t, err, tc.in)
		}
	}
}

func TestCatalogComplete(t *testing.T) {
	t.Parallel()

	c := Default()
	ru := c.Keys(RU)
	uz := c.Keys(UZ)
	sort.Strings(ru)
	sort.Strings(uz)
	require.Equal(t, ru, uz, "locales must define the same keys")

	for _, k := range []string{KeyDisallowed, KeyGreeting, KeyWelcome, KeyHelp, KeyMismatch,
		KeyProcessing, KeyDetectError, KeyGenericError, KeyCaptionNotFound, KeyCourseMissing,
		KeyNoAnswer, KeyStatus, KeyOwnerOnly, KeyCmdStart, KeyCmdHelp, KeyCmdCourse, KeyCmdStatus} {
		require.NotEqual(t, k, c.T(RU, k), "missing ru key %s", k)
		require.NotEqual(t, k, c.T(UZ, k), "missing uz key %s", k)
	}
}

func TestCatalogFallback(t *testing.T) {
	t.Parallel()

	c := Default()
	require.Equal(t, "Текст не найден", c.T(RU, KeyCaptionNotFound))
	require.Equal(t, c.T(RU, KeyMismatch), c.T(Lang("xx"), KeyMismatch))
	require.Equal(t, "nope", c.T(UZ, "nope"))
	require.Equal(t, "Пожалуйста, задавайте вопросы на русском языке.", c.T(RU, KeyMismatch))
}
