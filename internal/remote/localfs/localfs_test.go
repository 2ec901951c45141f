package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"neurotutor/internal/remote"
)

func newStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ru", "img"), 0o755))
	for name, body := range map[string]string{
		"ru/img/1_intro.jpg": "jpg-1",
		"ru/img/2_next.jpg":  "jpg-2",
		"ru/img/.hidden":     "x",
		"captions.txt":       "1) one 2) two",
		"users.csv":          "handle,chat\n@alice,\n@bob,\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(name)), []byte(body), 0o644))
	}
	s, err := New(root)
	require.NoError(t, err)
	return s, root
}

func TestListAndDownload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStorage(t)

	files, err := s.ListFiles(ctx, "ru/img")
	require.NoError(t, err)
	require.Equal(t, []remote.File{
		{ID: "ru/img/1_intro.jpg", Name: "1_intro.jpg"},
		{ID: "ru/img/2_next.jpg", Name: "2_next.jpg"},
	}, files)

	b, err := s.Download(ctx, files[1].ID)
	require.NoError(t, err)
	require.Equal(t, "jpg-2", string(b))

	txt, err := s.ExportText(ctx, "captions.txt")
	require.NoError(t, err)
	require.Equal(t, "1) one 2) two", txt)

	_, err = s.Download(ctx, "missing.pdf")
	require.True(t, errors.Is(err, remote.ErrNotFound), "got %v", err)

	_, err = s.Download(ctx, "../etc/passwd")
	require.Error(t, err)
}

func TestRowsAndCells(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStorage(t)

	rows, err := s.ReadRows(ctx, "users.csv", "A:A")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"handle"}, {"@alice"}, {"@bob"}}, rows)

	require.NoError(t, s.WriteCell(ctx, "users.csv", "B3", "42"))
	rows, err = s.ReadRows(ctx, "users.csv", "Sheet1!A:B")
	require.NoError(t, err)
	require.Equal(t, []string{"@bob", "42"}, rows[2])

	require.NoError(t, s.WriteCell(ctx, "new.csv", "C2", "x"))
	rows, err = s.ReadRows(ctx, "new.csv", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"", "", "x"}, rows[1])
}

func TestParseCell(t *testing.T) {
	t.Parallel()

	col, row, err := parseCell("AB12")
	require.NoError(t, err)
	require.Equal(t, 27, col)
	require.Equal(t, 11, row)

	_, _, err = parseCell("B")
	require.Error(t, err)
	_, _, err = parseCell("7")
	require.Error(t, err)
}
