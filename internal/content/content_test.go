package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"neurotutor/internal/i18n"
	"neurotutor/internal/remote"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	r := NewResolver(map[i18n.Lang]Location{
		i18n.RU: {ImageFolder: "ri", DocumentFolder: "rd", CaptionDoc: "rc"},
		i18n.UZ: {ImageFolder: "ui", DocumentFolder: "ud", CaptionDoc: "uc"},
	})

	loc, err := r.Resolve(i18n.UZ, 3)
	require.NoError(t, err)
	require.Equal(t, Location{ImageFolder: "ui", DocumentFolder: "ud", CaptionDoc: "uc"}, loc)

	_, err = r.Resolve(i18n.Lang("en"), 1)
	require.True(t, errors.Is(err, ErrUnknownLanguage))

	_, err = r.Resolve(i18n.RU, 0)
	require.True(t, errors.Is(err, ErrBadIndex))
}

func TestSelect(t *testing.T) {
	t.Parallel()

	files := []remote.File{
		{ID: "a", Name: "2_cover.jpg"},
		{ID: "b", Name: "1_cover.JPG"},
		{ID: "c", Name: "3.png"},
		{ID: "d", Name: "1_guide.pdf"},
		{ID: "e", Name: "x1.pdf"},
		{ID: "f", Name: "12_extra.pdf"},
	}
	b := Select(files, 1)
	require.Equal(t, 1, b.Index)
	require.Equal(t, []File{
		{ID: "b", Name: "1_cover.JPG", Kind: KindImage},
		{ID: "d", Name: "1_guide.pdf", Kind: KindDocument},
		{ID: "f", Name: "12_extra.pdf", Kind: KindDocument},
	}, b.Files)

	require.True(t, Select(files, 9).Empty())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Kind{
		"a.jpg": KindImage, "a.jpeg": KindImage, "a.PNG": KindImage, "a.webp": KindImage,
		"a.pdf": KindDocument, "a.docx": KindDocument, "noext": KindDocument,
	} {
		require.Equal(t, want, Classify(name), name)
	}
}
