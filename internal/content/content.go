// Package content maps a language and rotation index to the remote folders
// and files that make up a broadcast batch.
package content

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"neurotutor/internal/i18n"
	"neurotutor/internal/remote"
)

var (
	ErrUnknownLanguage = errors.New("content: unknown language")
	ErrBadIndex        = errors.New("content: index must be >= 1")
)

// Location holds the remote ids for one language.
type Location struct {
	ImageFolder    string
	DocumentFolder string
	CaptionDoc     string
}

// Resolver is a static table of per-language locations.
type Resolver struct {
	locs map[i18n.Lang]Location
}

func NewResolver(locs map[i18n.Lang]Location) *Resolver {
	m := make(map[i18n.Lang]Location, len(locs))
	for k, v := range locs {
		m[k] = v
	}
	return &Resolver{locs: m}
}

// Resolve returns the location serving batch index in lang. It does no I/O.
func (r *Resolver) Resolve(lang i18n.Lang, index int) (Location, error) {
	if index < 1 {
		return Location{}, fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	loc, ok := r.locs[lang]
	if !ok {
		return Location{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	return loc, nil
}

type Kind int

const (
	KindDocument Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "document"
}

type File struct {
	ID   string
	Name string
	Kind Kind
}

// Batch is the ordered set of files due for one index.
type Batch struct {
	Index int
	Files []File
}

func (b Batch) Empty() bool { return len(b.Files) == 0 }

// Select keeps the files whose name starts with the decimal index, in the
// order given. Callers pass the image listing before the document listing.
// The match is a plain prefix: index 1 also matches "10_x.pdf".
func Select(files []remote.File, index int) Batch {
	prefix := strconv.Itoa(index)
	b := Batch{Index: index}
	for _, f := range files {
		if strings.HasPrefix(f.Name, prefix) {
			b.Files = append(b.Files, File{ID: f.ID, Name: f.Name, Kind: Classify(f.Name)})
		}
	}
	return b
}

var imageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// Classify picks the delivery kind from the file extension.
func Classify(name string) Kind {
	if imageExt[strings.ToLower(path.Ext(name))] {
		return KindImage
	}
	return KindDocument
}
