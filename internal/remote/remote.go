// Package remote defines the storage capability the bot reads course
// material, captions and allow-lists from.
package remote

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("remote: not found")

// File is a listing entry.
type File struct {
	ID       string
	Name     string
	MimeType string
}

// Storage is the full method set of a backend. Consumers declare the subset
// they need.
type Storage interface {
	// ListFiles returns the non-trashed files of a folder in listing order.
	ListFiles(ctx context.Context, folderID string) ([]File, error)
	// Download returns the raw bytes of a binary file.
	Download(ctx context.Context, fileID string) ([]byte, error)
	// ExportText returns a document as plain text.
	ExportText(ctx context.Context, fileID string) (string, error)
	// ReadRows returns a spreadsheet range in sheet order. Short rows are not padded.
	ReadRows(ctx context.Context, sheetID, rng string) ([][]string, error)
	// WriteCell overwrites a single cell, e.g. "B7".
	WriteCell(ctx context.Context, sheetID, cell, value string) error
}
