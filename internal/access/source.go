package access

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Source yields stored-format handles.
type Source interface {
	Handles(ctx context.Context) ([]string, error)
}

// DocReader exports a remote document as plain text.
type DocReader interface {
	ExportText(ctx context.Context, fileID string) (string, error)
}

// SheetReader reads a spreadsheet range.
type SheetReader interface {
	ReadRows(ctx context.Context, sheetID, rng string) ([][]string, error)
}

// DocSource reads one handle per line from a remote document.
type DocSource struct {
	Reader DocReader
	DocID  string
}

func (s DocSource) Handles(ctx context.Context) ([]string, error) {
	txt, err := s.Reader.ExportText(ctx, s.DocID)
	if err != nil {
		return nil, fmt.Errorf("allow-list doc %s: %w", s.DocID, err)
	}
	return ParseLines(txt), nil
}

// FileSource reads one handle per line from a local file.
type FileSource struct {
	Path string
}

func (s FileSource) Handles(ctx context.Context) ([]string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("allow-list file: %w", err)
	}
	return ParseLines(string(b)), nil
}

// SheetSource reads handles from the first column of a spreadsheet range.
type SheetSource struct {
	Reader    SheetReader
	SheetID   string
	Range     string
	HeaderRow bool
}

func (s SheetSource) Handles(ctx context.Context) ([]string, error) {
	rows, err := s.Reader.ReadRows(ctx, s.SheetID, s.Range)
	if err != nil {
		return nil, fmt.Errorf("allow-list sheet %s: %w", s.SheetID, err)
	}
	if s.HeaderRow && len(rows) > 0 {
		rows = rows[1:]
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		if h := cleanLine(r[0]); h != "" {
			out = append(out, h)
		}
	}
	return out, nil
}

// ParseLines splits a text export into trimmed, non-empty lines. Byte order
// marks, which document exports like to prepend, are removed.
func ParseLines(txt string) []string {
	lines := strings.Split(txt, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = cleanLine(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func cleanLine(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\ufeff", ""))
}
