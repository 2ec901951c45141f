// Package localfs implements remote.Storage over a local directory tree.
//
// Folder and file ids are slash separated paths relative to the root.
// Spreadsheets are CSV files; ranges select columns ("A:A", "A:C").
package localfs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"neurotutor/internal/remote"
)

type Storage struct {
	root string
	mu   sync.Mutex // serializes WriteCell read-modify-write
}

func New(root string) (*Storage, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("localfs root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("localfs root %s: not a directory", root)
	}
	return &Storage{root: root}, nil
}

var _ remote.Storage = (*Storage)(nil)

func (s *Storage) resolve(id string) (string, error) {
	id = strings.Trim(strings.TrimSpace(id), "/")
	if id == "" {
		id = "."
	}
	if !filepath.IsLocal(filepath.FromSlash(id)) && id != "." {
		return "", fmt.Errorf("localfs: id %q escapes root", id)
	}
	return filepath.Join(s.root, filepath.FromSlash(id)), nil
}

func (s *Storage) ListFiles(ctx context.Context, folderID string) ([]remote.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.resolve(folderID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mapErr("list "+folderID, err)
	}
	out := make([]remote.File, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, remote.File{
			ID:   path.Join(strings.Trim(folderID, "/"), e.Name()),
			Name: e.Name(),
		})
	}
	return out, nil
}

func (s *Storage) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.resolve(fileID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, mapErr("download "+fileID, err)
	}
	return b, nil
}

func (s *Storage) ExportText(ctx context.Context, fileID string) (string, error) {
	b, err := s.Download(ctx, fileID)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Storage) ReadRows(ctx context.Context, sheetID, rng string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.readCSV(sheetID)
	if err != nil {
		return nil, err
	}
	from, to, err := columnSpan(rng)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		var cut []string
		if from < len(r) {
			cut = r[from:min(to+1, len(r))]
		}
		out = append(out, cut)
	}
	return out, nil
}

func (s *Storage) WriteCell(ctx context.Context, sheetID, cell, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	col, row, err := parseCell(cell)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readCSV(sheetID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		return err
	}
	// Padding rows are never empty lines; csv.Reader would drop them.
	for len(rows) <= row {
		rows = append(rows, make([]string, max(col+1, 2)))
	}
	for len(rows[row]) <= col {
		rows[row] = append(rows[row], "")
	}
	rows[row][col] = value

	p, err := s.resolve(sheetID)
	if err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("write %s: %w", sheetID, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", sheetID, err)
	}
	return f.Close()
}

func (s *Storage) readCSV(sheetID string) ([][]string, error) {
	p, err := s.resolve(sheetID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapErr("read "+sheetID, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheetID, err)
	}
	return rows, nil
}

func mapErr(op string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, remote.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// columnSpan parses "A:C" (or "A", or "Sheet1!A:C") into zero based columns.
func columnSpan(rng string) (int, int, error) {
	if i := strings.LastIndexByte(rng, '!'); i >= 0 {
		rng = rng[i+1:]
	}
	if strings.TrimSpace(rng) == "" {
		return 0, 1<<31 - 1, nil
	}
	a, b, ok := strings.Cut(rng, ":")
	if !ok {
		b = a
	}
	from, _, err := splitCell(a)
	if err != nil {
		return 0, 0, err
	}
	to, _, err := splitCell(b)
	if err != nil {
		return 0, 0, err
	}
	if to < from {
		from, to = to, from
	}
	return from, to, nil
}

// parseCell parses "B7" into column 1, row 6.
func parseCell(cell string) (col, row int, err error) {
	col, row, err = splitCell(cell)
	if err != nil {
		return 0, 0, err
	}
	if row < 0 {
		return 0, 0, fmt.Errorf("cell %q: missing row", cell)
	}
	return col, row, nil
}

// splitCell returns the zero based column and row of an A1 reference; row is
// -1 when the reference has no digits.
func splitCell(ref string) (int, int, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	i := 0
	col := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if col == 0 {
		return 0, 0, fmt.Errorf("cell %q: missing column", ref)
	}
	if i == len(ref) {
		return col - 1, -1, nil
	}
	n, err := strconv.Atoi(ref[i:])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("cell %q: bad row", ref)
	}
	return col - 1, n - 1, nil
}
