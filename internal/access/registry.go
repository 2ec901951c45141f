package access

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// SheetWriter is the spreadsheet access Registry needs.
type SheetWriter interface {
	SheetReader
	WriteCell(ctx context.Context, sheetID, cell, value string) error
}

// Registry writes a user's chat id next to their handle in the allow-list
// sheet, once per process.
type Registry struct {
	Sheet   SheetWriter
	SheetID string
	// Range is the handle column, as in SheetSource. It must start at row 1.
	Range string
	// Column receives the chat id, e.g. "B".
	Column string

	mu   sync.Mutex
	done map[int64]bool
}

// Register finds the row holding "@"+handle and writes chatID into Column.
// It reports whether a cell was written. Users already registered in this
// process are skipped.
func (r *Registry) Register(ctx context.Context, handle string, chatID int64) (bool, error) {
	if r == nil || r.Column == "" || handle == "" {
		return false, nil
	}
	r.mu.Lock()
	if r.done[chatID] {
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	rows, err := r.Sheet.ReadRows(ctx, r.SheetID, r.Range)
	if err != nil {
		return false, fmt.Errorf("registry read: %w", err)
	}
	want := HandlePrefix + handle
	for i, row := range rows {
		if len(row) == 0 || cleanLine(row[0]) != want {
			continue
		}
		cell := r.Column + strconv.Itoa(i+1)
		if err := r.Sheet.WriteCell(ctx, r.SheetID, cell, strconv.FormatInt(chatID, 10)); err != nil {
			return false, fmt.Errorf("registry write %s: %w", cell, err)
		}
		r.mu.Lock()
		if r.done == nil {
			r.done = make(map[int64]bool)
		}
		r.done[chatID] = true
		r.mu.Unlock()
		return true, nil
	}
	return false, nil
}
