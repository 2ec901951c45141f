package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines files next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryRecord is one file send attempt.
type DeliveryRecord struct {
	At       time.Time `json:"at"`
	TickID   string    `json:"tick_id"`
	Index    int       `json:"index"`
	UserID   int64     `json:"user_id"`
	Language string    `json:"lang"`
	FileID   string    `json:"file_id"`
	FileName string    `json:"file_name"`
	Kind     string    `json:"kind"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}

// TickRecord summarizes one broadcast pass.
type TickRecord struct {
	At        time.Time `json:"at"`
	TickID    string    `json:"tick_id"`
	Index     int       `json:"index"`
	NextIndex int       `json:"next_index"`
	Users     int       `json:"users"`
	Skipped   int       `json:"skipped"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
	Exhausted bool      `json:"exhausted"`
	TookMS    int64     `json:"took_ms"`
}
