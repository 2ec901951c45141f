// Package storage keeps the append-only broadcast audit log.
//
// Records are written for observability only; nothing reads them back to
// restore rotation or session state.
package storage
