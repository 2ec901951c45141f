// Package caption parses numbered caption documents ("1) text 2) text").
package caption

import (
	"regexp"
	"strconv"
	"strings"
)

// Index maps a section number (decimal digits) to its caption text.
type Index map[string]string

var marker = regexp.MustCompile(`\d+\)`)

// Extract splits raw at "<digits>)" markers. A section holds at least one
// character after its marker, so a marker directly followed by another one is
// part of the text, and a marker at the very end starts nothing. Each section
// runs up to the next marker or the end of input and is trimmed; sections that
// trim to nothing are dropped. A repeated number keeps the last section. Text
// before the first marker is ignored.
func Extract(raw string) Index {
	idx := Index{}
	pos := 0
	for pos < len(raw) {
		loc := marker.FindStringIndex(raw[pos:])
		if loc == nil {
			break
		}
		start, body := pos+loc[0], pos+loc[1]
		if body >= len(raw) {
			break
		}
		end := len(raw)
		if next := marker.FindStringIndex(raw[body+1:]); next != nil {
			end = body + 1 + next[0]
		}
		if text := strings.TrimSpace(raw[body:end]); text != "" {
			idx[raw[start:body-1]] = text
		}
		pos = end
	}
	return idx
}

// Lookup returns the caption for section n.
func (i Index) Lookup(n int) (string, bool) {
	s, ok := i[strconv.Itoa(n)]
	return s, ok
}

// Len is the number of distinct sections.
func (i Index) Len() int { return len(i) }
