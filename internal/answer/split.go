package answer

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one retrievable piece of the corpus.
type Chunk struct {
	Source string
	Header string
	Text   string
}

// Split cuts a markdown document into sections at "#" and "##" headers and
// then packs each section's words into chunks of at most size runes. A
// single word longer than size becomes its own chunk.
func Split(source, text string, size int) []Chunk {
	if size <= 0 {
		size = 250
	}
	var out []Chunk
	for _, sec := range splitHeaders(text) {
		for _, body := range pack(sec.body, size) {
			out = append(out, Chunk{Source: source, Header: sec.header, Text: body})
		}
	}
	return out
}

type section struct {
	header string
	body   string
}

func splitHeaders(text string) []section {
	var (
		out []section
		cur section
		buf strings.Builder
	)
	flush := func() {
		cur.body = strings.TrimSpace(buf.String())
		if cur.body != "" {
			out = append(out, cur)
		}
		buf.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if h, ok := headerText(trimmed); ok {
			flush()
			cur = section{header: h}
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()
	return out
}

// headerText recognizes level one and two headers only.
func headerText(line string) (string, bool) {
	for _, p := range []string{"## ", "# "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):]), true
		}
	}
	return "", false
}

func pack(body string, size int) []string {
	var (
		out []string
		cur strings.Builder
		n   int
	)
	for _, w := range strings.Fields(body) {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > size {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(w)
		n += wl
	}
	if n > 0 {
		out = append(out, cur.String())
	}
	return out
}
