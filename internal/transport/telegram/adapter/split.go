package adapter

import "strings"

const (
	textLimit    = 4096
	captionLimit = 1024
)

func truncRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}

func truncCaption(s string) string { return truncRunes(s, captionLimit) }

// splitText cuts s into chunks of at most limit runes. It prefers newline
// boundaries and, for HTML, avoids cutting inside a tag.
func splitText(s string, limit int, parseMode string) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			// newline near the end of the window, but not a tiny chunk
			for i := end - 1; i-start >= limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
			if strings.EqualFold(parseMode, "HTML") {
				lastOpen, lastClose := -1, -1
				for i := start; i < end; i++ {
					switch rs[i] {
					case '<':
						lastOpen = i
					case '>':
						lastClose = i
					}
				}
				if lastOpen > lastClose && lastOpen > start+1 {
					end = lastOpen
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
