package render

import (
	"strings"
)

// Ellipsis marks shortened text.
const Ellipsis = "…"

// Fit returns text+suffix within limit runes. Only text is shortened; the
// suffix is kept verbatim even when it alone exceeds the limit.
func Fit(text, suffix string, limit int) string {
	text = strings.TrimSpace(text)
	if runeLen(text)+runeLen(suffix) <= limit {
		return strings.TrimSpace(text + suffix)
	}

	avail := limit - runeLen(suffix) - runeLen(Ellipsis)
	if avail <= 0 {
		return strings.TrimSpace(suffix)
	}

	cut := []rune(text)[:avail]
	short := strings.TrimRight(string(cut), " \t\n")
	if i := strings.LastIndexAny(short, " \n"); i > len(short)/2 {
		short = strings.TrimRight(short[:i], " \t\n")
	}
	return short + Ellipsis + suffix
}

// splitSentences splits text into sentences at ". ", "! ", "? " or newlines.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		if text[i] == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			continue
		}

		if strings.IndexByte(".!?", text[i]) >= 0 && i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			continue
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// chunks breaks sentences longer than limit runes on word boundaries,
// and words longer than limit on rune boundaries.
func chunks(sentences []string, limit int) []string {
	if limit <= 0 {
		return sentences
	}
	var out []string
	for _, s := range sentences {
		if runeLen(s) <= limit {
			out = append(out, s)
			continue
		}
		cur := ""
		for _, w := range strings.Fields(s) {
			for runeLen(w) > limit {
				if cur != "" {
					out = append(out, cur)
					cur = ""
				}
				r := []rune(w)
				out = append(out, string(r[:limit]))
				w = string(r[limit:])
			}
			switch {
			case cur == "":
				cur = w
			case runeLen(cur)+1+runeLen(w) <= limit:
				cur += " " + w
			default:
				out = append(out, cur)
				cur = w
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}
