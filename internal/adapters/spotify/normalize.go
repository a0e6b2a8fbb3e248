package spotify

import (
	"strings"
	"unicode"
)

// noiseTokens never help a catalog search. Users paste titles copied from
// video sites as often as from the catalog itself.
var noiseTokens = map[string]struct{}{
	"audio":      {},
	"clean":      {},
	"deluxe":     {},
	"edition":    {},
	"edit":       {},
	"explicit":   {},
	"feat":       {},
	"featuring":  {},
	"ft":         {},
	"hd":         {},
	"live":       {},
	"lyric":      {},
	"lyrics":     {},
	"mix":        {},
	"mono":       {},
	"official":   {},
	"radio":      {},
	"remaster":   {},
	"remastered": {},
	"stereo":     {},
	"version":    {},
	"video":      {},
}

// searchQuery is free text split into the parts the catalog can filter on.
type searchQuery struct {
	title  string
	artist string
}

// parseSearchQuery cleans input and splits "<title> by <artist>" on the last
// " by ". Both parts are normalized with normalizeText.
func parseSearchQuery(input string) searchQuery {
	stripped := stripBracketed(strings.ToLower(input))
	if i := strings.LastIndex(stripped, " by "); i > 0 {
		title := normalizeText(stripped[:i])
		artist := normalizeText(stripped[i+len(" by "):])
		if title != "" && artist != "" {
			return searchQuery{title: title, artist: artist}
		}
	}
	return searchQuery{title: normalizeText(stripped)}
}

func (q searchQuery) empty() bool { return q.title == "" && q.artist == "" }

// catalogQuery renders q with field filters when the artist is known.
func (q searchQuery) catalogQuery() string {
	if q.artist == "" {
		return q.title
	}
	return "track:" + q.title + " artist:" + q.artist
}

// text is the form compared against candidate titles when ranking.
func (q searchQuery) text() string {
	return strings.TrimSpace(q.title + " " + q.artist)
}

// normalizeText lowercases s, splits on anything that is not a letter or a
// digit, and drops noise tokens.
func normalizeText(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, noise := noiseTokens[tok]; !noise {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// stripBracketed removes (...) and [...] segments, nested or not. An
// unmatched closer is dropped.
func stripBracketed(s string) string {
	depth := 0
	return strings.Map(func(r rune) rune {
		switch r {
		case '(', '[':
			depth++
			return -1
		case ')', ']':
			if depth > 0 {
				depth--
			}
			return -1
		}
		if depth > 0 {
			return -1
		}
		return r
	}, s)
}
