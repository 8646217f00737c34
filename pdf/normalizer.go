package pdf

import (
	"regexp"
	"strings"
)

// strikeoutPad widens each strikeout annotation box slightly so glyphs whose
// boxes only graze the annotation are still suppressed.
const strikeoutPad = 2.0

var wsRun = regexp.MustCompile(`\s+`)

// CollapseWhitespace flattens every whitespace run to a single space and
// trims the ends.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(wsRun.ReplaceAllString(text, " "))
}

// Normalizer strips known header/footer boilerplate from page text. Each
// phrase matches tokenized: any whitespace, including line wraps, may sit
// between the phrase's words, and matching is case-insensitive.
type Normalizer struct {
	patterns []*regexp.Regexp
}

func NewNormalizer(phrases []string) *Normalizer {
	patterns := make([]*regexp.Regexp, 0, len(phrases))
	for _, phrase := range phrases {
		tokens := strings.Fields(phrase)
		if len(tokens) == 0 {
			continue
		}
		quoted := make([]string, len(tokens))
		for i, tok := range tokens {
			quoted[i] = regexp.QuoteMeta(tok)
		}
		patterns = append(patterns, regexp.MustCompile(`(?i)`+strings.Join(quoted, `\s+`)))
	}
	return &Normalizer{patterns: patterns}
}

// StripPhrases removes every phrase occurrence, leaving the surrounding line
// structure in place for the paragraph pass.
func (n *Normalizer) StripPhrases(text string) string {
	for _, re := range n.patterns {
		text = re.ReplaceAllString(text, " ")
	}
	return text
}

// Clean is the single-block form: phrases stripped, whitespace collapsed.
// Returns "" when nothing survives.
func (n *Normalizer) Clean(text string) string {
	return CollapseWhitespace(n.StripPhrases(text))
}

// FilterStruck drops glyphs whose boxes overlap any strikeout region, so
// struck-through draft text never reaches chunk content. Regions are
// expected pre-padded (see strikeoutPad).
func FilterStruck(glyphs []Glyph, regions []Rect) []Glyph {
	if len(regions) == 0 {
		return glyphs
	}
	kept := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		struck := false
		for _, r := range regions {
			if r.Intersects(g.Rect) {
				struck = true
				break
			}
		}
		if !struck {
			kept = append(kept, g)
		}
	}
	return kept
}
