package pdf

import (
	"regexp"
	"strings"
)

// captionLabelRe anchors a caption line: a FIG/FIGURE prefix, a designator,
// then an em or en dash. The dash is what separates a real caption from a
// mere in-text reference.
var captionLabelRe = regexp.MustCompile(`^\s*(?i:FIG(?:URE)?\.?)\s*([0-9A-Z][0-9A-Za-z.\-]*)\s*[—–]`)

// figureRefRe matches figure references anywhere in text, no dash required.
// The designator needs a digit, with an optional letter prefix of either
// case, so appendix labels like "a-5" match but prose after the word
// "figure" does not.
var figureRefRe = regexp.MustCompile(`(?i:\bFIG(?:URE)?\.?)\s*((?:[A-Za-z]+[.\-]?)?\d+(?:[.\-–]\d+)*[A-Za-z]*)`)

var figurePrefixRe = regexp.MustCompile(`(?i)^\s*FIG(?:URE)?\.?\s*`)

// NormalizeFigureLabel maps any spelling of a figure reference onto the
// single canonical form used as the persistence key, e.g. "Figure 9-22c"
// and "FIG. 9-22C" both become "FIG. 9-22C". Extraction and lookup must use
// this same function or the join between them silently breaks.
func NormalizeFigureLabel(raw string) string {
	s := figurePrefixRe.ReplaceAllString(raw, "")
	s = CollapseWhitespace(s)
	s = strings.Trim(s, ".,;:")
	if s == "" {
		return ""
	}
	return "FIG. " + strings.ToUpper(s)
}

// CaptionLabel reports the normalized label when line starts a figure
// caption.
func CaptionLabel(line string) (string, bool) {
	m := captionLabelRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	label := NormalizeFigureLabel(m[1])
	return label, label != ""
}

// FigureRefs returns the normalized labels referenced anywhere in text, in
// first-appearance order, without duplicates.
func FigureRefs(text string) []string {
	matches := figureRefRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		label := NormalizeFigureLabel(m[1])
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
