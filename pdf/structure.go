package pdf

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// LineKind classifies a page line for the chunking pass.
type LineKind int

const (
	LineText LineKind = iota
	LinePageMarker
	LineHeading
)

var pagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*page\s+(\d{1,4})\b`),
	regexp.MustCompile(`(?i)^\s*pg\.?\s*(\d{1,4})\s*$`),
	regexp.MustCompile(`(?i)^\s*p\.\s*(\d{1,4})\s*$`),
	regexp.MustCompile(`^\s*-+\s*(\d{1,4})\s*-+\s*$`),
}

var numberedHeadingRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)\.?\s+(\S.*)$`)

// pageSpanRe finds printed page references anywhere in a line, not just
// full-line markers, so a chunk's page span covers every page it mentions.
var pageSpanRe = regexp.MustCompile(`(?i)\b(?:page|pg\.?|p\.)\s*(\d{1,4})\b`)

// Figure and table captions are often short ALL-CAPS lines; they belong to
// the figure/table passes, not the heading hierarchy.
var captionish = regexp.MustCompile(`(?i)^\s*(?:FIG(?:URE)?\.?|TABLE)\s*[0-9A-Z]`)

// Tracker follows document structure line by line: printed page labels,
// numbered headings at three depths, and ALL-CAPS headings. A numbered
// heading clears every deeper level; an ALL-CAPS heading resets the numbered
// levels entirely.
type Tracker struct {
	heading    string
	section    string
	subsection string
	pageLabel  string
	span       map[int]bool
}

func NewTracker() *Tracker {
	return &Tracker{span: make(map[int]bool)}
}

func (t *Tracker) Reset() {
	*t = Tracker{span: make(map[int]bool)}
}

// Observe updates the tracker from one text line and reports what the line
// was. Page markers and headings are page furniture and structure, and the
// caller keeps them out of normal paragraph flow accordingly.
func (t *Tracker) Observe(line string) LineKind {
	clean := CollapseWhitespace(line)
	if clean == "" {
		return LineText
	}

	for _, m := range pageSpanRe.FindAllStringSubmatch(clean, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			t.span[n] = true
		}
	}

	for _, re := range pagePatterns {
		if m := re.FindStringSubmatch(clean); m != nil {
			t.pageLabel = m[1]
			if n, err := strconv.Atoi(m[1]); err == nil {
				t.span[n] = true
			}
			return LinePageMarker
		}
	}

	if captionish.MatchString(clean) {
		return LineText
	}

	if m := numberedHeadingRe.FindStringSubmatch(clean); m != nil && looksLikeHeadingTitle(m[2]) {
		title := clean
		switch depth := strings.Count(m[1], ".") + 1; {
		case depth == 1:
			t.heading = title
			t.section = ""
			t.subsection = ""
		case depth == 2:
			t.section = title
			t.subsection = ""
		default:
			t.subsection = title
		}
		return LineHeading
	}

	if isAllCapsHeading(clean) {
		t.heading = clean
		t.section = ""
		t.subsection = ""
		return LineHeading
	}

	return LineText
}

// CurrentHeading returns the most specific heading seen so far.
func (t *Tracker) CurrentHeading() string {
	switch {
	case t.subsection != "":
		return t.subsection
	case t.section != "":
		return t.section
	default:
		return t.heading
	}
}

func (t *Tracker) PageLabel() string {
	return t.pageLabel
}

// DrainSpan returns the printed page numbers observed since the last drain,
// sorted ascending, and clears the set. The chunker drains once per emitted
// chunk so each chunk's metadata carries only its own span.
func (t *Tracker) DrainSpan() []int {
	if len(t.span) == 0 {
		return nil
	}
	out := make([]int, 0, len(t.span))
	for n := range t.span {
		out = append(out, n)
	}
	sort.Ints(out)
	t.span = make(map[int]bool)
	return out
}

// Snapshot returns the structure state as chunk metadata, with empty levels
// left out.
func (t *Tracker) Snapshot() map[string]any {
	meta := make(map[string]any, 4)
	if t.heading != "" {
		meta["heading"] = t.heading
	}
	if t.section != "" {
		meta["section"] = t.section
	}
	if t.subsection != "" {
		meta["subsection"] = t.subsection
	}
	if t.pageLabel != "" {
		meta["page_label"] = t.pageLabel
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// looksLikeHeadingTitle rejects numbered lines that read as sentences rather
// than headings.
func looksLikeHeadingTitle(title string) bool {
	title = strings.TrimSpace(title)
	if len(title) < 3 || len(title) > 100 {
		return false
	}
	if strings.HasSuffix(title, ".") || strings.HasSuffix(title, ",") || strings.HasSuffix(title, ";") {
		return false
	}
	r := rune(title[0])
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

func isAllCapsHeading(line string) bool {
	if len(line) < 4 || len(line) > 80 || strings.HasSuffix(line, ".") {
		return false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters >= 3
}
