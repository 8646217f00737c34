package pdf

import (
	"fmt"
	"math"
	"sort"

	lpdf "github.com/ledongthuc/pdf"
)

// Vertical tolerance when clustering glyphs into lines, in points.
const lineTolerance = 2.5

// Horizontal gaps wider than this many points (or 1.5x the font size) are
// treated as column separators and rendered as a multi-space run so the
// table pass can see them.
const columnGapMin = 12.0

// Glyph is one positioned character from a page content stream.
type Glyph struct {
	S        string
	FontSize float64
	Rect     Rect
}

// Line is a horizontal run of glyphs sharing a baseline.
type Line struct {
	Text string
	Rect Rect
}

// Page carries everything the later passes need from one PDF page: assembled
// text lines (struck-through content already removed), vector-path boxes for
// figure region search, and the strikeout regions themselves.
type Page struct {
	Number      int // 1-based
	Bounds      Rect
	Lines       []Line
	VectorRects []Rect
	Strikeouts  []Rect
}

func (p Page) Width() float64  { return p.Bounds.Width() }
func (p Page) Height() float64 { return p.Bounds.Height() }

// Document is the parsed, geometry-level view of a PDF file.
type Document struct {
	Path  string
	Pages []Page
}

// Open parses every page of the PDF at path. Pages that cannot be
// interpreted yield an empty Page so page numbering stays intact.
func Open(path string) (*Document, error) {
	f, reader, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	doc := &Document{Path: path}
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		p := Page{Number: i, Bounds: NewRect(0, 0, 612, 792)}
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, p)
			continue
		}
		p.Bounds = mediaBox(page)
		p.Strikeouts = strikeoutRegions(page)

		content := safeContent(page)
		glyphs := glyphsFromContent(content)
		glyphs = FilterStruck(glyphs, p.Strikeouts)
		p.Lines = GroupLines(glyphs)
		for _, r := range content.Rect {
			rect := NewRect(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
			if rect.Empty() {
				continue
			}
			p.VectorRects = append(p.VectorRects, rect)
		}
		doc.Pages = append(doc.Pages, p)
	}
	return doc, nil
}

// safeContent shields callers from content streams the parser cannot
// interpret; such pages read as empty rather than aborting the document.
func safeContent(page lpdf.Page) (content lpdf.Content) {
	defer func() {
		if r := recover(); r != nil {
			content = lpdf.Content{}
		}
	}()
	return page.Content()
}

func glyphsFromContent(content lpdf.Content) []Glyph {
	glyphs := make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		h := t.FontSize
		if h <= 0 {
			h = 10
		}
		glyphs = append(glyphs, Glyph{
			S:        t.S,
			FontSize: h,
			Rect:     NewRect(t.X, t.Y, t.X+t.W, t.Y+h),
		})
	}
	return glyphs
}

// GroupLines clusters glyphs into text lines ordered top to bottom. Within a
// line, word gaps become single spaces and column-sized gaps become a
// three-space run.
func GroupLines(glyphs []Glyph) []Line {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := append([]Glyph(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rect.Y0 != sorted[j].Rect.Y0 {
			return sorted[i].Rect.Y0 > sorted[j].Rect.Y0
		}
		return sorted[i].Rect.X0 < sorted[j].Rect.X0
	})

	var lines []Line
	var cluster []Glyph
	clusterY := sorted[0].Rect.Y0

	flush := func() {
		if line, ok := assembleLine(cluster); ok {
			lines = append(lines, line)
		}
		cluster = cluster[:0]
	}

	for _, g := range sorted {
		if len(cluster) > 0 && math.Abs(g.Rect.Y0-clusterY) > lineTolerance {
			flush()
		}
		if len(cluster) == 0 {
			clusterY = g.Rect.Y0
		}
		cluster = append(cluster, g)
	}
	flush()
	return lines
}

func assembleLine(cluster []Glyph) (Line, bool) {
	if len(cluster) == 0 {
		return Line{}, false
	}
	sorted := append([]Glyph(nil), cluster...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rect.X0 < sorted[j].Rect.X0 })

	var sb []byte
	rect := sorted[0].Rect
	prevEnd := sorted[0].Rect.X0
	for i, g := range sorted {
		if i > 0 {
			gap := g.Rect.X0 - prevEnd
			switch {
			case gap > math.Max(columnGapMin, 1.5*g.FontSize):
				sb = append(sb, "   "...)
			case gap > math.Max(0.9, 0.18*g.FontSize):
				sb = append(sb, ' ')
			}
			rect = rect.Union(g.Rect)
		}
		sb = append(sb, g.S...)
		if g.Rect.X1 > prevEnd {
			prevEnd = g.Rect.X1
		}
	}
	text := string(sb)
	if CollapseWhitespace(text) == "" {
		return Line{}, false
	}
	return Line{Text: text, Rect: rect}, true
}

// TextLines renders the page as text lines with blank lines inserted at
// paragraph-sized vertical gaps, which is what the chunking pass keys on.
func (p Page) TextLines() []string {
	out := make([]string, 0, len(p.Lines))
	for i, line := range p.Lines {
		if i > 0 {
			prev := p.Lines[i-1]
			gap := prev.Rect.Y0 - line.Rect.Y1
			if gap > 0.8*math.Max(prev.Rect.Height(), line.Rect.Height()) {
				out = append(out, "")
			}
		}
		out = append(out, line.Text)
	}
	return out
}

func numVal(v lpdf.Value) float64 {
	switch v.Kind() {
	case lpdf.Integer:
		return float64(v.Int64())
	case lpdf.Real:
		return v.Float64()
	default:
		return 0
	}
}

// mediaBox resolves the page size, walking up the page tree for inherited
// values and defaulting to US Letter when absent.
func mediaBox(page lpdf.Page) Rect {
	v := page.V
	for !v.IsNull() {
		if mb := v.Key("MediaBox"); mb.Kind() == lpdf.Array && mb.Len() == 4 {
			return NewRect(numVal(mb.Index(0)), numVal(mb.Index(1)), numVal(mb.Index(2)), numVal(mb.Index(3)))
		}
		v = v.Key("Parent")
	}
	return NewRect(0, 0, 612, 792)
}

// strikeoutRegions collects padded boxes for every StrikeOut annotation on
// the page, from quad points when present and the annotation rectangle
// otherwise.
func strikeoutRegions(page lpdf.Page) []Rect {
	annots := page.V.Key("Annots")
	if annots.Kind() != lpdf.Array {
		return nil
	}
	var regions []Rect
	for i := 0; i < annots.Len(); i++ {
		a := annots.Index(i)
		if a.Kind() != lpdf.Dict || a.Key("Subtype").Name() != "StrikeOut" {
			continue
		}
		qp := a.Key("QuadPoints")
		if qp.Kind() == lpdf.Array && qp.Len() >= 8 && qp.Len()%8 == 0 {
			for q := 0; q < qp.Len(); q += 8 {
				x0, y0 := numVal(qp.Index(q)), numVal(qp.Index(q+1))
				x1, y1 := x0, y0
				for k := 2; k < 8; k += 2 {
					x, y := numVal(qp.Index(q+k)), numVal(qp.Index(q+k+1))
					x0, x1 = math.Min(x0, x), math.Max(x1, x)
					y0, y1 = math.Min(y0, y), math.Max(y1, y)
				}
				regions = append(regions, NewRect(x0, y0, x1, y1).Pad(strikeoutPad))
			}
			continue
		}
		if r := a.Key("Rect"); r.Kind() == lpdf.Array && r.Len() == 4 {
			regions = append(regions, NewRect(numVal(r.Index(0)), numVal(r.Index(1)), numVal(r.Index(2)), numVal(r.Index(3))).Pad(strikeoutPad))
		}
	}
	return regions
}
