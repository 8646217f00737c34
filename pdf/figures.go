package pdf

import (
	"math"
	"strings"
)

const (
	captionAbsorbGap = 4.0
	regionPad        = 6.0
	minFigureWidth   = 20.0
	minFigureHeight  = 40.0
	reachFactor      = 0.55
	reachMax         = 360.0
)

// Caption is a figure caption found on a page, with wrapped continuation
// lines absorbed into its text.
type Caption struct {
	Label string
	Text  string
	Rect  Rect
}

// FigureRegion locates one labeled figure on a page, in PDF user-space
// coordinates (origin bottom-left, Y up).
type FigureRegion struct {
	Label   string
	Caption string
	Page    int
	Rect    Rect
}

// FindCaptions returns the page's figure captions in top-to-bottom order.
func FindCaptions(p Page) []Caption {
	var captions []Caption
	for i := 0; i < len(p.Lines); i++ {
		line := p.Lines[i]
		label, ok := CaptionLabel(line.Text)
		if !ok {
			continue
		}
		cur := Caption{Label: label, Text: CollapseWhitespace(line.Text), Rect: line.Rect}
		for i+1 < len(p.Lines) {
			next := p.Lines[i+1]
			if _, isCaption := CaptionLabel(next.Text); isCaption {
				break
			}
			if cur.Rect.Y0-next.Rect.Y1 > captionAbsorbGap {
				break
			}
			cur.Text += " " + CollapseWhitespace(next.Text)
			cur.Rect = cur.Rect.Union(next.Rect)
			i++
		}
		captions = append(captions, cur)
	}
	return captions
}

// FiguresOnPage pairs each caption with the drawing above it. Vector boxes
// in the band between the caption and the nearest bound upward (the previous
// caption's bottom edge, a reach limit, or the page top) are unioned into one
// region. A caption with no drawable content above it yields nothing here;
// the ingest fallback covers pages where the drawing is a raster image.
func FiguresOnPage(p Page) []FigureRegion {
	captions := FindCaptions(p)
	var figures []FigureRegion
	for i, c := range captions {
		top := math.Min(p.Bounds.Y1, c.Rect.Y1+math.Min(reachFactor*p.Height(), reachMax))
		if i > 0 {
			top = math.Min(top, captions[i-1].Rect.Y0)
		}
		band := NewRect(p.Bounds.X0, c.Rect.Y1, p.Bounds.X1, top)
		if band.Empty() {
			continue
		}

		var region Rect
		found := false
		for _, r := range p.VectorRects {
			if !r.Intersects(band) {
				continue
			}
			if !found {
				region, found = r, true
				continue
			}
			region = region.Union(r)
		}
		if !found {
			continue
		}

		region = region.Pad(regionPad).Clamp(p.Bounds)
		if region.Width() < minFigureWidth {
			continue
		}
		if region.Height() < minFigureHeight {
			region.Y1 = math.Min(p.Bounds.Y1, region.Y0+minFigureHeight)
		}
		figures = append(figures, FigureRegion{
			Label:   c.Label,
			Caption: c.Text,
			Page:    p.Number,
			Rect:    region,
		})
	}
	return figures
}

// RenderBox widens a figure region for rendering so tight vector bounds do
// not crop edge labels and leader lines.
func RenderBox(region Rect, page Rect) Rect {
	wPad := math.Min(math.Max(12, 0.35*region.Width()), 0.35*page.Width())
	vPad := math.Min(20, 0.05*page.Height())
	return NewRect(region.X0-wPad, region.Y0-vPad, region.X1+wPad, region.Y1+vPad).Clamp(page)
}

// FallbackLabel picks a label for a page whose figure could not be located
// geometrically: the first caption on the page, else the first in-text
// figure reference.
func FallbackLabel(p Page) (string, bool) {
	for _, line := range p.Lines {
		if label, ok := CaptionLabel(line.Text); ok {
			return label, true
		}
	}
	var sb strings.Builder
	for _, line := range p.Lines {
		sb.WriteString(line.Text)
		sb.WriteByte('\n')
	}
	if refs := FigureRefs(sb.String()); len(refs) > 0 {
		return refs[0], true
	}
	return "", false
}
