package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func letterPage(number int) Page {
	return Page{Number: number, Bounds: NewRect(0, 0, 612, 792)}
}

func TestFindCaptionsAbsorbsWrappedLines(t *testing.T) {
	p := letterPage(1)
	p.Lines = []Line{
		{Text: "Figure 3—Widget diagram with a long", Rect: NewRect(150, 290, 450, 300)},
		{Text: "caption that wraps onto a second line", Rect: NewRect(150, 284, 430, 289.5)},
		{Text: "Unrelated body text far below", Rect: NewRect(72, 200, 400, 210)},
	}

	captions := FindCaptions(p)
	require.Len(t, captions, 1)
	assert.Equal(t, "FIG. 3", captions[0].Label)
	assert.Equal(t, "Figure 3—Widget diagram with a long caption that wraps onto a second line", captions[0].Text)
	assert.Equal(t, NewRect(150, 284, 450, 300), captions[0].Rect)
}

func TestFiguresOnPageUnionsVectorBoxes(t *testing.T) {
	p := letterPage(5)
	p.Lines = []Line{
		{Text: "Figure 3—Widget diagram", Rect: NewRect(150, 290, 450, 300)},
	}
	p.VectorRects = []Rect{
		NewRect(200, 320, 400, 500),
		NewRect(180, 480, 220, 520),
		// Above the reach limit (300 + 360); must not be pulled in.
		NewRect(100, 680, 200, 750),
	}

	figures := FiguresOnPage(p)
	require.Len(t, figures, 1)

	f := figures[0]
	assert.Equal(t, "FIG. 3", f.Label)
	assert.Equal(t, "Figure 3—Widget diagram", f.Caption)
	assert.Equal(t, 5, f.Page)
	assert.Equal(t, NewRect(174, 314, 406, 526), f.Rect)
}

func TestFiguresOnPagePreviousCaptionBounds(t *testing.T) {
	p := letterPage(2)
	p.Lines = []Line{
		{Text: "FIG. 12—Upper assembly", Rect: NewRect(150, 600, 450, 610)},
		{Text: "FIG. 13—Lower assembly", Rect: NewRect(150, 300, 450, 310)},
	}
	p.VectorRects = []Rect{
		NewRect(100, 620, 300, 700), // belongs to FIG. 12
		NewRect(100, 350, 300, 550), // belongs to FIG. 13
	}

	figures := FiguresOnPage(p)
	require.Len(t, figures, 2)

	assert.Equal(t, "FIG. 12", figures[0].Label)
	assert.Equal(t, NewRect(94, 614, 306, 706), figures[0].Rect)

	// The search band for FIG. 13 stops at FIG. 12's caption, so the upper
	// drawing is not unioned in.
	assert.Equal(t, "FIG. 13", figures[1].Label)
	assert.Equal(t, NewRect(94, 344, 306, 556), figures[1].Rect)
}

func TestFiguresOnPageMinHeight(t *testing.T) {
	p := letterPage(1)
	p.Lines = []Line{
		{Text: "Figure 8—Shim stack", Rect: NewRect(150, 290, 450, 300)},
	}
	p.VectorRects = []Rect{NewRect(200, 310, 400, 330)}

	figures := FiguresOnPage(p)
	require.Len(t, figures, 1)
	assert.Equal(t, NewRect(194, 304, 406, 344), figures[0].Rect)
}

func TestFiguresOnPageNoVectorContent(t *testing.T) {
	p := letterPage(1)
	p.Lines = []Line{
		{Text: "Figure 2—Scanned photograph", Rect: NewRect(150, 290, 450, 300)},
	}

	assert.Empty(t, FiguresOnPage(p))
}

func TestRenderBox(t *testing.T) {
	page := NewRect(0, 0, 612, 792)
	got := RenderBox(NewRect(200, 300, 300, 400), page)
	assert.Equal(t, NewRect(165, 280, 335, 420), got)

	// Clamped at the page edge.
	got = RenderBox(NewRect(0, 0, 100, 100), page)
	assert.Equal(t, 0.0, got.X0)
	assert.Equal(t, 0.0, got.Y0)
}

func TestFallbackLabel(t *testing.T) {
	p := letterPage(1)
	p.Lines = []Line{
		{Text: "see Figure 7 for the hose routing", Rect: NewRect(72, 500, 400, 510)},
		{Text: "Figure 9—Hose routing", Rect: NewRect(150, 290, 450, 300)},
	}
	label, ok := FallbackLabel(p)
	require.True(t, ok)
	assert.Equal(t, "FIG. 9", label, "caption lines win over in-text references")

	p.Lines = p.Lines[:1]
	label, ok = FallbackLabel(p)
	require.True(t, ok)
	assert.Equal(t, "FIG. 7", label)

	p.Lines = []Line{{Text: "no references here", Rect: NewRect(72, 500, 200, 510)}}
	_, ok = FallbackLabel(p)
	assert.False(t, ok)
}
