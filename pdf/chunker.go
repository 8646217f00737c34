package pdf

import (
	"errors"
	"strings"
)

// ErrNoText reports a document with no extractable text on any page.
var ErrNoText = errors.New("no extractable text in document")

const (
	DefaultChunkMaxChars = 1800
	DefaultChunkOverlap  = 200
)

// PageText is one page of normalized text lines. An empty line marks a
// paragraph break; multi-space runs inside a line mark column gaps.
type PageText struct {
	Number int
	Lines  []string
}

// TextChunk is a retrieval unit cut from the document: body text split on
// paragraph boundaries with trailing overlap carried between neighbors, or a
// detected table rendered row by row.
type TextChunk struct {
	Index     int
	Content   string
	Heading   string
	Table     bool
	PageStart int
	PageEnd   int
	Metadata  map[string]any
}

// Chunker cuts page text into retrieval chunks. Paragraphs accumulate in a
// buffer; when the buffer reaches MaxChars the head is emitted and the last
// Overlap characters seed the next chunk, so neighboring chunks share a
// run of text and a match near a boundary still retrieves usable context.
type Chunker struct {
	MaxChars int
	Overlap  int

	tracker *Tracker
}

func NewChunker(maxChars, overlap int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultChunkMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars / 4
	}
	return &Chunker{MaxChars: maxChars, Overlap: overlap, tracker: NewTracker()}
}

type pendingChunk struct {
	set       bool
	heading   string
	meta      map[string]any
	pageStart int
	pageEnd   int
}

// BuildChunks runs two passes over the pages: body text first, then detected
// tables as standalone chunks. Page markers never enter chunk content, and a
// heading starts a fresh chunk so retrieval units do not straddle sections.
func (c *Chunker) BuildChunks(pages []PageText) ([]TextChunk, error) {
	c.tracker.Reset()

	var (
		chunks   []TextChunk
		buf      []rune
		pend     pendingChunk
		para     []string
		paraPage int
	)

	touch := func(first, last int) {
		if !pend.set {
			pend.set = true
			pend.heading = c.tracker.CurrentHeading()
			pend.meta = c.tracker.Snapshot()
			pend.pageStart = first
		}
		if last > pend.pageEnd {
			pend.pageEnd = last
		}
	}

	emit := func(content []rune) {
		text := string(content)
		if strings.TrimSpace(text) == "" {
			return
		}
		meta := pend.meta
		if span := c.tracker.DrainSpan(); len(span) > 0 {
			if meta == nil {
				meta = make(map[string]any, 1)
			}
			meta["page_span"] = span
		}
		chunks = append(chunks, TextChunk{
			Index:     len(chunks),
			Content:   text,
			Heading:   pend.heading,
			PageStart: pend.pageStart,
			PageEnd:   pend.pageEnd,
			Metadata:  meta,
		})
	}

	closePara := func(page int) {
		if len(para) == 0 {
			return
		}
		text := strings.Join(para, " ")
		para = para[:0]
		if len(buf) > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, []rune(text)...)
		touch(paraPage, page)
		for len(buf) >= c.MaxChars {
			emit(buf[:c.MaxChars])
			tail := buf[c.MaxChars-c.Overlap:]
			buf = append(buf[:0:0], tail...)
			pend = pendingChunk{}
			if len(buf) > 0 {
				touch(page, page)
			}
		}
	}

	flush := func(page int) {
		closePara(page)
		if len(buf) > 0 {
			emit(buf)
			buf = buf[:0]
			pend = pendingChunk{}
		}
	}

	for _, pg := range pages {
		for _, raw := range pg.Lines {
			line := CollapseWhitespace(raw)
			if line == "" {
				closePara(pg.Number)
				continue
			}
			switch c.tracker.Observe(line) {
			case LinePageMarker:
				continue
			case LineHeading:
				flush(pg.Number)
				para = append(para, line)
				paraPage = pg.Number
				closePara(pg.Number)
			default:
				if len(para) == 0 {
					paraPage = pg.Number
				}
				para = append(para, line)
			}
		}
	}
	if len(pages) > 0 {
		flush(pages[len(pages)-1].Number)
	}

	for _, tbl := range DetectTables(pages) {
		chunks = append(chunks, TextChunk{
			Index:     len(chunks),
			Content:   tbl.Content,
			Table:     true,
			PageStart: tbl.Page,
			PageEnd:   tbl.Page,
		})
	}

	if len(chunks) == 0 {
		return nil, ErrNoText
	}
	return chunks, nil
}
