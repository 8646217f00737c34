package retrieval

import (
	"context"
	"sort"

	"docrag/pdf"
	"docrag/types"
)

// CrossStore is the slice of the store the cross-referencer needs.
type CrossStore interface {
	FiguresByLabels(ctx context.Context, docIDs []int64, labels []string) ([]types.Figure, error)
	PageRenditionsFor(ctx context.Context, docID int64, pageNumbers []int) ([]types.PageRendition, error)
}

// CrossReferencer resolves a ranked chunk set into the figures its text
// references and the page renditions its spans cover.
type CrossReferencer struct {
	store CrossStore
}

func NewCrossReferencer(store CrossStore) *CrossReferencer {
	return &CrossReferencer{store: store}
}

type docLabel struct {
	doc   int64
	label string
}

// Figures scans match content for figure references, normalizes them the
// same way extraction did, and resolves them within each match's own
// document. Results follow first-appearance order across the ranked chunks;
// references without a stored figure are silently dropped.
func (c *CrossReferencer) Figures(ctx context.Context, matches []types.ChunkMatch) ([]types.Figure, error) {
	var (
		order  []docLabel
		seen   = map[docLabel]bool{}
		docIDs []int64
		labels []string
		docSet = map[int64]bool{}
		lblSet = map[string]bool{}
	)
	for _, m := range matches {
		for _, label := range pdf.FigureRefs(m.Content) {
			k := docLabel{m.DocumentID, label}
			if seen[k] {
				continue
			}
			seen[k] = true
			order = append(order, k)
			if !docSet[m.DocumentID] {
				docSet[m.DocumentID] = true
				docIDs = append(docIDs, m.DocumentID)
			}
			if !lblSet[label] {
				lblSet[label] = true
				labels = append(labels, label)
			}
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	stored, err := c.store.FiguresByLabels(ctx, docIDs, labels)
	if err != nil {
		return nil, err
	}
	byKey := make(map[docLabel]types.Figure, len(stored))
	for _, f := range stored {
		byKey[docLabel{f.DocumentID, f.Label}] = f
	}

	var out []types.Figure
	for _, k := range order {
		if f, ok := byKey[k]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

type docPage struct {
	doc  int64
	page int
}

// Pages resolves the renditions for every page a match's span touches. A
// page ranks by the best-ranked chunk touching it, then by document and page
// number; each PageMatch lists the contributing chunks in rank order.
func (c *CrossReferencer) Pages(ctx context.Context, matches []types.ChunkMatch) ([]types.PageMatch, error) {
	type pageInfo struct {
		minRank  int
		chunkIDs []int64
	}
	var (
		info     = map[docPage]*pageInfo{}
		docOrder []int64
		docPages = map[int64][]int{}
	)
	for rank, m := range matches {
		if m.PageStart == nil {
			continue
		}
		start := *m.PageStart
		end := start
		if m.PageEnd != nil && *m.PageEnd > end {
			end = *m.PageEnd
		}
		for p := start; p <= end; p++ {
			k := docPage{m.DocumentID, p}
			pi, ok := info[k]
			if !ok {
				pi = &pageInfo{minRank: rank}
				info[k] = pi
				if _, have := docPages[m.DocumentID]; !have {
					docOrder = append(docOrder, m.DocumentID)
				}
				docPages[m.DocumentID] = append(docPages[m.DocumentID], p)
			}
			pi.chunkIDs = append(pi.chunkIDs, m.ID)
		}
	}
	if len(info) == 0 {
		return nil, nil
	}

	var out []types.PageMatch
	for _, docID := range docOrder {
		rends, err := c.store.PageRenditionsFor(ctx, docID, docPages[docID])
		if err != nil {
			return nil, err
		}
		for _, rend := range rends {
			pi := info[docPage{docID, rend.PageNumber}]
			out = append(out, types.PageMatch{PageRendition: rend, ChunkIDs: pi.chunkIDs})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri := info[docPage{out[i].DocumentID, out[i].PageNumber}].minRank
		rj := info[docPage{out[j].DocumentID, out[j].PageNumber}].minRank
		if ri != rj {
			return ri < rj
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].PageNumber < out[j].PageNumber
	})
	return out, nil
}
