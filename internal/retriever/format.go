package retriever

import (
	"fmt"
	"sort"
	"strings"

	"iacrag/internal/domain"
)

const (
	// NoContext is the text of an empty FormattedContext.
	NoContext = "No context available."

	groupSeparator = "\n\n---\n\n"
)

// Format renders results as a context block. Chunks are grouped by source in
// order of first appearance; within a group they follow document order.
// Citations keep rank order.
func Format(results domain.RetrievalResult) domain.FormattedContext {
	if len(results) == 0 {
		return domain.FormattedContext{Text: NoContext, Empty: true, Reason: domain.ErrEmptyCorpus}
	}

	var order []string
	groups := make(map[string][]domain.Chunk)
	citations := make([]domain.Citation, 0, len(results))
	for _, r := range results {
		src := r.Chunk.Source
		if _, seen := groups[src]; !seen {
			order = append(order, src)
		}
		groups[src] = append(groups[src], r.Chunk)
		citations = append(citations, domain.Citation{
			Source:     src,
			ChunkIndex: r.Chunk.Index,
			Kind:       r.Chunk.Kind,
			Score:      r.Score,
		})
	}

	blocks := make([]string, 0, len(order))
	for _, src := range order {
		chunks := groups[src]
		sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		blocks = append(blocks, fmt.Sprintf("[From %s]\n%s", src, strings.Join(texts, "\n\n")))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Retrieved %d relevant chunk(s) from %d source(s):\n\n", len(results), len(order))
	b.WriteString(strings.Join(blocks, groupSeparator))

	return domain.FormattedContext{
		Text:      b.String(),
		Citations: citations,
		Results:   results,
	}
}

func emptyContext(reason error) domain.FormattedContext {
	return domain.FormattedContext{Text: NoContext, Empty: true, Reason: reason}
}
