package vectorindex

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"

	"iacrag/internal/domain"
	"iacrag/internal/embedding"
)

// Options tunes Build.
type Options struct {
	BatchSize int
	// OnProgress is called after each batch with the number of chunks embedded.
	OnProgress func(done, total int)
}

// Flat is an exact, brute-force cosine index. It is immutable once built and
// safe for concurrent searches.
type Flat struct {
	dimension int
	vectors   [][]float32
	chunks    []domain.Chunk
}

var _ domain.VectorIndex = (*Flat)(nil)

// Build embeds every chunk and indexes the vectors. Any embedding failure
// aborts the build; no partial index is returned.
func Build(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder, opts Options) (*Flat, error) {
	if len(chunks) == 0 {
		return &Flat{}, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	var progress func(int)
	if opts.OnProgress != nil {
		total := len(chunks)
		progress = func(done int) { opts.OnProgress(done, total) }
	}
	vectors, err := embedding.EmbedAll(ctx, embedder, texts, opts.BatchSize, progress)
	if err != nil {
		return nil, err
	}
	return FromVectors(chunks, vectors)
}

// FromVectors indexes precomputed vectors. vectors[i] belongs to chunks[i].
func FromVectors(chunks []domain.Chunk, vectors [][]float32) (*Flat, error) {
	if len(chunks) != len(vectors) {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
			fmt.Sprintf("%d chunks but %d vectors", len(chunks), len(vectors)), nil)
	}
	if len(chunks) == 0 {
		return &Flat{}, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed, "empty embedding vector", nil)
	}
	f := &Flat{
		dimension: dim,
		vectors:   make([][]float32, len(vectors)),
		chunks:    make([]domain.Chunk, len(chunks)),
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
				fmt.Sprintf("vector %d has dimension %d, want %d", i, len(v), dim), nil)
		}
		if j, ok := nonFinite(v); ok {
			return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
				fmt.Sprintf("vector %d has non-finite component %d", i, j), nil)
		}
		f.vectors[i] = normalize(v)
		f.chunks[i] = cloneChunk(chunks[i])
	}
	return f, nil
}

// Len returns the number of indexed chunks.
func (f *Flat) Len() int { return len(f.chunks) }

// Dimension returns the vector dimension, zero for an empty index.
func (f *Flat) Dimension() int { return f.dimension }

// Search returns the min(k, Len()) chunks most similar to query, best first.
// Equal scores keep insertion order. Returned chunks are copies; changing
// them does not affect the index.
func (f *Flat) Search(query []float32, k int) (domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, domain.NewConfigurationError("k", "must be positive, got %d", k)
	}
	if len(f.chunks) == 0 {
		return domain.RetrievalResult{}, nil
	}
	if len(query) != f.dimension {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
			fmt.Sprintf("query dimension %d, index dimension %d", len(query), f.dimension), nil)
	}
	if j, ok := nonFinite(query); ok {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
			fmt.Sprintf("query has non-finite component %d", j), nil)
	}
	q := normalize(query)

	scores := make([]float64, len(f.vectors))
	idxs := make([]int, len(f.vectors))
	for i, v := range f.vectors {
		scores[i] = dot(v, q)
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	if k > len(idxs) {
		k = len(idxs)
	}
	out := make(domain.RetrievalResult, k)
	for i := 0; i < k; i++ {
		j := idxs[i]
		out[i] = domain.ScoredChunk{Chunk: cloneChunk(f.chunks[j]), Score: scores[j]}
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize returns a unit-length copy of v; the zero vector stays zero.
func normalize(v []float32) []float32 {
	norm := 0.0
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	inv := 1 / math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// nonFinite returns the index of the first NaN or infinite component.
func nonFinite(v []float32) (int, bool) {
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return i, true
		}
	}
	return 0, false
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	c.Metadata = maps.Clone(c.Metadata)
	return c
}
