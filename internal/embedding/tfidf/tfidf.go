package tfidf

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"iacrag/internal/domain"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Embedder implements a TF-IDF vectorizer. An Embedder returned by New is
// unfitted; Prepare returns a fitted copy whose vocabulary never changes.
type Embedder struct {
	vocabulary map[string]int
	idf        []float64
	stopwords  map[string]struct{}
	prepared   bool
}

// New creates an unprepared TF-IDF embedder.
func New() *Embedder {
	return &Embedder{stopwords: defaultStopwords()}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from corpus. A non-empty
// corpus without any token yields an embedder of dimension 1.
func (e *Embedder) Prepare(corpus []string) (domain.Embedder, error) {
	if len(corpus) == 0 {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed, "empty corpus for tfidf prepare", nil)
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	fitted := &Embedder{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
		stopwords:  e.stopwords,
		prepared:   true,
	}
	if len(terms) == 0 {
		// A corpus without terms still gets a one-dimensional space; every
		// text maps to the zero vector and scores 0.
		fitted.idf = make([]float64, 1)
		return fitted, nil
	}
	n := float64(len(corpus))
	for i, term := range terms {
		fitted.vocabulary[term] = i
		// Smoothed IDF
		fitted.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return fitted, nil
}

// Dimension returns the vocabulary size, zero before Prepare.
func (e *Embedder) Dimension() int { return len(e.idf) }

// Embed computes the L2-normalised TF-IDF vector of text. Text without any
// known term maps to the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.prepared {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed, "tfidf embedder not prepared", nil)
	}
	vec := make([]float32, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	weights := make(map[int]float64, len(tf))
	norm := 0.0
	for idx, count := range tf {
		w := float64(count) / float64(total) * e.idf[idx]
		weights[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for idx, w := range weights {
		vec[idx] = float32(w / norm)
	}
	return vec, nil
}

// EmbedBatch embeds texts locally; it never fails part way.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *Embedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "how", "does", "do", "i", "my", "we", "our",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
