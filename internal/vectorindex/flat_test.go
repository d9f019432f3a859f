package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iacrag/internal/domain"
	"iacrag/internal/embedding/embeddingtest"
)

func chunksOf(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.Chunk{ID: fmt.Sprint(i), Source: "main.tf", Index: i, Text: text}
	}
	return out
}

func TestSearch_InvalidK(t *testing.T) {
	idx, err := FromVectors(chunksOf("a"), [][]float32{{1, 0}})
	require.NoError(t, err)

	for _, k := range []int{0, -1} {
		_, err := idx.Search([]float32{1, 0}, k)
		assert.True(t, errors.Is(err, domain.ErrConfiguration), "k=%d", k)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx, err := Build(context.Background(), nil, embeddingtest.NewStub(4), Options{})
	require.NoError(t, err)

	res, err := idx.Search([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, 0, idx.Len())
}

func TestSearch_RanksByCosine(t *testing.T) {
	idx, err := FromVectors(chunksOf("x", "y", "xy", "zero"), [][]float32{
		{10, 0}, {0, 1}, {1, 1}, {0, 0},
	})
	require.NoError(t, err)

	res, err := idx.Search([]float32{2, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.Equal(t, "x", res[0].Chunk.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.Equal(t, "xy", res[1].Chunk.Text)
	assert.InDelta(t, 0.7071, res[1].Score, 1e-4)
	// Both score 0; insertion order decides.
	assert.Equal(t, "y", res[2].Chunk.Text)
	assert.Equal(t, "zero", res[3].Chunk.Text)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx, err := FromVectors(chunksOf("a", "b", "c"), [][]float32{{1, 0}, {2, 0}, {3, 0}})
	require.NoError(t, err)

	res, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Chunk.Text)
	assert.Equal(t, "b", res[1].Chunk.Text)
}

func TestSearch_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n, dim := 50, 8
	texts := make([]string, n)
	vecs := make([][]float32, n)
	for i := range vecs {
		texts[i] = fmt.Sprint(i)
		vecs[i] = make([]float32, dim)
		for j := range vecs[i] {
			vecs[i][j] = rng.Float32()*2 - 1
		}
	}
	idx, err := FromVectors(chunksOf(texts...), vecs)
	require.NoError(t, err)

	for _, k := range []int{1, 5, 50, 80} {
		q := make([]float32, dim)
		for j := range q {
			q[j] = rng.Float32()*2 - 1
		}
		res, err := idx.Search(q, k)
		require.NoError(t, err)
		want := k
		if want > n {
			want = n
		}
		assert.Len(t, res, want)
		for i := 1; i < len(res); i++ {
			assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
		}
		for _, r := range res {
			assert.LessOrEqual(t, r.Score, 1.0+1e-6)
			assert.GreaterOrEqual(t, r.Score, -1.0-1e-6)
		}
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx, err := FromVectors(chunksOf("a"), [][]float32{{1, 0}})
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 0, 0}, 1)
	ee, ok := domain.AsEmbeddingError(err)
	require.True(t, ok)
	assert.Equal(t, domain.EmbeddingMalformed, ee.Kind)
}

func TestFromVectors_DimensionMismatch(t *testing.T) {
	_, err := FromVectors(chunksOf("a", "b"), [][]float32{{1, 0}, {1}})
	ee, ok := domain.AsEmbeddingError(err)
	require.True(t, ok)
	assert.Equal(t, domain.EmbeddingMalformed, ee.Kind)
}

func TestBuild(t *testing.T) {
	stub := embeddingtest.NewStub(256)
	chunks := chunksOf(
		`resource "google_storage_bucket" "logs" {}`,
		`resource "google_compute_firewall" "ssh" {}`,
		`variable "region" {}`,
	)
	var progress [][2]int
	idx, err := Build(context.Background(), chunks, stub, Options{
		BatchSize:  2,
		OnProgress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 256, idx.Dimension())
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, progress)

	res, err := idx.Search(embeddingtest.Vector("firewall ssh", 256), 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 1, res[0].Chunk.Index)
}

func TestBuild_FailureLeavesNoIndex(t *testing.T) {
	stub := embeddingtest.NewStub(4)
	stub.FailNext(nil, domain.NewEmbeddingError(domain.EmbeddingAuth, "bad key", nil))

	idx, err := Build(context.Background(), chunksOf("a", "b", "c"), stub, Options{BatchSize: 2})
	require.Error(t, err)
	assert.Nil(t, idx)
	assert.True(t, errors.Is(err, domain.ErrEmbedding))
}

func TestFromVectors_RejectsNonFinite(t *testing.T) {
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())

	for name, vecs := range map[string][][]float32{
		"inf": {{0, 1}, {inf, 0}, {1, 0}},
		"nan": {{0, 1}, {1, nan}, {1, 0}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromVectors(chunksOf("a", "b", "c"), vecs)
			ee, ok := domain.AsEmbeddingError(err)
			require.True(t, ok)
			assert.Equal(t, domain.EmbeddingMalformed, ee.Kind)
		})
	}
}

func TestSearch_RejectsNonFiniteQuery(t *testing.T) {
	idx, err := FromVectors(chunksOf("a", "b"), [][]float32{{0, 1}, {1, 0}})
	require.NoError(t, err)

	_, err = idx.Search([]float32{float32(math.Inf(-1)), 0}, 2)
	ee, ok := domain.AsEmbeddingError(err)
	require.True(t, ok)
	assert.Equal(t, domain.EmbeddingMalformed, ee.Kind)
}

func TestSearch_ResultsDoNotAliasIndex(t *testing.T) {
	chunks := chunksOf("a", "b")
	for i := range chunks {
		chunks[i].Metadata = map[string]string{domain.MetaSource: "main.tf"}
	}
	idx, err := FromVectors(chunks, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	chunks[0].Metadata[domain.MetaSource] = "caller"
	res, err := idx.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "main.tf", res[0].Chunk.Metadata[domain.MetaSource])

	res[0].Chunk.Metadata[domain.MetaSource] = "mutated"
	again, err := idx.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "main.tf", again[0].Chunk.Metadata[domain.MetaSource])
}
