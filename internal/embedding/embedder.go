package embedding

import (
	"context"
	"fmt"

	"iacrag/internal/domain"
)

// DefaultBatchSize is the number of texts sent per batch request.
const DefaultBatchSize = 32

// EmbedAll embeds texts in order, batching when e supports it. The first
// failed batch aborts the whole call. progress, when set, is called with the
// number of texts embedded so far after every batch.
func EmbedAll(ctx context.Context, e domain.Embedder, texts []string, batchSize int, progress func(done int)) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	out := make([][]float32, 0, len(texts))
	batcher, canBatch := e.(domain.BatchEmbedder)

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		if canBatch {
			vecs, err := batcher.EmbedBatch(ctx, batch)
			if err != nil {
				return nil, fmt.Errorf("failed to embed batch %d-%d: %w", i, end, err)
			}
			if len(vecs) != len(batch) {
				return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
					fmt.Sprintf("batch %d-%d returned %d vectors for %d texts", i, end, len(vecs), len(batch)), nil)
			}
			out = append(out, vecs...)
		} else {
			for j, text := range batch {
				vec, err := e.Embed(ctx, text)
				if err != nil {
					return nil, fmt.Errorf("failed to embed text %d: %w", i+j, err)
				}
				out = append(out, vec)
			}
		}

		if progress != nil {
			progress(end)
		}
	}
	return out, nil
}
