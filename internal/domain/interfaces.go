package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Metadata keys attached to documents and chunks.
const (
	MetaSource    = "source"
	MetaPath      = "path"
	MetaFileType  = "file_type"
	MetaChunk     = "chunk"
	MetaChunkType = "chunk_type"
)

// Document is a decoded source file loaded into the corpus.
// Documents are never mutated after loading.
type Document struct {
	Source   string
	Content  string
	Checksum string
	Metadata map[string]string
}

// NewDocument builds a Document, computing its checksum and recording the
// source identifier in the metadata.
func NewDocument(source, content string, metadata map[string]string) Document {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetaSource] = source
	return Document{
		Source:   source,
		Content:  content,
		Checksum: Checksum(content),
		Metadata: meta,
	}
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// Chunk is a contiguous, trimmed piece of a document used for indexing.
// Start and End are rune offsets of Text within the parent content.
type Chunk struct {
	ID       string
	Source   string
	Index    int
	Kind     string
	Text     string
	Start    int
	End      int
	Metadata map[string]string
}

// ScoredChunk is a chunk matched by a similarity search.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RetrievalResult is ordered by descending score.
type RetrievalResult []ScoredChunk

// Citation references a retrieved chunk in rendered output.
type Citation struct {
	Source     string
	ChunkIndex int
	Kind       string
	Score      float64
}

// FormattedContext is the text handed to the prompt builder together with
// the citations it was assembled from. When Empty is set, Reason tells why
// no context is available (ErrEmptyCorpus or ErrNotIndexed).
type FormattedContext struct {
	Text      string
	Citations []Citation
	Results   RetrievalResult
	Empty     bool
	Reason    error
}

// IndexHandle describes the snapshot produced by an indexing run.
type IndexHandle struct {
	Fingerprint string
	Documents   int
	Chunks      int
	Dimension   int
	Embedder    string
	Cached      bool
	BuiltAt     time.Time
}

// Embedder converts free text into a fixed-dimension vector. Name identifies
// the model and version; vectors from different names are not comparable.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds several texts in one request. The returned slice is
// parallel to texts.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Preparer is implemented by embedders that must be fitted to a corpus
// before use. Prepare returns a fitted embedder and leaves the receiver
// untouched.
type Preparer interface {
	Prepare(corpus []string) (Embedder, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorIndex answers k-nearest-neighbour queries over embedded chunks.
type VectorIndex interface {
	Search(query []float32, k int) (RetrievalResult, error)
	Len() int
	Dimension() int
}
