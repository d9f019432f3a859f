package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"iacrag/internal/domain"
)

const (
	// DefaultChunkSize is the default number of runes per chunk.
	DefaultChunkSize = 1000

	// DefaultOverlap is the default number of runes shared by consecutive chunks.
	DefaultOverlap = 100

	// BoundaryWindowPercent is the trailing share of a chunk that is searched
	// for a structural boundary before falling back to a hard cut.
	BoundaryWindowPercent = 25
)

// chunkNamespace seeds the name-based chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c2b8e-3d4a-5e6f-8a9b-0c1d2e3f4a5b")

// BlockChunker splits documents into overlapping, size-bounded chunks,
// preferring to cut where a new top-level block (or paragraph) begins.
type BlockChunker struct {
	chunkSize int
	overlap   int
	window    int
}

// New validates the parameters and returns a chunker.
func New(chunkSize, overlap int) (*BlockChunker, error) {
	if chunkSize <= 0 {
		return nil, domain.NewConfigurationError("chunk_size", "must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, domain.NewConfigurationError("overlap", "must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, domain.NewConfigurationError("overlap", "must be less than chunk size %d, got %d", chunkSize, overlap)
	}
	window := chunkSize * BoundaryWindowPercent / 100
	if window < 1 {
		window = 1
	}
	return &BlockChunker{chunkSize: chunkSize, overlap: overlap, window: window}, nil
}

// Split is a convenience for New followed by Chunk.
func Split(document domain.Document, chunkSize, overlap int) ([]domain.Chunk, error) {
	c, err := New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(document)
}

type span struct{ start, end int }

// Chunk splits one document. Chunks are returned in document order.
func (c *BlockChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	runes := []rune(document.Content)
	spans := c.spans(runes, boundaryOffsets(document))

	checksum := document.Checksum
	if checksum == "" {
		checksum = domain.Checksum(document.Content)
	}

	chunks := make([]domain.Chunk, 0, len(spans))
	for _, sp := range spans {
		lo, hi := trimSpan(runes, sp)
		if lo >= hi {
			continue
		}
		idx := len(chunks)
		text := string(runes[lo:hi])
		kind := Classify(text)

		meta := make(map[string]string, len(document.Metadata)+3)
		for k, v := range document.Metadata {
			meta[k] = v
		}
		meta[domain.MetaSource] = document.Source
		meta[domain.MetaChunk] = strconv.Itoa(idx)
		meta[domain.MetaChunkType] = kind

		chunks = append(chunks, domain.Chunk{
			ID:       chunkID(document.Source, idx, checksum),
			Source:   document.Source,
			Index:    idx,
			Kind:     kind,
			Text:     text,
			Start:    lo,
			End:      hi,
			Metadata: meta,
		})
	}
	return chunks, nil
}

func (c *BlockChunker) spans(runes []rune, boundaries []int) []span {
	n := len(runes)
	if n <= c.chunkSize {
		return []span{{0, n}}
	}
	var out []span
	start := 0
	for {
		end := start + c.chunkSize
		if end >= n {
			out = append(out, span{start, n})
			break
		}
		next := start + c.chunkSize - c.overlap
		if b, ok := lastBoundary(boundaries, start, end-c.window, end); ok {
			// The block header opens the next chunk; no overlap across blocks.
			end = b
			next = b
		}
		out = append(out, span{start, end})
		if blank(runes[end:]) {
			break
		}
		start = next
	}
	return out
}

// lastBoundary returns the greatest boundary b with b > start, b > from and b <= to.
func lastBoundary(boundaries []int, start, from, to int) (int, bool) {
	for i := len(boundaries) - 1; i >= 0; i-- {
		b := boundaries[i]
		if b > to {
			continue
		}
		if b > start && b > from {
			return b, true
		}
		return 0, false
	}
	return 0, false
}

func trimSpan(runes []rune, sp span) (int, int) {
	lo, hi := sp.start, sp.end
	for lo < hi && unicode.IsSpace(runes[lo]) {
		lo++
	}
	for hi > lo && unicode.IsSpace(runes[hi-1]) {
		hi--
	}
	return lo, hi
}

func blank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func chunkID(source string, index int, checksum string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d#%s", source, index, checksum))).String()
}
