package retriever

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"

	"iacrag/internal/chunker"
	"iacrag/internal/corpus"
	"iacrag/internal/domain"
	"iacrag/internal/logging"
	"iacrag/internal/vectorindex"
)

// State is the lifecycle stage of the most recent indexing run.
type State string

const (
	StateUnindexed State = "unindexed"
	StateIndexing  State = "indexing"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

const (
	DefaultK         = 4
	DefaultCacheSize = 4
)

// IndexConfig holds the chunking parameters of one indexing run.
type IndexConfig struct {
	ChunkSize int
	Overlap   int
}

// DefaultIndexConfig returns the default chunking parameters.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{ChunkSize: chunker.DefaultChunkSize, Overlap: chunker.DefaultOverlap}
}

// snapshot is an immutable, queryable index. The embedder is the one the
// index was built with and must also embed the queries.
type snapshot struct {
	handle   domain.IndexHandle
	index    domain.VectorIndex
	embedder domain.Embedder
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(lg *log.Logger) Option {
	return func(r *Retriever) { r.logger = logging.OrNop(lg) }
}

// WithCacheSize bounds the number of snapshots kept for reuse.
func WithCacheSize(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(n int) Option {
	return func(r *Retriever) { r.batchSize = n }
}

// WithProgress registers a callback invoked while chunks are embedded.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Retriever) { r.progress = fn }
}

// Retriever owns the active index and its snapshot cache. Queries read the
// active snapshot without locking; rebuilds are serialised.
type Retriever struct {
	embedder  domain.Embedder
	logger    *log.Logger
	cacheSize int
	batchSize int
	progress  func(done, total int)

	mu     sync.Mutex // serialises IndexCorpus and guards cache
	cache  []*snapshot
	active atomic.Pointer[snapshot]

	stateMu sync.RWMutex
	state   State
	lastErr error
}

// New returns a Retriever that embeds through embedder.
func New(embedder domain.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:  embedder,
		logger:    logging.Nop(),
		cacheSize: DefaultCacheSize,
		state:     StateUnindexed,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the stage of the latest indexing run.
func (r *Retriever) State() State {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

// Err returns the error that moved the retriever into StateFailed, if any.
func (r *Retriever) Err() error {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.lastErr
}

func (r *Retriever) setState(s State, err error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.state = s
	r.lastErr = err
}

// Active returns the handle of the snapshot serving queries.
func (r *Retriever) Active() (domain.IndexHandle, bool) {
	s := r.active.Load()
	if s == nil {
		return domain.IndexHandle{}, false
	}
	return s.handle, true
}

// IndexCorpus makes documents the active corpus. A snapshot with the same
// fingerprint is reused without embedding. On failure the previously active
// snapshot keeps serving queries.
func (r *Retriever) IndexCorpus(ctx context.Context, documents []domain.Document, cfg IndexConfig) (domain.IndexHandle, error) {
	ck, err := chunker.New(cfg.ChunkSize, cfg.Overlap)
	if err != nil {
		return domain.IndexHandle{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fingerprint := corpus.Fingerprint(documents, cfg.ChunkSize, cfg.Overlap, r.embedder.Name())
	r.setState(StateIndexing, nil)

	if s := r.lookup(fingerprint); s != nil {
		r.active.Store(s)
		r.setState(StateReady, nil)
		r.logger.Info().
			Str("fingerprint", short(fingerprint)).
			Int("chunks", s.handle.Chunks).
			Msg("Reusing cached index")
		handle := s.handle
		handle.Cached = true
		return handle, nil
	}

	started := time.Now()
	s, err := r.build(ctx, ck, documents, fingerprint)
	if err != nil {
		r.setState(StateFailed, err)
		r.logger.Error().
			Str("fingerprint", short(fingerprint)).
			Err(err).
			Bool("previous_active", r.active.Load() != nil).
			Msg("Indexing failed")
		return domain.IndexHandle{}, fmt.Errorf("index corpus: %w", err)
	}

	r.active.Store(s)
	r.remember(s)
	r.setState(StateReady, nil)
	r.logger.Info().
		Str("fingerprint", short(fingerprint)).
		Int("documents", s.handle.Documents).
		Int("chunks", s.handle.Chunks).
		Int("dimension", s.handle.Dimension).
		Str("embedder", s.handle.Embedder).
		Dur("took", time.Since(started)).
		Msg("Index built")
	return s.handle, nil
}

func (r *Retriever) build(ctx context.Context, ck domain.Chunker, documents []domain.Document, fingerprint string) (*snapshot, error) {
	docs := make([]domain.Document, len(documents))
	copy(docs, documents)
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })

	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := ck.Chunk(d)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", d.Source, err)
		}
		chunks = append(chunks, cs...)
	}

	handle := domain.IndexHandle{
		Fingerprint: fingerprint,
		Documents:   len(docs),
		Chunks:      len(chunks),
		Embedder:    r.embedder.Name(),
		BuiltAt:     time.Now(),
	}
	if len(chunks) == 0 {
		return &snapshot{handle: handle, index: &vectorindex.Flat{}, embedder: r.embedder}, nil
	}

	emb := r.embedder
	if p, ok := emb.(domain.Preparer); ok {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		fitted, err := p.Prepare(texts)
		if err != nil {
			return nil, fmt.Errorf("prepare embedder: %w", err)
		}
		emb = fitted
	}

	idx, err := vectorindex.Build(ctx, chunks, emb, vectorindex.Options{
		BatchSize:  r.batchSize,
		OnProgress: r.progress,
	})
	if err != nil {
		return nil, err
	}
	handle.Dimension = idx.Dimension()
	return &snapshot{handle: handle, index: idx, embedder: emb}, nil
}

func (r *Retriever) lookup(fingerprint string) *snapshot {
	if s := r.active.Load(); s != nil && s.handle.Fingerprint == fingerprint {
		return s
	}
	for _, s := range r.cache {
		if s.handle.Fingerprint == fingerprint {
			return s
		}
	}
	return nil
}

// remember adds s to the cache, evicting the oldest snapshot when full.
func (r *Retriever) remember(s *snapshot) {
	r.cache = append(r.cache, s)
	if len(r.cache) > r.cacheSize {
		evicted := r.cache[0]
		r.cache = r.cache[1:]
		r.logger.Debug().Str("fingerprint", short(evicted.handle.Fingerprint)).Msg("Evicted cached index")
	}
}

// Retrieve returns the k chunks most similar to query, formatted as context.
// An empty or missing index yields an Empty context, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (domain.FormattedContext, error) {
	if k <= 0 {
		return domain.FormattedContext{}, domain.NewConfigurationError("k", "must be positive, got %d", k)
	}
	s := r.active.Load()
	if s == nil {
		return emptyContext(domain.ErrNotIndexed), nil
	}
	if s.index.Len() == 0 {
		return emptyContext(domain.ErrEmptyCorpus), nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return domain.FormattedContext{}, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.index.Search(vec, k)
	if err != nil {
		return domain.FormattedContext{}, fmt.Errorf("search index: %w", err)
	}
	r.logger.Debug().Int("k", k).Int("results", len(results)).Msg("Retrieved context")
	return Format(results), nil
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
