// Package embeddingtest provides deterministic embedders for tests.
package embeddingtest

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// Stub is a deterministic feature-hashing embedder. Texts sharing words get
// similar vectors. Failures and hangs can be scripted per call.
type Stub struct {
	dim  int
	name string

	mu       sync.Mutex
	calls    int
	texts    int
	failures []error
	hangs    int
	gate     chan struct{}
	entered  chan struct{}
	arrive   *sync.Once
}

// NewStub returns a stub producing vectors of dimension dim.
func NewStub(dim int) *Stub {
	return &Stub{dim: dim, name: fmt.Sprintf("stub/hash@%d", dim)}
}

// WithName overrides the model identity reported by Name.
func (s *Stub) WithName(name string) *Stub {
	s.name = name
	return s
}

// Name returns the model identity.
func (s *Stub) Name() string { return s.name }

// FailNext makes the next len(errs) calls return errs in order.
func (s *Stub) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// HangNext makes the next n calls block until their context is done.
func (s *Stub) HangNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hangs += n
}

// Hold blocks every EmbedBatch call until release is invoked. entered is
// closed when the first held call arrives. Single Embed calls pass through.
func (s *Stub) Hold() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gate = gate
	s.entered = make(chan struct{})
	s.arrive = &sync.Once{}
	var once sync.Once
	return s.entered, func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns the number of Embed and EmbedBatch calls made.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Texts returns the number of texts successfully embedded.
func (s *Stub) Texts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts
}

// Embed embeds one text.
func (s *Stub) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.begin(ctx, false); err != nil {
		return nil, err
	}
	s.done(1)
	return Vector(text, s.dim), nil
}

// EmbedBatch embeds texts in one call.
func (s *Stub) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.begin(ctx, true); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = Vector(text, s.dim)
	}
	s.done(len(texts))
	return out, nil
}

func (s *Stub) begin(ctx context.Context, batch bool) error {
	s.mu.Lock()
	s.calls++
	gate, entered, arrive := s.gate, s.entered, s.arrive
	var fail error
	if len(s.failures) > 0 {
		fail = s.failures[0]
		s.failures = s.failures[1:]
	}
	hang := false
	if fail == nil && s.hangs > 0 {
		s.hangs--
		hang = true
	}
	s.mu.Unlock()

	if batch && gate != nil {
		arrive.Do(func() { close(entered) })
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail != nil {
		return fail
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return ctx.Err()
}

func (s *Stub) done(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts += n
}

// Vector hashes the words of text into a unit vector of dimension dim.
// Texts without words map to the zero vector.
func Vector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	if dim == 0 {
		return vec
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
