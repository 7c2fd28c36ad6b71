package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Static is a deterministic, dependency-free embedder: each text becomes a
// normalized bag-of-words vector, so texts sharing vocabulary land close
// together. It exists for tests and offline smoke runs, not production
// retrieval quality.
type Static struct {
	Dim int
}

// NewStatic returns a Static embedder with the given dimensionality
// (minimum 8).
func NewStatic(dim int) *Static {
	if dim < 8 {
		dim = 8
	}
	return &Static{Dim: dim}
}

// Embed implements Embedder.
func (s *Static) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vector(text)
	}
	return out, nil
}

func (s *Static) vector(text string) []float32 {
	v := make([]float32, s.Dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		v[int(h.Sum32())%s.Dim]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		// Degenerate input still yields a valid unit vector.
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
