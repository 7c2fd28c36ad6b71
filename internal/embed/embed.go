// Package embed abstracts text-to-vector embedding behind one capability
// interface with provider implementations selected at construction. Nothing
// outside this package inspects which provider is in use.
package embed

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyInput indicates Embed was called with no texts.
var ErrEmptyInput = errors.New("no texts to embed")

// Embedder turns texts into embedding vectors. Implementations must be safe
// for concurrent use. Errors propagate to the caller: ingestion and
// retrieval fail loudly when embedding fails.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOne embeds a single text through any Embedder.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return vecs[0], nil
}
