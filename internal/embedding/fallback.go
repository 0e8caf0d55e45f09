package embedding

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
)

// Fallback is a deterministic local embedder used when the remote
// provider cannot be reached with valid credentials. Identical text
// always produces the identical unit vector, so the pipeline degrades
// to stable (if semantically weak) embeddings instead of stalling.
type Fallback struct {
	dim int
}

func NewFallback(dim int) *Fallback {
	if dim <= 0 {
		dim = 768
	}
	return &Fallback{dim: dim}
}

func (f *Fallback) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return f.embed(text), nil
}

func (f *Fallback) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.embed(text), nil
}

func (f *Fallback) Dimension() int {
	return f.dim
}

// embed expands the text hash into dim pseudo-random components via
// counter-mode digests, then normalizes to unit length.
func (f *Fallback) embed(text string) []float32 {
	vector := make([]float32, f.dim)

	var block [md5.Size]byte
	for i := 0; i < f.dim; i += md5.Size / 4 {
		block = md5.Sum([]byte(fmt.Sprintf("%s|%d", text, i)))
		for j := 0; j < md5.Size/4 && i+j < f.dim; j++ {
			bits := binary.BigEndian.Uint32(block[j*4 : j*4+4])
			vector[i+j] = float32(bits)/float32(math.MaxUint32)*2 - 1
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vector {
			vector[i] = float32(float64(vector[i]) / norm)
		}
	}

	return vector
}
