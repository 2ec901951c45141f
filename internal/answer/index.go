package answer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Index is an in-memory vector index over corpus chunks.
type Index struct {
	chunks  []Chunk
	vectors [][]float64
}

const embedBatch = 100

// BuildIndex embeds every chunk.
func BuildIndex(ctx context.Context, emb Embedder, chunks []Chunk) (*Index, error) {
	idx := &Index{chunks: chunks, vectors: make([][]float64, 0, len(chunks))}
	for start := 0; start < len(chunks); start += embedBatch {
		end := min(start+embedBatch, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.embedText())
		}
		vecs, err := emb.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vecs))
		}
		idx.vectors = append(idx.vectors, vecs...)
	}
	return idx, nil
}

func (c Chunk) embedText() string {
	if c.Header == "" {
		return c.Text
	}
	return c.Header + "\n" + c.Text
}

func (i *Index) Len() int { return len(i.chunks) }

// Search returns up to k chunks ranked by cosine similarity to query.
func (i *Index) Search(ctx context.Context, emb Embedder, query string, k int) ([]Chunk, error) {
	if i.Len() == 0 || k <= 0 {
		return nil, nil
	}
	vecs, err := emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, errors.New("embed query: no vector")
	}
	q := vecs[0]

	type scored struct {
		i     int
		score float64
	}
	all := make([]scored, len(i.vectors))
	for n, v := range i.vectors {
		all[n] = scored{n, cosine(q, v)}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	k = min(k, len(all))
	out := make([]Chunk, 0, k)
	for _, s := range all[:k] {
		out = append(out, i.chunks[s.i])
	}
	return out, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
