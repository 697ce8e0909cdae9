package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Embedder is the vector provider for the semantic branch.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SemanticTopK embeds the query and every chunk into a shared vector space
// and returns the k chunks with the highest cosine similarity, in
// descending order.
func SemanticTopK(ctx context.Context, embedder Embedder, query string, chunks []Chunk, k int) ([]Chunk, error) {
	if len(chunks) == 0 || k <= 0 {
		return nil, nil
	}

	qv, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	cvs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(chunks))
	for i, cv := range cvs {
		ranked = append(ranked, scored{idx: i, score: cosine(qv, cv)})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]Chunk, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, chunks[r.idx])
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
