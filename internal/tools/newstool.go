package tools

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vigilab/sragwatch/internal/metrics"
	"github.com/vigilab/sragwatch/internal/retrieval"
	"github.com/vigilab/sragwatch/internal/search"
	"github.com/vigilab/sragwatch/internal/tracing"
)

const newsToolName = "search_news_context"

const newsToolDescription = "Search recent news about health, SRAG and vaccination to contextualize the database metrics. " +
	"Returns relevant excerpts from the best-matching articles."

// Sentinel answers for the acquisition and chunking edge cases. They are
// answers, not errors: the reasoning loop must always be able to continue.
const (
	SentinelNoContext    = "no recent news context was found."
	SentinelEmptyContent = "news content was empty or unreadable."
	SentinelNoChunks     = "could not segment the news content."
)

// NewsTool retrieves external context with a hybrid strategy: one bounded
// web search, overlapping chunking, then independent semantic and lexical
// top-k rankings fused by content-deduplicated union. Both ranking branches
// fail soft so a single index weakness never starves the reasoning loop.
type NewsTool struct {
	provider search.Provider
	embedder retrieval.Embedder
	chunker  *retrieval.Chunker
	topK     int
	logger   *zap.Logger
}

// NewNewsTool builds the retrieval tool.
func NewNewsTool(provider search.Provider, embedder retrieval.Embedder, chunker *retrieval.Chunker, topK int, logger *zap.Logger) *NewsTool {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsTool{
		provider: provider,
		embedder: embedder,
		chunker:  chunker,
		topK:     topK,
		logger:   logger,
	}
}

func (t *NewsTool) Name() string        { return newsToolName }
func (t *NewsTool) Description() string { return newsToolDescription }

func (t *NewsTool) Parameters() map[string]any {
	return queryParameters("The news search query, including the relevant year.")
}

// Invoke never returns an error past the acquisition boundary: failures
// degrade to sentinel text the model can reason about.
func (t *NewsTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := decodeQuery(args)
	if err != nil {
		return "", err
	}

	ctx, span := tracing.StartSpan(ctx, "newstool.invoke")
	defer span.End()

	docs, err := t.provider.Search(ctx, query)
	if err != nil {
		t.logger.Warn("News search failed", zap.Error(err))
		return SentinelNoContext, nil
	}
	metrics.RetrievalDocuments.Observe(float64(len(docs)))
	if len(docs) == 0 {
		return SentinelNoContext, nil
	}

	nonEmpty := 0
	for _, d := range docs {
		if d.Content != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return SentinelEmptyContent, nil
	}

	chunks := t.chunker.Split(docs)
	if len(chunks) == 0 {
		return SentinelNoChunks, nil
	}

	semantic, err := retrieval.SemanticTopK(ctx, t.embedder, query, chunks, t.topK)
	if err != nil {
		t.logger.Warn("Semantic ranking failed, continuing without it", zap.Error(err))
		semantic = nil
	}
	lexical := retrieval.LexicalTopK(query, chunks, t.topK)

	fused := retrieval.Fuse(semantic, lexical)
	metrics.RetrievalFusedChunks.Observe(float64(len(fused)))
	if len(fused) == 0 {
		return SentinelNoContext, nil
	}
	return retrieval.Format(fused), nil
}
