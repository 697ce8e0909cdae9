// Package embeddings provides embedding generation with a small in-process
// LRU and an optional Redis-backed cache in front of the provider.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/vigilab/sragwatch/internal/metrics"
	"github.com/vigilab/sragwatch/internal/tracing"
)

// Config controls the embedding service behavior.
type Config struct {
	// DefaultModel is the embedding model (e.g. text-embedding-3-small).
	DefaultModel string
	// Timeout bounds each provider call.
	Timeout time.Duration
	// MaxLRU controls the in-process LRU size.
	MaxLRU int
	// CacheTTL sets the TTL for cache entries.
	CacheTTL time.Duration
}

// Service generates embeddings with caching.
type Service struct {
	cfg    Config
	api    openai.Client
	cache  Cache
	lru    *LocalLRU
	logger *zap.Logger
}

// NewService builds the embedding service. cache may be nil (LRU only).
func NewService(apiKey string, cfg Config, cache Cache, logger *zap.Logger, opts ...option.RequestOption) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "text-embedding-3-small"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.MaxLRU == 0 {
		cfg.MaxLRU = 2048
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Service{
		cfg:    cfg,
		api:    openai.NewClient(all...),
		cache:  cache,
		lru:    NewLocalLRU(cfg.MaxLRU),
		logger: logger,
	}
}

// Embed returns the vector for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if s == nil {
		return nil, fmt.Errorf("embedding service not initialized")
	}
	key := MakeKey(s.cfg.DefaultModel, text)

	// LRU first
	if v, ok := s.lru.Get(ctx, key); ok {
		metrics.EmbeddingRequests.WithLabelValues("lru_hit").Inc()
		return v, nil
	}
	// Redis next
	if s.cache != nil {
		if v, ok := s.cache.Get(ctx, key); ok {
			s.lru.Set(ctx, key, v, 30*time.Minute)
			metrics.EmbeddingRequests.WithLabelValues("cache_hit").Inc()
			return v, nil
		}
	}

	vecs, err := s.embedBatch(ctx, []string{text})
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EmbeddingRequests.WithLabelValues("miss").Inc()

	v := vecs[0]
	s.lru.Set(ctx, key, v, 30*time.Minute)
	if s.cache != nil {
		s.cache.Set(ctx, key, v, s.cfg.CacheTTL)
	}
	return v, nil
}

// EmbedBatch returns vectors for several texts, consulting the caches per
// text and batching only the misses into one provider call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s == nil {
		return nil, fmt.Errorf("embedding service not initialized")
	}
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		key := MakeKey(s.cfg.DefaultModel, t)
		if v, ok := s.lru.Get(ctx, key); ok {
			metrics.EmbeddingRequests.WithLabelValues("lru_hit").Inc()
			out[i] = v
			continue
		}
		if s.cache != nil {
			if v, ok := s.cache.Get(ctx, key); ok {
				metrics.EmbeddingRequests.WithLabelValues("cache_hit").Inc()
				s.lru.Set(ctx, key, v, 30*time.Minute)
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) > 0 {
		vecs, err := s.embedBatch(ctx, missTexts)
		if err != nil {
			metrics.EmbeddingRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		for j, i := range missIdx {
			metrics.EmbeddingRequests.WithLabelValues("miss").Inc()
			out[i] = vecs[j]
			key := MakeKey(s.cfg.DefaultModel, texts[i])
			s.lru.Set(ctx, key, vecs[j], 30*time.Minute)
			if s.cache != nil {
				s.cache.Set(ctx, key, vecs[j], s.cfg.CacheTTL)
			}
		}
	}
	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracing.StartSpan(ctx, "embeddings.generate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(s.cfg.DefaultModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d, want %d", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}
