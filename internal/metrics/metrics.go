package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Orchestration run metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sragwatch_runs_started_total",
			Help: "Total number of orchestration runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sragwatch_runs_completed_total",
			Help: "Total number of orchestration runs completed",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sragwatch_run_duration_seconds",
			Help:    "Orchestration run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	LoopIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sragwatch_loop_iterations",
			Help:    "Reasoning/tool-execution iterations per run",
			Buckets: []float64{1, 2, 3, 5, 8, 10, 15},
		},
	)

	// Model call metrics
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sragwatch_model_calls_total",
			Help: "Total number of LLM calls",
		},
		[]string{"purpose", "status"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sragwatch_model_call_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"purpose"},
	)

	// Tool metrics
	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sragwatch_tool_invocations_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sragwatch_tool_duration_seconds",
			Help:    "Tool invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Retrieval metrics
	RetrievalDocuments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sragwatch_retrieval_documents",
			Help:    "Documents returned by the external search per call",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	RetrievalFusedChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sragwatch_retrieval_fused_chunks",
			Help:    "Chunks in the fused result set per retrieval call",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6},
		},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sragwatch_embedding_requests_total",
			Help: "Embedding lookups by outcome (lru_hit, cache_hit, miss, error)",
		},
		[]string{"outcome"},
	)
)
