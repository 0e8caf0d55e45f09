package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragengine_search_duration_seconds",
			Help:    "Hybrid retrieval duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragengine_search_results_count",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragengine_documents_processed_total",
			Help: "Documents processed through ingestion",
		},
		[]string{"size_category"},
	)

	ChunksStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ragengine_chunks_stored_total",
			Help: "Chunks persisted during ingestion",
		},
	)

	EmbeddingTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragengine_embedding_tasks_total",
			Help: "Embedding pipeline task outcomes",
		},
		[]string{"outcome"},
	)

	EmbeddingChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragengine_embedding_chunks_total",
			Help: "Per-chunk embedding outcomes in the pipeline",
		},
		[]string{"outcome"},
	)

	EmbeddingFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ragengine_embedding_fallbacks_total",
			Help: "Tasks that degraded to the deterministic local embedder",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragengine_cache_hits_total",
			Help: "Cache hits by tier",
		},
		[]string{"tier"},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ragengine_cache_misses_total",
			Help: "Cache misses across both tiers",
		},
	)
)

func Init() {
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ChunksStored)
	prometheus.MustRegister(EmbeddingTasks)
	prometheus.MustRegister(EmbeddingChunks)
	prometheus.MustRegister(EmbeddingFallbacks)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
