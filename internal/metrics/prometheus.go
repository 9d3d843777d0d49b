package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_eval_duration_seconds",
			Help:    "Evaluation duration in seconds by phase",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"phase"},
	)

	EvaluationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_total",
			Help: "Total evaluations by phase and outcome (passed, failed, skipped)",
		},
		[]string{"phase", "status"},
	)

	EvaluationScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_eval_score",
			Help:    "Overall evaluation score by phase",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"phase"},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_escalations_total",
			Help: "Escalations to the large judge by trigger and verdict",
		},
		[]string{"trigger", "verdict"},
	)

	PlanAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_eval_plan_attempts",
			Help:    "Attempts used per plan evaluation",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	JudgeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_judge_calls_total",
			Help: "Judge calls by role and status (ok, call_error, parse_error)",
		},
		[]string{"role", "status"},
	)

	JudgeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_eval_judge_latency_seconds",
			Help:    "Judge call latency by role",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"role"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "research_eval_circuit_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	SourcesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_sources_classified_total",
			Help: "Retrieved sources by heuristic class",
		},
		[]string{"type"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_eval_confidence_score",
			Help:    "Overall answer confidence",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ClaimsExtracted = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_eval_claims_extracted",
			Help:    "Claims extracted per answer",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	EmbeddingCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		},
		[]string{"cache_type"},
	)

	EmbeddingCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		},
		[]string{"cache_type"},
	)

	GatewayFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_gateway_fallbacks_total",
			Help: "Evaluations replaced by their fail-open fallback, by phase and reason (timeout, error, panic)",
		},
		[]string{"phase", "reason"},
	)

	RecordsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_eval_records_saved_total",
			Help: "Evaluation records persisted",
		},
		[]string{"passed"},
	)
)

func Init() {
	prometheus.MustRegister(
		EvaluationDuration,
		EvaluationTotal,
		EvaluationScore,
		EscalationsTotal,
		PlanAttempts,
		JudgeCallsTotal,
		JudgeLatency,
		LLMTokensUsed,
		CircuitState,
		SourcesClassified,
		ConfidenceScore,
		ClaimsExtracted,
		EmbeddingCacheHits,
		EmbeddingCacheMisses,
		GatewayFallbacks,
		RecordsSaved,
	)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
