package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Agent metrics
	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_agent_calls_total",
			Help: "Total number of logical agent calls",
		},
		[]string{"agent", "model", "status"}, // status: success|error
	)

	AgentRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_agent_retries_total",
			Help: "Total number of agent call retries",
		},
		[]string{"agent", "reason"}, // reason: transport|timeout|malformed|rate_limited
	)

	AgentCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_agent_cost_usd",
			Help: "Total AI cost in USD",
		},
		[]string{"agent", "model"},
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prodigy_agent_latency_seconds",
			Help:    "Agent call latency in seconds, all attempts included",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent", "model"},
	)

	AgentTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_agent_tokens_total",
			Help: "Total tokens used by agents",
		},
		[]string{"agent", "model", "type"}, // type: prompt|completion
	)

	SchemaViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_schema_violations_total",
			Help: "Agent replies that did not match their JSON schema",
		},
		[]string{"agent"},
	)

	// Pipeline metrics
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prodigy_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	QueriesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_queries_issued_total",
			Help: "Clarification queries sent by the synthesizer to specialists",
		},
		[]string{"specialist", "status"}, // status: answered|failed
	)

	ConflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_conflicts_detected_total",
			Help: "Conflict signals raised between specialists",
		},
		[]string{"kind"},
	)

	ChallengerTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_challenger_triggers_total",
			Help: "Challenger invocations by outcome",
		},
		[]string{"outcome"}, // outcome: skipped|accepted|re_analysis
	)

	ReAnalyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_reanalysis_total",
			Help: "Specialists re-run after a challenge",
		},
		[]string{"specialist"},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_runs_total",
			Help: "Total pipeline runs by status",
		},
		[]string{"status"}, // status: success|error|budget_exceeded
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prodigy_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: []float64{10, 30, 60, 120, 180, 300, 600, 900},
		},
	)

	RunScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prodigy_run_score",
			Help:    "Final aggregate score of completed runs",
			Buckets: []float64{2, 4, 5, 6, 7, 7.5, 8, 9, 10},
		},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prodigy_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodigy_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)
)

var registerOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			AgentCalls,
			AgentRetries,
			AgentCost,
			AgentLatency,
			AgentTokens,
			SchemaViolations,
			StageDuration,
			QueriesIssued,
			ConflictsDetected,
			ChallengerTriggers,
			ReAnalyses,
			RunsTotal,
			RunDuration,
			RunScore,
			DBQueries,
			DBQueryDuration,
			KafkaMessages,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAgentCall records one logical agent call (all attempts).
func RecordAgentCall(agent, model string, latency time.Duration, cost float64, promptTokens, completionTokens int, err error) {
	AgentCalls.WithLabelValues(agent, model, status(err)).Inc()
	AgentLatency.WithLabelValues(agent, model).Observe(latency.Seconds())

	if cost > 0 {
		AgentCost.WithLabelValues(agent, model).Add(cost)
	}
	if promptTokens > 0 {
		AgentTokens.WithLabelValues(agent, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		AgentTokens.WithLabelValues(agent, model, "completion").Add(float64(completionTokens))
	}
}

// RecordRetry records a retried attempt.
func RecordRetry(agent, reason string) {
	AgentRetries.WithLabelValues(agent, reason).Inc()
}

// RecordStage records a completed pipeline stage.
func RecordStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordQuery records a synthesizer clarification query.
func RecordQuery(specialist string, err error) {
	s := "answered"
	if err != nil {
		s = "failed"
	}
	QueriesIssued.WithLabelValues(specialist, s).Inc()
}

// RecordRun records a finished pipeline run.
func RecordRun(duration time.Duration, score float64, err error, budgetExceeded bool) {
	s := status(err)
	if budgetExceeded {
		s = "budget_exceeded"
	}
	RunsTotal.WithLabelValues(s).Inc()
	RunDuration.Observe(duration.Seconds())
	if err == nil {
		RunScore.Observe(score)
	}
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	DBQueries.WithLabelValues(database, operation, status(err)).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}
