package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"prodigy/pkg/logger"
)

// RunsCollector exposes stored run statistics from Postgres at scrape time.
type RunsCollector struct {
	log      *logger.Logger
	postgres *sqlx.DB

	totalRuns      *prometheus.Desc
	runs24h        *prometheus.Desc
	challengedRuns *prometheus.Desc
	avgScore24h    *prometheus.Desc
}

// NewRunsCollector creates a collector over the counsel_runs table.
func NewRunsCollector(log *logger.Logger, postgres *sqlx.DB) *RunsCollector {
	return &RunsCollector{
		log:      log,
		postgres: postgres,

		totalRuns: prometheus.NewDesc(
			"prodigy_stored_runs",
			"Stored runs by overall decision",
			[]string{"decision"}, nil,
		),
		runs24h: prometheus.NewDesc(
			"prodigy_stored_runs_24h",
			"Runs stored in the last 24h",
			nil, nil,
		),
		challengedRuns: prometheus.NewDesc(
			"prodigy_stored_runs_challenged",
			"Stored runs that went through the challenger",
			nil, nil,
		),
		avgScore24h: prometheus.NewDesc(
			"prodigy_stored_runs_avg_score_24h",
			"Average overall score of runs stored in the last 24h",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *RunsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalRuns
	ch <- c.runs24h
	ch <- c.challengedRuns
	ch <- c.avgScore24h
}

// Collect implements prometheus.Collector
func (c *RunsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectByDecision(ctx, ch)
	c.collectRecent(ctx, ch)
}

func (c *RunsCollector) collectByDecision(ctx context.Context, ch chan<- prometheus.Metric) {
	type decisionStat struct {
		Decision string `db:"overall_decision"`
		Count    int    `db:"count"`
	}

	var stats []decisionStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT overall_decision, COUNT(*) AS count
		FROM counsel_runs
		GROUP BY overall_decision
	`)
	if err != nil {
		c.log.Error("Failed to collect run stats", "error", err)
		return
	}

	for _, stat := range stats {
		ch <- prometheus.MustNewConstMetric(c.totalRuns, prometheus.GaugeValue, float64(stat.Count), stat.Decision)
	}

	var challenged int
	if err := c.postgres.GetContext(ctx, &challenged, "SELECT COUNT(*) FROM counsel_runs WHERE challenged"); err == nil {
		ch <- prometheus.MustNewConstMetric(c.challengedRuns, prometheus.GaugeValue, float64(challenged))
	}
}

func (c *RunsCollector) collectRecent(ctx context.Context, ch chan<- prometheus.Metric) {
	var recent struct {
		Count int     `db:"count"`
		Avg   float64 `db:"avg"`
	}
	err := c.postgres.GetContext(ctx, &recent, `
		SELECT COUNT(*) AS count, COALESCE(AVG(overall_score), 0) AS avg
		FROM counsel_runs
		WHERE created_at > NOW() - INTERVAL '24 hours'
	`)
	if err != nil {
		c.log.Error("Failed to collect recent run stats", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.runs24h, prometheus.GaugeValue, float64(recent.Count))
	ch <- prometheus.MustNewConstMetric(c.avgScore24h, prometheus.GaugeValue, recent.Avg)
}

// RegisterRunsCollector registers the collector with the default registry.
func RegisterRunsCollector(collector *RunsCollector) {
	prometheus.MustRegister(collector)
}
