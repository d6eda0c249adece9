package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"prodigy/internal/domain/usage"
	"prodigy/pkg/clickhouse"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
)

// UsageTable is where per-call usage lands
const UsageTable = "counsel_ai_usage"

var _ usage.Repository = (*UsageRepository)(nil)

// UsageRepository stores usage records in ClickHouse through a batch writer.
// Call Start before recording and Stop on shutdown to flush the tail.
type UsageRepository struct {
	conn   driver.Conn
	table  string
	writer *clickhouse.BatchWriter[usage.Record]
	log    *logger.Logger
}

type UsageOption func(*usageOptions)

type usageOptions struct {
	table     string
	batchSize int
	maxAge    time.Duration
}

// WithTable overrides the target table
func WithTable(table string) UsageOption {
	return func(o *usageOptions) { o.table = table }
}

func WithBatching(size int, maxAge time.Duration) UsageOption {
	return func(o *usageOptions) {
		o.batchSize = size
		o.maxAge = maxAge
	}
}

func NewUsageRepository(conn driver.Conn, opts ...UsageOption) *UsageRepository {
	o := usageOptions{table: UsageTable, batchSize: 200, maxAge: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	r := &UsageRepository{
		conn:  conn,
		table: o.table,
		log:   logger.Get().With("component", "usage_repository"),
	}
	r.writer = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[usage.Record]{
		FlushFunc:    r.insert,
		TableName:    o.table,
		MaxBatchSize: o.batchSize,
		MaxAge:       o.maxAge,
	})
	return r
}

func (r *UsageRepository) Start(ctx context.Context) {
	r.writer.Start(ctx)
}

// Stop flushes buffered records
func (r *UsageRepository) Stop(ctx context.Context) error {
	return r.writer.Stop(ctx)
}

// RecordUsage buffers rec. A failed flush is logged, never returned.
func (r *UsageRepository) RecordUsage(ctx context.Context, rec usage.Record) {
	if err := r.writer.Add(ctx, rec); err != nil {
		r.log.Warnw("Failed to record usage", "agent", rec.Agent, "run_id", rec.RunID, "error", err)
	}
}

// Flush writes buffered records now
func (r *UsageRepository) Flush(ctx context.Context) error {
	return r.writer.Flush(ctx)
}

func (r *UsageRepository) insert(ctx context.Context, batch []usage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, run_id, agent, mode, provider, model,
			prompt_tokens, completion_tokens, cost_usd,
			latency_ms, attempts, success, error, created_at
		)`, r.table)

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "prepare usage batch")
	}
	defer stmt.Close()

	for _, rec := range batch {
		if err := stmt.Append(
			rec.ID, rec.RunID, rec.Agent, rec.Mode, rec.Provider, rec.Model,
			rec.PromptTokens, rec.CompletionTokens, rec.CostUSD,
			rec.LatencyMS, rec.Attempts, rec.Success, rec.Error, rec.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "append usage row")
		}
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrap(err, "send usage batch")
	}
	return nil
}

// TotalsByAgent sums usage per agent since the given time
func (r *UsageRepository) TotalsByAgent(ctx context.Context, since time.Time) ([]usage.AgentTotals, error) {
	query := fmt.Sprintf(`
		SELECT
			agent,
			count()                      AS calls,
			countIf(NOT success)         AS failures,
			sum(toUInt64(prompt_tokens))     AS prompt_tokens,
			sum(toUInt64(completion_tokens)) AS completion_tokens,
			sum(cost_usd)                AS cost_usd,
			avg(latency_ms)              AS avg_latency_ms
		FROM %s
		WHERE created_at >= ?
		GROUP BY agent
		ORDER BY cost_usd DESC`, r.table)

	var totals []usage.AgentTotals
	if err := r.conn.Select(ctx, &totals, query, since); err != nil {
		return nil, errors.Wrap(err, "select usage totals")
	}
	return totals, nil
}

// RunCost returns the total spend recorded for one run
func (r *UsageRepository) RunCost(ctx context.Context, runID string) (float64, error) {
	query := fmt.Sprintf(`SELECT sum(cost_usd) FROM %s WHERE run_id = ?`, r.table)

	var cost float64
	if err := r.conn.QueryRow(ctx, query, runID).Scan(&cost); err != nil {
		return 0, errors.Wrapf(err, "select run cost for %s", runID)
	}
	return cost, nil
}
