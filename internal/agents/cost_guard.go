package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
)

// CostGuard enforces hard limits on AI spending. A nil guard allows everything.
type CostGuard struct {
	maxCostPerRun decimal.Decimal
	maxDailyCost  decimal.Decimal
	cache         CostCache
	log           *logger.Logger
	now           func() time.Time
}

// CostCache provides shared daily spending across instances (typically Redis)
type CostCache interface {
	GetDailySpending(ctx context.Context, day string) (decimal.Decimal, error)
	IncrementSpending(ctx context.Context, day string, amount decimal.Decimal, ttl time.Duration) error
}

// NewCostGuard creates a guard. A zero limit disables that check; the daily
// limit also needs a cache.
func NewCostGuard(maxCostPerRun, maxDailyCost decimal.Decimal, cache CostCache) *CostGuard {
	return &CostGuard{
		maxCostPerRun: maxCostPerRun,
		maxDailyCost:  maxDailyCost,
		cache:         cache,
		log:           logger.Get().With("component", "cost_guard"),
		now:           time.Now,
	}
}

// Check fails with ErrQuotaExceeded when the run or the day is over budget.
// It runs before every external call.
func (cg *CostGuard) Check(ctx context.Context) error {
	if cg == nil {
		return nil
	}

	if cg.maxCostPerRun.IsPositive() {
		if tracker := CostTrackerFromContext(ctx); tracker != nil {
			spent := decimal.NewFromFloat(tracker.TotalCost())
			if spent.GreaterThanOrEqual(cg.maxCostPerRun) {
				cg.log.Warnf("Run cost limit reached: $%s / $%s", spent.StringFixed(4), cg.maxCostPerRun.StringFixed(2))
				return errors.Wrapf(errors.ErrQuotaExceeded,
					"run cost limit exceeded: $%s / $%s",
					spent.StringFixed(4), cg.maxCostPerRun.StringFixed(2))
			}
		}
	}

	return cg.checkDaily(ctx)
}

func (cg *CostGuard) checkDaily(ctx context.Context) error {
	if !cg.maxDailyCost.IsPositive() || cg.cache == nil {
		return nil
	}

	spending, err := cg.cache.GetDailySpending(ctx, cg.day())
	if err != nil {
		// Cache outage must not stop runs
		cg.log.Errorf("Failed to get daily spending from cache: %v", err)
		return nil
	}

	if spending.GreaterThanOrEqual(cg.maxDailyCost) {
		cg.log.Warnf("Daily cost limit reached: $%s / $%s", spending.StringFixed(2), cg.maxDailyCost.StringFixed(2))
		return errors.Wrapf(errors.ErrQuotaExceeded,
			"daily AI cost limit exceeded: $%s / $%s",
			spending.StringFixed(2), cg.maxDailyCost.StringFixed(2))
	}

	threshold := cg.maxDailyCost.Mul(decimal.NewFromFloat(0.80))
	if spending.GreaterThanOrEqual(threshold) {
		cg.log.Warnf("Approaching daily cost limit: $%s / $%s (80%% threshold)",
			spending.StringFixed(2), cg.maxDailyCost.StringFixed(2))
	}
	return nil
}

// RecordCost adds the cost of a finished attempt to the shared daily total
func (cg *CostGuard) RecordCost(ctx context.Context, cost float64) {
	if cg == nil || cg.cache == nil || cost <= 0 {
		return
	}
	if err := cg.cache.IncrementSpending(ctx, cg.day(), decimal.NewFromFloat(cost), 48*time.Hour); err != nil {
		cg.log.Errorf("Failed to increment daily spending: %v", err)
	}
}

// RemainingDailyBudget returns how much of today's budget is left
func (cg *CostGuard) RemainingDailyBudget(ctx context.Context) (decimal.Decimal, error) {
	if cg == nil || cg.cache == nil {
		return decimal.Zero, errors.Wrap(errors.ErrUnavailable, "no daily cost cache configured")
	}
	spending, err := cg.cache.GetDailySpending(ctx, cg.day())
	if err != nil {
		return decimal.Zero, err
	}
	remaining := cg.maxDailyCost.Sub(spending)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return remaining, nil
}

func (cg *CostGuard) day() string {
	return cg.now().UTC().Format("2006-01-02")
}

// RedisCostCache implements CostCache using Redis
type RedisCostCache struct {
	redis RedisClient
}

// RedisClient is the slice of the Redis adapter the cost cache needs
type RedisClient interface {
	GetString(ctx context.Context, key string) (string, error)
	IncrByFloat(ctx context.Context, key string, value float64) (float64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// NewRedisCostCache creates a Redis-backed cost cache
func NewRedisCostCache(redis RedisClient) *RedisCostCache {
	return &RedisCostCache{redis: redis}
}

func dailyKey(day string) string {
	return fmt.Sprintf("prodigy:cost:daily:%s", day)
}

// GetDailySpending retrieves daily spending from Redis
func (rc *RedisCostCache) GetDailySpending(ctx context.Context, day string) (decimal.Decimal, error) {
	val, err := rc.redis.GetString(ctx, dailyKey(day))
	if errors.Is(err, errors.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	spending, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid spending value %q", val)
	}
	return spending, nil
}

// IncrementSpending adds to daily spending using atomic increment
func (rc *RedisCostCache) IncrementSpending(ctx context.Context, day string, amount decimal.Decimal, ttl time.Duration) error {
	key := dailyKey(day)

	if _, err := rc.redis.IncrByFloat(ctx, key, amount.InexactFloat64()); err != nil {
		return errors.Wrapf(err, "failed to increment spending")
	}
	if err := rc.redis.Expire(ctx, key, ttl); err != nil {
		return errors.Wrapf(err, "failed to set TTL")
	}
	return nil
}
