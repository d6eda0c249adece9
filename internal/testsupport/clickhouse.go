package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"prodigy/internal/adapters/clickhouse"
)

// ClickHouseTestHelper manages cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewTestClickHouse connects to the integration ClickHouse. Skips when it is not configured.
func NewTestClickHouse(t testing.TB) *ClickHouseTestHelper {
	t.Helper()
	cfg := ClickHouseConfigFromEnv(t)

	client, err := clickhouse.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return &ClickHouseTestHelper{client: client}
}

func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// CreateTempTable creates a uniquely named copy of the given DDL body and drops it after the test.
// The DDL body is everything after the table name, e.g. "(id UInt64) ENGINE = MergeTree() ORDER BY id".
func (h *ClickHouseTestHelper) CreateTempTable(t testing.TB, prefix, body string) string {
	t.Helper()

	table := fmt.Sprintf("%s_test_%d", prefix, time.Now().UnixNano())
	if err := h.client.Exec(context.Background(), fmt.Sprintf("CREATE TABLE %s %s", table, body)); err != nil {
		t.Fatalf("failed to create clickhouse table: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.client.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	})

	return table
}
