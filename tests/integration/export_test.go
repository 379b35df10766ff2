package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/formsite-tools/formsite-export/internal/testutil"
	"github.com/formsite-tools/formsite-export/pkg/cache"
	"github.com/formsite-tools/formsite-export/pkg/client"
	"github.com/formsite-tools/formsite-export/pkg/fetch"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newTestClient(t *testing.T, baseURL string) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{Token: "test-token", BaseURL: baseURL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func fastConfig() fetch.Config {
	return fetch.Config{
		RateLimitCooldown: 10 * time.Millisecond,
		NetworkBackoff:    10 * time.Millisecond,
	}
}

// TestIncrementalExportFlow exercises the full cycle: fetch → cache in
// Redis → incremental fetch via after_id → merge.
func TestIncrementalExportFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockFormsite()
	defer mock.Close()

	manager := cache.NewManager(cache.NewRedisStore(redisClient))
	ctx := context.Background()

	// First run: two results, empty cache.
	mock.SetResultsPages("form1", []string{`{"results": [
		{"id": 2, "items": [{"id": "100", "value": "b"}]},
		{"id": 1, "items": [{"id": "100", "value": "a"}]}
	]}`})

	afterID, err := manager.AfterID(ctx, "form1")
	if err != nil {
		t.Fatalf("AfterID() error: %v", err)
	}
	if afterID != 0 {
		t.Fatalf("AfterID() = %d, want 0 on first run", afterID)
	}

	params := fetch.DefaultParams()
	params.AfterID = afterID
	ctrl := fetch.NewController(newTestClient(t, mock.URL()), "form1", params, fastConfig())

	tbl, err := ctrl.FetchTable(ctx)
	if err != nil {
		t.Fatalf("FetchTable() error: %v", err)
	}
	if _, err := manager.Update(ctx, "form1", tbl); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	// Second run: the cache points past result 2, the server has one
	// newer submission.
	afterID, err = manager.AfterID(ctx, "form1")
	if err != nil {
		t.Fatalf("AfterID() error: %v", err)
	}
	if afterID != 2 {
		t.Fatalf("AfterID() = %d, want 2 after first run", afterID)
	}

	mock.SetResultsPages("form1", []string{`{"results": [
		{"id": 3, "items": [{"id": "100", "value": "c"}]}
	]}`})

	params = fetch.DefaultParams()
	params.AfterID = afterID
	ctrl = fetch.NewController(newTestClient(t, mock.URL()), "form1", params, fastConfig())

	tbl, err = ctrl.FetchTable(ctx)
	if err != nil {
		t.Fatalf("FetchTable() error: %v", err)
	}

	merged, err := manager.Update(ctx, "form1", tbl)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if len(merged.Rows) != 3 {
		t.Fatalf("merged rows = %d, want 3", len(merged.Rows))
	}

	var ids []int64
	for _, row := range merged.Rows {
		ids = append(ids, row.ID)
	}
	if ids[0] != 3 || ids[1] != 2 || ids[2] != 1 {
		t.Errorf("merged ids = %v, want [3 2 1]", ids)
	}
}

func TestRedisStore_Roundtrip(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(redisClient)
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "unknown"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Get() = %v, want ErrCacheMiss", err)
	}

	if err := store.Put(ctx, "form1", []byte(`{"rows":[]}`), []byte(`{"form_id":"form1"}`)); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	data, meta, err := store.Get(ctx, "form1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(data) != `{"rows":[]}` {
		t.Errorf("data = %q", data)
	}
	if string(meta) != `{"form_id":"form1"}` {
		t.Errorf("meta = %q", meta)
	}
}
