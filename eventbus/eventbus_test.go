package eventbus

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	testRedisClient    *redis.Client
	testRedisContainer *tcredis.RedisContainer
	skipIntegration    bool
)

// TestMain starts a single Redis container for the package, mirroring
// registry/health_tracker_integration_test.go's container-per-package
// lifecycle, through the dedicated testcontainers redis module rather than
// a hand-built testcontainers.ContainerRequest, since a purpose-built
// module is available for Redis in this pack's dependency set.
func TestMain(m *testing.M) {
	ctx := context.Background()

	rc, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Printf("Docker not available, integration tests will be skipped: %v\n", err)
		skipIntegration = true
	} else {
		testRedisContainer = rc
		connStr, err := rc.ConnectionString(ctx)
		if err != nil {
			skipIntegration = true
		} else {
			testRedisClient = redis.NewClient(&redis.Options{Addr: connStr[len("redis://"):]})
			if err := testRedisClient.Ping(ctx).Err(); err != nil {
				skipIntegration = true
			}
		}
	}

	code := m.Run()

	if testRedisClient != nil {
		_ = testRedisClient.Close()
	}
	if testRedisContainer != nil {
		_ = testRedisContainer.Terminate(ctx)
	}
	os.Exit(code)
}

func getRedis(t *testing.T) *redis.Client {
	t.Helper()
	if skipIntegration {
		t.Skip("Docker not available, skipping integration test")
	}
	return testRedisClient
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	rdb := getRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := New(Options{Redis: rdb, Channel: "pluto.events.test." + t.Name()})
	require.NoError(t, err)

	events, closeSub, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer closeSub()

	// Pub/sub subscription establishment is asynchronous; give Redis a
	// moment before publishing, matching the teacher's own pattern of
	// polling/short-sleeping around async pub/sub setup.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, Event{RunID: "run-1", Kind: KindSpawn, Subject: "task-1"}))

	select {
	case e := <-events:
		require.Equal(t, "run-1", e.RunID)
		require.Equal(t, KindSpawn, e.Kind)
		require.Equal(t, "task-1", e.Subject)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for published event")
	}
}

func TestPublishRejectsMissingRunID(t *testing.T) {
	rdb := getRedis(t)
	b, err := New(Options{Redis: rdb, Channel: "pluto.events.test." + t.Name()})
	require.NoError(t, err)
	err = b.Publish(context.Background(), Event{Kind: KindDone})
	require.Error(t, err)
}
