package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

// setupTestRedis starts a throwaway Redis container and returns a connected client.
func setupTestRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := Connect(ctx, zaptest.NewLogger(t), &goredis.Options{Addr: addr}, 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientKeyValue(t *testing.T) {
	c := setupTestRedis(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "charts:spacebudz:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "charts:spacebudz:a", []byte("payload"), time.Hour))
	got, ok, err := c.Get(ctx, "charts:spacebudz:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, c.Set(ctx, "charts:spacebudz:short", []byte("x"), 50*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "charts:spacebudz:short")
		return !ok
	}, 5*time.Second, 50*time.Millisecond)
}

func TestClientDeletePrefix(t *testing.T) {
	c := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 1200; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("charts:clay-nation:%d", i), []byte("v"), time.Hour))
	}
	require.NoError(t, c.Set(ctx, "charts:clay-nation-2:0", []byte("v"), time.Hour))
	require.NoError(t, c.Set(ctx, "charts:cl*y:0", []byte("v"), time.Hour))

	n, err := c.DeletePrefix(ctx, "charts:clay-nation:")
	require.NoError(t, err)
	assert.EqualValues(t, 1200, n)

	n, err = c.DeletePrefix(ctx, "charts:cl*")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "glob characters in the prefix match literally")

	_, ok, err := c.Get(ctx, "charts:clay-nation-2:0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStreamConsumerGroupRoundTrip(t *testing.T) {
	c := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sc, err := NewStreamConsumer(c, StreamConsumerConfig{
		Stream:   "charts:invalidations",
		Group:    "query",
		Consumer: "replica-1",
		Block:    100 * time.Millisecond,
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	received := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- sc.Run(ctx, func(_ context.Context, msg Message) error {
			received <- msg.GetCollection()
			return nil
		})
	}()

	// Wait for the group to exist before publishing so "$" does not skip the entries.
	require.Eventually(t, func() bool {
		groups, err := c.client.XInfoGroups(ctx, "charts:invalidations").Result()
		return err == nil && len(groups) == 1
	}, 10*time.Second, 50*time.Millisecond)

	_, err = c.XAdd(ctx, "charts:invalidations", map[string]interface{}{"collection": "spacebudz"})
	require.NoError(t, err)
	_, err = c.XAdd(ctx, "charts:invalidations", map[string]interface{}{"collection": "clay-nation"})
	require.NoError(t, err)

	assert.Equal(t, "spacebudz", <-received)
	assert.Equal(t, "clay-nation", <-received)

	require.Eventually(t, func() bool {
		pending, err := c.client.XPending(ctx, "charts:invalidations", "query").Result()
		return err == nil && pending.Count == 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
