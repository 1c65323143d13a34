// Package testredis runs a throwaway Redis for cache tests.
package testredis

import (
	"context"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const port = "6379/tcp"

var (
	shared     *Redis
	sharedOnce sync.Once
)

type Redis struct {
	Container testcontainers.Container
	Addr      string
}

// SetupShared starts one Redis per test binary.
func SetupShared(t *testing.T) *Redis {
	t.Helper()

	sharedOnce.Do(func() {
		ctx := context.Background()
		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{port},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		require.NoError(t, err)

		addr, err := c.PortEndpoint(ctx, port, "")
		require.NoError(t, err)

		shared = &Redis{Container: c, Addr: addr}
	})

	return shared
}

// Client returns a connected client on a fresh logical database state.
func (r *Redis) Client(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: r.Addr})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func (r *Redis) Cleanup(t *testing.T) {
	t.Helper()
	if r.Container == nil {
		return
	}
	if err := r.Container.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate redis container: %s", err)
	}
}
