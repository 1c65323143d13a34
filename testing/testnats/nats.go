// Package testnats runs a throwaway NATS server for event publisher tests.
package testnats

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Younus004/wisdom/internal/events"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image      = "nats:2.10-alpine"
	clientPort = "4222/tcp"
)

var (
	sharedServer *Server
	sharedOnce   sync.Once
)

type Server struct {
	Container testcontainers.Container
	URL       string
}

// SetupShared starts one NATS server per test binary. Tests using it must
// not run in parallel, since subscriptions share subjects.
func SetupShared(t *testing.T) *Server {
	t.Helper()

	sharedOnce.Do(func() {
		ctx := context.Background()

		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        image,
				ExposedPorts: []string{clientPort},
				WaitingFor:   wait.ForListeningPort(clientPort).WithStartupTimeout(30 * time.Second),
			},
			Started: true,
		})
		require.NoError(t, err)

		endpoint, err := c.PortEndpoint(ctx, clientPort, "nats")
		require.NoError(t, err)

		sharedServer = &Server{Container: c, URL: endpoint}
	})

	return sharedServer
}

func (s *Server) Cleanup(t *testing.T) {
	t.Helper()
	if s.Container == nil {
		return
	}
	if err := s.Container.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate NATS container: %s", err)
	}
}

// Capture subscribes to subject (wildcards allowed) and decodes every
// message as an events.Event. The subscription is live when Capture returns.
func (s *Server) Capture(t *testing.T, subject string) <-chan events.Event {
	t.Helper()

	conn, err := nats.Connect(s.URL)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	out := make(chan events.Event, 16)
	_, err = conn.Subscribe(subject, func(msg *nats.Msg) {
		var e events.Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			t.Errorf("undecodable event on %s: %v", msg.Subject, err)
			return
		}
		out <- e
	})
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	return out
}
