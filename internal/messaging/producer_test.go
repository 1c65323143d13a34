package messaging_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Younus004/wisdom/internal/events"
	"github.com/Younus004/wisdom/internal/messaging"
	"github.com/Younus004/wisdom/testing/testnats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_Subject(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "wisdom.front_office", want: "wisdom.front_office.payment.recorded"},
		{prefix: "", want: "payment.recorded"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p := messaging.NewWithConn(nil, tt.prefix, slog.Default(), nil)
			assert.Equal(t, tt.want, p.Subject(events.PaymentRecorded))
		})
	}
}

func TestProducerWithNATSContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping NATS container test in short mode")
	}

	server := testnats.SetupShared(t)
	defer server.Cleanup(t)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	t.Run("Publish_RoutesByEventType", func(t *testing.T) {
		producer, err := messaging.NewProducer(server.URL, "test.front_office", logger, nil)
		require.NoError(t, err)
		defer producer.Close()

		payments := server.Capture(t, "test.front_office.payment.*")

		err = producer.Publish(context.Background(), events.New(events.PaymentRecorded, "0001", map[string]any{"amount": 4000}))
		require.NoError(t, err)

		select {
		case e := <-payments:
			assert.Equal(t, events.PaymentRecorded, e.Type)
			assert.Equal(t, "0001", e.Key)
		case <-time.After(2 * time.Second):
			t.Fatal("event not received on NATS within timeout")
		}
	})
}
