package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Younus004/wisdom/common/metrics"
	"github.com/Younus004/wisdom/internal/events"

	"github.com/nats-io/nats.go"
)

// Producer publishes domain events on <prefix>.<event type>.
type Producer struct {
	conn    *nats.Conn
	prefix  string
	logger  *slog.Logger
	metrics *metrics.MessagingMetrics
}

func NewProducer(url string, prefix string, logger *slog.Logger, m *metrics.MessagingMetrics) (*Producer, error) {
	nc, err := nats.Connect(url, nats.Name("wisdom-front-office"))
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "prefix", prefix)

	return NewWithConn(nc, prefix, logger, m), nil
}

// NewWithConn wraps an established connection.
func NewWithConn(nc *nats.Conn, prefix string, logger *slog.Logger, m *metrics.MessagingMetrics) *Producer {
	return &Producer{
		conn:    nc,
		prefix:  prefix,
		logger:  logger,
		metrics: m,
	}
}

func (p *Producer) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *Producer) Publish(ctx context.Context, e events.Event) error {
	start := time.Now()
	subject := p.Subject(e.Type)

	valueBytes, err := json.Marshal(e)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal event", "error", err)
		return err
	}

	err = p.conn.Publish(subject, valueBytes)
	p.metrics.RecordPublish(ctx, subject, time.Since(start), err)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send event to NATS", "subject", subject, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "event sent to NATS", "subject", subject, "key", e.Key)
	return nil
}

func (p *Producer) Close() error {
	return p.conn.Drain()
}
