package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Younus004/wisdom/common/telemetry"

	"github.com/stretchr/testify/assert"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestAbort_ReleasesResourcesAndMeterProvider(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	a := &App{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		telemetry: &telemetry.Telemetry{
			MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		},
	}

	var closed []string
	a.onClose("database", func() error { closed = append(closed, "database"); return nil })
	a.onClose("redis", func() error { closed = append(closed, "redis"); return nil })

	a.abort(ctx)

	assert.Equal(t, []string{"redis", "database"}, closed)
	var rm metricdata.ResourceMetrics
	assert.ErrorIs(t, reader.Collect(ctx, &rm), sdkmetric.ErrReaderShutdown)
	assert.Nil(t, a.telemetry)
}
