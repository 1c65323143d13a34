package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HealthMetrics exports the outcome of readiness checks: one up/down gauge
// per dependency plus the check latency.
type HealthMetrics struct {
	dependencyUp  metric.Int64ObservableGauge
	checkDuration metric.Float64Histogram
	serviceInfo   metric.Int64ObservableGauge

	mu     sync.Mutex
	status map[string]bool
}

func NewHealthMetrics(meter metric.Meter) (*HealthMetrics, error) {
	hm := &HealthMetrics{status: make(map[string]bool)}

	var err error

	hm.dependencyUp, err = meter.Int64ObservableGauge(
		"dependency.up",
		metric.WithDescription("Dependency availability at the last readiness check (1=up, 0=down)"),
		metric.WithUnit("{status}"),
	)
	if err != nil {
		return nil, err
	}

	hm.checkDuration, err = meter.Float64Histogram(
		"dependency.check_duration",
		metric.WithDescription("Readiness check latency per dependency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(queryBuckets...),
	)
	if err != nil {
		return nil, err
	}

	hm.serviceInfo, err = meter.Int64ObservableGauge(
		"service.info",
		metric.WithDescription("Always 1, carries build metadata as attributes"),
		metric.WithUnit("{info}"),
	)
	if err != nil {
		return nil, err
	}

	return hm, nil
}

// Register starts observing the gauges. dependencies are reported down until
// their first successful check.
func (hm *HealthMetrics) Register(meter metric.Meter, serviceName, version, env string, dependencies ...string) error {
	hm.mu.Lock()
	for _, d := range dependencies {
		hm.status[d] = false
	}
	hm.mu.Unlock()

	info := metric.WithAttributes(
		attribute.String("service_name", serviceName),
		attribute.String("version", version),
		attribute.String("environment", env),
	)

	_, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			observer.ObserveInt64(hm.serviceInfo, 1, info)

			hm.mu.Lock()
			defer hm.mu.Unlock()
			for name, up := range hm.status {
				var v int64
				if up {
					v = 1
				}
				observer.ObserveInt64(hm.dependencyUp, v, metric.WithAttributes(attribute.String("dependency", name)))
			}
			return nil
		},
		hm.dependencyUp,
		hm.serviceInfo,
	)
	return err
}

func (hm *HealthMetrics) RecordCheck(ctx context.Context, dependency string, duration time.Duration, err error) {
	if hm == nil {
		return
	}
	hm.mu.Lock()
	if hm.status == nil {
		hm.status = make(map[string]bool)
	}
	hm.status[dependency] = err == nil
	hm.mu.Unlock()

	if hm.checkDuration != nil {
		hm.checkDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("dependency", dependency)))
	}
}

// Up reports the last observed status of dependency.
func (hm *HealthMetrics) Up(dependency string) bool {
	if hm == nil {
		return false
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.status[dependency]
}
