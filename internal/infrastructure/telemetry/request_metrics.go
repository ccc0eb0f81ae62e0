package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics collector is built without a meter
var ErrMeterNil = errors.New("meter must not be nil")

// DeadLetterProvider reports how many requests are parked in the dead
// letter state. Implemented by the request repository.
type DeadLetterProvider interface {
	CountDeadLetters(ctx context.Context) (int64, error)
}

// RequestMetrics tracks request lifecycle activity
type RequestMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	submittedTotal  metric.Int64Counter
	transitionTotal metric.Int64Counter
	dispatchTotal   metric.Int64Counter
	dispatchSeconds metric.Float64Histogram

	deadLetterGauge metric.Int64ObservableGauge
}

// RequestMetricsConfig holds configuration for request metrics
type RequestMetricsConfig struct {
	Meter              metric.Meter
	Logger             *zap.Logger
	DeadLetterProvider DeadLetterProvider
}

// NewRequestMetrics creates a new RequestMetrics instance
func NewRequestMetrics(cfg RequestMetricsConfig) (*RequestMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rm := &RequestMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	rm.submittedTotal, err = cfg.Meter.Int64Counter(
		"fieldbridge_request_submitted_total",
		metric.WithDescription("Total number of service requests submitted"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	rm.transitionTotal, err = cfg.Meter.Int64Counter(
		"fieldbridge_request_transition_total",
		metric.WithDescription("Total number of request state transitions"),
		metric.WithUnit("{transitions}"),
	)
	if err != nil {
		return nil, err
	}

	rm.dispatchTotal, err = cfg.Meter.Int64Counter(
		"fieldbridge_dispatch_total",
		metric.WithDescription("Total number of ERP dispatch attempts"),
		metric.WithUnit("{dispatches}"),
	)
	if err != nil {
		return nil, err
	}

	rm.dispatchSeconds, err = cfg.Meter.Float64Histogram(
		"fieldbridge_dispatch_duration_seconds",
		metric.WithDescription("ERP dispatch attempt duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	if cfg.DeadLetterProvider != nil {
		if err := rm.registerDeadLetterGauge(cfg.DeadLetterProvider); err != nil {
			return nil, err
		}
	}

	return rm, nil
}

func (rm *RequestMetrics) registerDeadLetterGauge(provider DeadLetterProvider) error {
	gauge, err := rm.meter.Int64ObservableGauge(
		"fieldbridge_dead_letter_count",
		metric.WithDescription("Requests currently parked in the dead letter state"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return err
	}
	rm.deadLetterGauge = gauge

	_, err = rm.meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		count, err := provider.CountDeadLetters(ctx)
		if err != nil {
			rm.logger.Warn("Failed to collect dead letter count", zap.Error(err))
			return nil
		}
		o.ObserveInt64(gauge, count)
		return nil
	}, gauge)
	return err
}

// RecordSubmitted records one submitted request
func (rm *RequestMetrics) RecordSubmitted(ctx context.Context, kind string) {
	rm.submittedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordTransition records one state transition
func (rm *RequestMetrics) RecordTransition(ctx context.Context, fromState, toState string) {
	rm.transitionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from_state", fromState),
		attribute.String("to_state", toState),
	))
}

// RecordDispatch records one ERP dispatch attempt and its outcome
func (rm *RequestMetrics) RecordDispatch(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	rm.dispatchTotal.Add(ctx, 1, attrs)
	rm.dispatchSeconds.Record(ctx, elapsed.Seconds(), attrs)
}
