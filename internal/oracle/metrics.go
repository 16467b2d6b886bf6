package oracle

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type metrics struct {
	recommendations metric.Int64Counter
	flags           metric.Int64Counter
	winProbability  metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider, logger *zap.Logger) *metrics {
	meter := mp.Meter(instrumentationName)
	m := &metrics{}
	var err error

	m.recommendations, err = meter.Int64Counter(
		"wonquotes.oracle.recommendations_total",
		metric.WithDescription("Pricing recommendations by data quality"),
		metric.WithUnit("{recommendation}"),
	)
	if err != nil {
		logger.Warn("failed to create recommendations counter", zap.Error(err))
	}

	m.flags, err = meter.Int64Counter(
		"wonquotes.oracle.flags_total",
		metric.WithDescription("Advisory flags raised by pricing recommendations"),
		metric.WithUnit("{flag}"),
	)
	if err != nil {
		logger.Warn("failed to create flags counter", zap.Error(err))
	}

	m.winProbability, err = meter.Float64Histogram(
		"wonquotes.oracle.win_probability",
		metric.WithDescription("Win probability of the recommended tier"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95),
	)
	if err != nil {
		logger.Warn("failed to create win probability histogram", zap.Error(err))
	}
	return m
}

func (m *metrics) record(ctx context.Context, rec Recommendation) {
	if m.recommendations != nil {
		m.recommendations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("data_quality", string(rec.DataQuality))))
	}
	if m.flags != nil {
		for _, f := range rec.Flags {
			m.flags.Add(ctx, 1, metric.WithAttributes(attribute.String("flag", string(f))))
		}
	}
	if m.winProbability != nil && rec.Recommended != nil {
		m.winProbability.Record(ctx, rec.Recommended.WinProbability)
	}
}
