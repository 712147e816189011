package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names and dimensions emitted by the dispatcher.
const (
	metricDispatchAttempt = "DispatchAttempt"
	metricDispatchLatency = "DispatchLatency"
	dimOutcome            = "Outcome"
)

// Metrics records dispatch telemetry. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// RecordOutcome counts one terminal record outcome.
	RecordOutcome(ctx context.Context, status OutcomeStatus)

	// RecordLatency records the wall-clock time a record spent in the
	// classify → resolve → send pipeline.
	RecordLatency(ctx context.Context, duration time.Duration)
}

// CloudWatchAPI abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics implements Metrics by emitting metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - DispatchAttempt: Dims {Outcome}, one per record outcome
//   - DispatchLatency: no dims, per-record pipeline duration
//
// Publication failures are logged and otherwise ignored; telemetry must
// never affect delivery.
type CloudWatchMetrics struct {
	client    CloudWatchAPI
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to the given
// namespace.
func NewCloudWatchMetrics(client CloudWatchAPI, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordOutcome emits a DispatchAttempt metric with the Outcome dimension.
func (m *CloudWatchMetrics) RecordOutcome(ctx context.Context, status OutcomeStatus) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricDispatchAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(dimOutcome),
						Value: aws.String(string(status)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record outcome metric",
			"error", err,
			"outcome", string(status),
		)
	}
}

// RecordLatency emits a DispatchLatency metric in milliseconds.
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricDispatchLatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record latency metric",
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// NoopMetrics discards all telemetry. Used in local mode and tests.
type NoopMetrics struct{}

func (NoopMetrics) RecordOutcome(ctx context.Context, status OutcomeStatus)    {}
func (NoopMetrics) RecordLatency(ctx context.Context, duration time.Duration) {}

// Compile-time assertions.
var (
	_ Metrics = (*CloudWatchMetrics)(nil)
	_ Metrics = NoopMetrics{}
)
