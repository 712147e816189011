// Package queue provides the SNS-based message producer for dispatching email
// payloads to the delivery worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	"mailroom/internal/mail"
)

// SNSAPI abstracts the SNS Publish operation for testability.
// Production code uses the *sns.Client from aws-sdk-go-v2.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher serializes email messages and publishes them to the delivery
// topic. The worker Lambda subscribes to this topic and performs the actual
// classification and send.
type Publisher struct {
	client   SNSAPI
	topicARN string
	logger   *slog.Logger
}

// NewPublisher creates a Publisher targeting the given topic ARN.
func NewPublisher(client SNSAPI, topicARN string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
	}
}

// Publish serializes the message to JSON and publishes it to the delivery
// topic. A correlation ID is attached as a message attribute so the worker
// logs can be joined with the producer's.
func (p *Publisher) Publish(ctx context.Context, msg mail.Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("queue: failed to marshal message: %w", err)
	}

	correlationID := uuid.NewString()

	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"correlation_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(correlationID),
			},
		},
	}

	result, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("queue: failed to publish to %s: %w", p.topicARN, err)
	}

	msgID := ""
	if result.MessageId != nil {
		msgID = *result.MessageId
	}

	p.logger.InfoContext(ctx, "email message published",
		"topic_arn", p.topicARN,
		"message_id", msgID,
		"correlation_id", correlationID,
		"kind", string(msg.Kind()),
	)

	return msgID, nil
}
