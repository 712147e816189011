package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"mailroom/internal/mail"
)

type mockSNSAPI struct {
	publishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *mockSNSAPI) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.publishFunc(ctx, params, optFns...)
}

func TestPublish(t *testing.T) {
	var captured *sns.PublishInput
	api := &mockSNSAPI{
		publishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{MessageId: aws.String("sns-msg-1")}, nil
		},
	}
	publisher := NewPublisher(api, "arn:aws:sns:eu-west-1:123:email-topic", nil)

	msg := &mail.DirectMessage{
		MessageBase: mail.MessageBase{
			Sender: "noreply@example.com",
			To:     []string{"user@example.com"},
		},
		Subject:  "Hello",
		TextBody: "Hi",
	}

	msgID, err := publisher.Publish(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgID != "sns-msg-1" {
		t.Errorf("message id = %q", msgID)
	}

	if captured == nil {
		t.Fatal("Publish was not called")
	}
	if *captured.TopicArn != "arn:aws:sns:eu-west-1:123:email-topic" {
		t.Errorf("topic = %q", *captured.TopicArn)
	}

	attr, ok := captured.MessageAttributes["correlation_id"]
	if !ok {
		t.Fatal("correlation_id attribute missing")
	}
	if *attr.DataType != "String" || *attr.StringValue == "" {
		t.Errorf("correlation_id attribute = %+v", attr)
	}

	// The published body must round-trip through the worker's classifier.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*captured.Message), &raw); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if _, ok := raw["Template"]; ok {
		t.Error("direct message body must not carry a Template key")
	}
	if string(raw["Sender"]) != `"noreply@example.com"` {
		t.Errorf("Sender = %s", raw["Sender"])
	}
}

func TestPublish_TemplatedBodyCarriesTemplateKey(t *testing.T) {
	var captured *sns.PublishInput
	api := &mockSNSAPI{
		publishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{MessageId: aws.String("id")}, nil
		},
	}
	publisher := NewPublisher(api, "arn:topic", nil)

	msg := &mail.TemplatedMessage{
		MessageBase: mail.MessageBase{
			Sender: "noreply@example.com",
			To:     []string{"user@example.com"},
		},
		Subject:    "Welcome",
		Template:   "welcome",
		Parameters: map[string]string{"name": "Jane"},
	}

	if _, err := publisher.Publish(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*captured.Message), &raw); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if string(raw["Template"]) != `"welcome"` {
		t.Errorf("Template = %s", raw["Template"])
	}
}

func TestPublish_Failure(t *testing.T) {
	api := &mockSNSAPI{
		publishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("access denied")
		},
	}
	publisher := NewPublisher(api, "arn:topic", nil)

	msg := &mail.DirectMessage{
		MessageBase: mail.MessageBase{Sender: "a@b.com", To: []string{"c@d.com"}},
		Subject:     "x",
	}

	if _, err := publisher.Publish(context.Background(), msg); err == nil {
		t.Error("expected error, got nil")
	}
}
