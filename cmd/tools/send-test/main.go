// Package main implements the send-test CLI tool for publishing test email
// messages to the delivery SNS topic.
//
// Usage:
//
//	go run ./cmd/tools/send-test \
//	  --topic-arn=arn:aws:sns:eu-west-1:123456789012:mailroom-email \
//	  --sender=noreply@example.com --to=user@example.com \
//	  --subject="Hello" --html-body="<p>Hi</p>"
//
//	go run ./cmd/tools/send-test \
//	  --topic-arn=... --sender=noreply@example.com --to=user@example.com \
//	  --subject="Welcome" --template=welcome --param=name=Jane
//
// Environment variables (used as defaults when flags are not set):
//
//	EMAIL_TOPIC_ARN  - SNS topic ARN for the delivery topic
//	AWS_REGION       - AWS region (default eu-west-1)
//
// The tool constructs a direct or templated message (templated when
// --template is set), publishes it via the queue.Publisher, and prints the
// SNS message ID.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"mailroom/internal/mail"
	"mailroom/internal/queue"
)

// paramFlags collects repeated --param=name=value flags.
type paramFlags map[string]string

func (p paramFlags) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (p paramFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", value)
	}
	p[name] = val
	return nil
}

func main() {
	topicARN := flag.String("topic-arn", os.Getenv("EMAIL_TOPIC_ARN"), "SNS topic ARN (or EMAIL_TOPIC_ARN env)")
	region := flag.String("region", os.Getenv("AWS_REGION"), "AWS region (or AWS_REGION env)")
	sender := flag.String("sender", "", "Sender address (required)")
	to := flag.String("to", "", "Comma-separated recipient addresses (required)")
	cc := flag.String("cc", "", "Comma-separated CC addresses")
	subject := flag.String("subject", "", "Message subject")
	htmlBody := flag.String("html-body", "", "HTML body for a direct message")
	textBody := flag.String("text-body", "", "Plaintext body for a direct message")
	template := flag.String("template", "", "Template key; when set, a templated message is published")
	priority := flag.Int("priority", int(mail.PriorityNormal), "Priority: 0=normal, 1=low, 2=high")

	params := paramFlags{}
	flag.Var(params, "param", "Template parameter as name=value (repeatable)")

	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *topicARN == "" {
		logger.Error("--topic-arn or EMAIL_TOPIC_ARN is required")
		os.Exit(1)
	}
	if *sender == "" {
		logger.Error("--sender is required")
		os.Exit(1)
	}
	if *to == "" {
		logger.Error("--to is required")
		os.Exit(1)
	}
	if *region == "" {
		*region = "eu-west-1"
	}

	base := mail.MessageBase{
		Sender:   *sender,
		To:       splitList(*to),
		CC:       splitList(*cc),
		Priority: mail.Priority(*priority),
		SentDate: time.Now().UTC(),
	}

	var msg mail.Message
	if *template != "" {
		msg = &mail.TemplatedMessage{
			MessageBase: base,
			Subject:     *subject,
			Template:    *template,
			Parameters:  params,
		}
	} else {
		msg = &mail.DirectMessage{
			MessageBase: base,
			Subject:     *subject,
			HTMLBody:    *htmlBody,
			TextBody:    *textBody,
		}
	}

	if err := msg.Validate(); err != nil {
		logger.Error("message failed validation", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(*region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	publisher := queue.NewPublisher(sns.NewFromConfig(awsCfg), *topicARN, logger)

	msgID, err := publisher.Publish(ctx, msg)
	if err != nil {
		logger.Error("publish failed", "error", err)
		os.Exit(1)
	}

	fmt.Println(msgID)
}

// splitList splits a comma-separated flag value into trimmed entries,
// dropping empties. Returns nil for an empty input.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
