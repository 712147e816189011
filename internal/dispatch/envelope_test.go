package dispatch

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestEnvelopesFromSNS(t *testing.T) {
	event := events.SNSEvent{
		Records: []events.SNSEventRecord{
			{SNS: events.SNSEntity{MessageID: "m1", Message: "payload-1"}},
			{SNS: events.SNSEntity{MessageID: "m2", Message: "payload-2"}},
			{SNS: events.SNSEntity{MessageID: "m3", Message: "payload-3"}},
		},
	}

	envelopes := EnvelopesFromSNS(event)
	if len(envelopes) != 3 {
		t.Fatalf("got %d envelopes, want 3", len(envelopes))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if envelopes[i].MessageID != want {
			t.Errorf("envelope[%d].MessageID = %q, want %q", i, envelopes[i].MessageID, want)
		}
	}
	if envelopes[0].Payload != "payload-1" {
		t.Errorf("payload = %q", envelopes[0].Payload)
	}
}

func TestEnvelopesFromSQS(t *testing.T) {
	event := events.SQSEvent{
		Records: []events.SQSMessage{
			{MessageId: "q1", Body: "body-1"},
			{MessageId: "q2", Body: "body-2"},
		},
	}

	envelopes := EnvelopesFromSQS(event)
	if len(envelopes) != 2 {
		t.Fatalf("got %d envelopes, want 2", len(envelopes))
	}
	if envelopes[0].MessageID != "q1" || envelopes[0].Payload != "body-1" {
		t.Errorf("envelope[0] = %+v", envelopes[0])
	}
	if envelopes[1].MessageID != "q2" || envelopes[1].Payload != "body-2" {
		t.Errorf("envelope[1] = %+v", envelopes[1])
	}
}

func TestEnvelopesFromSNS_Empty(t *testing.T) {
	if got := EnvelopesFromSNS(events.SNSEvent{}); len(got) != 0 {
		t.Errorf("got %d envelopes, want 0", len(got))
	}
}
