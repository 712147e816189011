package dispatch

import "github.com/aws/aws-lambda-go/events"

// Envelope is one raw record of an inbound batch: an opaque text payload plus
// a delivery identifier used for logging correlation only.
type Envelope struct {
	MessageID string
	Payload   string
}

// EnvelopesFromSNS converts an SNS Lambda event into an ordered envelope
// batch. Record order is preserved.
func EnvelopesFromSNS(event events.SNSEvent) []Envelope {
	envelopes := make([]Envelope, 0, len(event.Records))
	for _, record := range event.Records {
		envelopes = append(envelopes, Envelope{
			MessageID: record.SNS.MessageID,
			Payload:   record.SNS.Message,
		})
	}
	return envelopes
}

// EnvelopesFromSQS converts an SQS Lambda event into an ordered envelope
// batch. Record order is preserved.
func EnvelopesFromSQS(event events.SQSEvent) []Envelope {
	envelopes := make([]Envelope, 0, len(event.Records))
	for _, record := range event.Records {
		envelopes = append(envelopes, Envelope{
			MessageID: record.MessageId,
			Payload:   record.Body,
		})
	}
	return envelopes
}
