package mail

import (
	"bytes"
	"encoding/json"

	"mailroom/internal/types"
)

// Classify decodes a raw event payload into one of the two message variants.
//
// The variants share no field that alone determines shape; the discriminator
// is the mere presence of the optional "Template" key. Classification is
// therefore two-phase: the payload is first parsed as a generic key-probeable
// document, then strictly decoded into the matching variant. Both variant
// decoders are total: any malformed input (bad JSON, unknown fields, wrong
// value types, missing required fields) yields a clean decode error, never a
// partially constructed message.
//
// Classification is a pure function of key presence. The value under
// "Template" is irrelevant at this stage; TemplatedMessage.Validate rejects
// an empty key afterwards.
func Classify(payload []byte) (Message, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, types.NewAppError(types.ErrCodeMessageDecode, "payload is not a JSON object", err)
	}

	var msg Message
	if _, ok := probe["Template"]; ok {
		msg = &TemplatedMessage{}
	} else {
		msg = &DirectMessage{}
	}

	if err := decodeStrict(payload, msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// decodeStrict decodes payload into dst, rejecting unknown fields and
// trailing JSON values.
func decodeStrict(payload []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return types.NewAppError(types.ErrCodeMessageDecode, "payload does not match the message contract", err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeMessageDecode, "payload must contain a single JSON object", nil)
	}
	return nil
}
