package ingestion

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// InboundMessage is a webhook payload that passed validation.
type InboundMessage struct {
	MessageID string
	From      string
	To        string
	Ts        time.Time
	Text      string
}

// FieldError reports which payload field failed validation and why. It is a
// typed result, not a panic path: malformed client input is an expected
// outcome.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field '%s': %s", e.Field, e.Reason)
}

// Phone numbers: optional leading +, then 7-15 digits. No spaces or letters.
var msisdnPattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

const maxTextLength = 4096

// ParsePayload parses the raw webhook body and validates every field. The
// raw bytes have already been authenticated by the time this runs.
func ParsePayload(raw []byte) (*InboundMessage, *FieldError) {
	var body struct {
		MessageID *string `json:"message_id"`
		From      *string `json:"from"`
		To        *string `json:"to"`
		Ts        *string `json:"ts"`
		Text      *string `json:"text"`
	}

	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &FieldError{Field: "body", Reason: "body must be a JSON object"}
	}

	if body.MessageID == nil || *body.MessageID == "" {
		return nil, &FieldError{Field: "message_id", Reason: "message_id is required and must be non-empty"}
	}

	if err := validateMsisdn("from", body.From); err != nil {
		return nil, err
	}
	if err := validateMsisdn("to", body.To); err != nil {
		return nil, err
	}

	if body.Ts == nil {
		return nil, &FieldError{Field: "ts", Reason: "ts is required"}
	}
	// RFC 3339 requires an explicit zone designator, so a bare local
	// timestamp is rejected here.
	ts, err := time.Parse(time.RFC3339, *body.Ts)
	if err != nil {
		return nil, &FieldError{Field: "ts", Reason: "ts must be an ISO-8601 timestamp with an explicit timezone"}
	}

	text := ""
	if body.Text != nil {
		text = *body.Text
	}
	if len(text) > maxTextLength {
		return nil, &FieldError{Field: "text", Reason: fmt.Sprintf("text must not exceed %d bytes", maxTextLength)}
	}

	return &InboundMessage{
		MessageID: *body.MessageID,
		From:      *body.From,
		To:        *body.To,
		Ts:        ts,
		Text:      text,
	}, nil
}

func validateMsisdn(field string, value *string) *FieldError {
	if value == nil || *value == "" {
		return &FieldError{Field: field, Reason: field + " is required"}
	}
	if !msisdnPattern.MatchString(*value) {
		return &FieldError{Field: field, Reason: field + " must be an optional + followed by 7-15 digits"}
	}
	return nil
}
