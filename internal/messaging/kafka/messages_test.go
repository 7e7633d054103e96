package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
)

func TestRequestTopicFor(t *testing.T) {
	topic, err := RequestTopicFor(domain.ParticipantCustomer)
	if err != nil || topic != TopicCustomerValidation {
		t.Fatalf("unexpected customer topic: %s, %v", topic, err)
	}
	topic, err = RequestTopicFor(domain.ParticipantProduct)
	if err != nil || topic != TopicProductValidation {
		t.Fatalf("unexpected product topic: %s, %v", topic, err)
	}
	if _, err := RequestTopicFor(domain.ParticipantKind("payment")); !errors.Is(err, domain.ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}

func TestReplyTopicForInstance(t *testing.T) {
	if got := ReplyTopicForInstance("a1b2c3d4"); got != "order_response.a1b2c3d4" {
		t.Fatalf("unexpected instance reply topic: %s", got)
	}
}

func TestRequestCodec_RoundTrip(t *testing.T) {
	req := domain.ValidationRequest{
		CorrelationID: "cid-1",
		ReplyTo:       "order_response.test",
		Kind:          domain.ParticipantProduct,
		Product:       &domain.ProductRef{ProductID: 202, Qty: 5},
	}

	payload, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// Wire-формат несёт версию схемы и tagged subject.
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if raw["schema_version"].(float64) != SchemaVersion {
		t.Fatalf("unexpected schema version in payload: %v", raw["schema_version"])
	}

	decoded, err := DecodeRequest(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.CorrelationID != req.CorrelationID || decoded.ReplyTo != req.ReplyTo {
		t.Fatalf("decoded request mismatch: %+v", decoded)
	}
	if decoded.Product == nil || decoded.Product.ProductID != 202 || decoded.Product.Qty != 5 {
		t.Fatalf("decoded subject mismatch: %+v", decoded.Product)
	}
	if decoded.Customer != nil {
		t.Fatal("decoded product request must not carry customer subject")
	}
}

func TestResponseCodec_RoundTrip(t *testing.T) {
	resp := domain.ValidationResponse{
		CorrelationID: "cid-1",
		Participant:   domain.ParticipantCustomer,
		Outcome:       domain.OutcomeInvalid,
	}

	payload, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeResponse(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != resp {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, resp)
	}
}

func TestEncodeRequest_RejectsInconsistentRequest(t *testing.T) {
	_, err := EncodeRequest(domain.ValidationRequest{
		CorrelationID: "cid-1",
		ReplyTo:       "order_response",
		Kind:          domain.ParticipantCustomer,
	})
	if !errors.Is(err, domain.ErrSubjectMismatch) {
		t.Fatalf("expected ErrSubjectMismatch, got %v", err)
	}
}

func TestDecodeRequest_MalformedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "garbage"},
		{name: "missing version", payload: `{"correlation_id":"cid-1","reply_to":"r","subject":{"kind":"customer","customer_id":101}}`},
		{name: "future version", payload: `{"schema_version":99,"correlation_id":"cid-1","reply_to":"r","subject":{"kind":"customer","customer_id":101}}`},
		{name: "missing correlation id", payload: `{"schema_version":1,"reply_to":"r","subject":{"kind":"customer","customer_id":101}}`},
		{name: "unknown kind", payload: `{"schema_version":1,"correlation_id":"cid-1","reply_to":"r","subject":{"kind":"payment"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeRequest([]byte(tc.payload)); !errors.Is(err, domain.ErrMalformedMessage) {
				t.Fatalf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestDecodeResponse_MalformedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "garbage"},
		{name: "missing version", payload: `{"correlation_id":"cid-1","participant":"customer","outcome":"valid"}`},
		{name: "unknown participant", payload: `{"schema_version":1,"correlation_id":"cid-1","participant":"shipping","outcome":"valid"}`},
		{name: "unknown outcome", payload: `{"schema_version":1,"correlation_id":"cid-1","participant":"customer","outcome":"maybe"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeResponse([]byte(tc.payload)); !errors.Is(err, domain.ErrMalformedMessage) {
				t.Fatalf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}
