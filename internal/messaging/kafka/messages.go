package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
)

// SchemaVersion — текущая версия wire-схемы сообщений протокола.
const SchemaVersion = 1

// Топология очередей. Имена request очередей фиксированы исходной системой;
// reply очередь по умолчанию общая, но каждый инстанс может поднять свою
// (см. ReplyTopicForInstance), чтобы ответы не перемешивались между инстансами.
const (
	TopicCustomerValidation = "order_customer_validation"
	TopicProductValidation  = "order_product_validation"
	DefaultReplyTopic       = "order_response"
	TopicDeadLetterQueue    = "ovs.dlq"
)

// Заголовки сообщений. Correlation id и reply-to ездят заголовками,
// как properties в исходной AMQP-системе.
const (
	HeaderCorrelationID = "x-correlation-id"
	HeaderReplyTo       = "x-reply-to"
	HeaderRetryCount    = "x-retry-count"
)

// ReplyTopicForInstance возвращает имя reply очереди для одного инстанса.
func ReplyTopicForInstance(instanceID string) string {
	return fmt.Sprintf("%s.%s", DefaultReplyTopic, instanceID)
}

// RequestTopicFor возвращает request очередь участника данного вида.
func RequestTopicFor(kind domain.ParticipantKind) (string, error) {
	switch kind {
	case domain.ParticipantCustomer:
		return TopicCustomerValidation, nil
	case domain.ParticipantProduct:
		return TopicProductValidation, nil
	default:
		return "", domain.ErrUnknownParticipant
	}
}

// SubjectMessage — tagged variant предмета проверки в wire-виде.
type SubjectMessage struct {
	Kind       string `json:"kind"`
	CustomerID int64  `json:"customer_id,omitempty"`
	ProductID  int64  `json:"product_id,omitempty"`
	Qty        int32  `json:"qty,omitempty"`
}

// RequestMessage — сериализуемый ValidationRequest.
type RequestMessage struct {
	SchemaVersion int            `json:"schema_version"`
	CorrelationID string         `json:"correlation_id"`
	ReplyTo       string         `json:"reply_to"`
	Subject       SubjectMessage `json:"subject"`
}

// ResponseMessage — сериализуемый ValidationResponse.
type ResponseMessage struct {
	SchemaVersion int    `json:"schema_version"`
	CorrelationID string `json:"correlation_id"`
	Participant   string `json:"participant"`
	Outcome       string `json:"outcome"`
}

// EncodeRequest сериализует запрос валидации в wire-формат.
func EncodeRequest(req domain.ValidationRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("encode validation request: %w", err)
	}

	msg := RequestMessage{
		SchemaVersion: SchemaVersion,
		CorrelationID: req.CorrelationID,
		ReplyTo:       req.ReplyTo,
		Subject:       SubjectMessage{Kind: string(req.Kind)},
	}
	switch req.Kind {
	case domain.ParticipantCustomer:
		msg.Subject.CustomerID = req.Customer.CustomerID
	case domain.ParticipantProduct:
		msg.Subject.ProductID = req.Product.ProductID
		msg.Subject.Qty = req.Product.Qty
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal validation request: %w", err)
	}
	return data, nil
}

// DecodeRequest разбирает wire-формат запроса. Любое нарушение схемы
// сворачивается в ErrMalformedMessage, чтобы consume loop мог отбросить
// сообщение, не прерывая потребление.
func DecodeRequest(payload []byte) (domain.ValidationRequest, error) {
	var msg RequestMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.ValidationRequest{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if msg.SchemaVersion < 1 || msg.SchemaVersion > SchemaVersion {
		return domain.ValidationRequest{}, fmt.Errorf("%w: unsupported schema version %d", domain.ErrMalformedMessage, msg.SchemaVersion)
	}

	req := domain.ValidationRequest{
		CorrelationID: msg.CorrelationID,
		ReplyTo:       msg.ReplyTo,
		Kind:          domain.ParticipantKind(msg.Subject.Kind),
	}
	switch req.Kind {
	case domain.ParticipantCustomer:
		req.Customer = &domain.CustomerRef{CustomerID: msg.Subject.CustomerID}
	case domain.ParticipantProduct:
		req.Product = &domain.ProductRef{ProductID: msg.Subject.ProductID, Qty: msg.Subject.Qty}
	}

	if err := req.Validate(); err != nil {
		return domain.ValidationRequest{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	return req, nil
}

// EncodeResponse сериализует ответ участника в wire-формат.
func EncodeResponse(resp domain.ValidationResponse) ([]byte, error) {
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("encode validation response: %w", err)
	}

	data, err := json.Marshal(ResponseMessage{
		SchemaVersion: SchemaVersion,
		CorrelationID: resp.CorrelationID,
		Participant:   string(resp.Participant),
		Outcome:       string(resp.Outcome),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal validation response: %w", err)
	}
	return data, nil
}

// DecodeResponse разбирает wire-формат ответа участника.
func DecodeResponse(payload []byte) (domain.ValidationResponse, error) {
	var msg ResponseMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.ValidationResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if msg.SchemaVersion < 1 || msg.SchemaVersion > SchemaVersion {
		return domain.ValidationResponse{}, fmt.Errorf("%w: unsupported schema version %d", domain.ErrMalformedMessage, msg.SchemaVersion)
	}

	resp := domain.ValidationResponse{
		CorrelationID: msg.CorrelationID,
		Participant:   domain.ParticipantKind(msg.Participant),
		Outcome:       domain.Outcome(msg.Outcome),
	}
	if err := resp.Validate(); err != nil {
		return domain.ValidationResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	return resp, nil
}
