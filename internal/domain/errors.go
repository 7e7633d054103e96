package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента в заказе.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего идентификатора товара в заказе.
	ErrProductRequired = errors.New("product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQtyInvalid = errors.New("qty must be greater than zero")
	// Ошибка отсутствующего correlation id в сообщении протокола.
	ErrCorrelationIDRequired = errors.New("correlation_id is required")
	// Ошибка отсутствующего reply-to адреса в запросе валидации.
	ErrReplyToRequired = errors.New("reply_to is required")
	// Ошибка несоответствия kind и заполненного subject в запросе.
	ErrSubjectMismatch = errors.New("validation subject does not match participant kind")
	// Ошибка неизвестного участника в сообщении протокола.
	ErrUnknownParticipant = errors.New("unknown participant kind")
	// Ошибка неизвестного вердикта участника.
	ErrUnknownOutcome = errors.New("unknown validation outcome")
	// ErrAlreadyRegistered сигнализирует о повторной регистрации correlation id.
	// Это жёсткая ошибка: генерация id обязана давать практически уникальные токены.
	ErrAlreadyRegistered = errors.New("correlation id already registered")
	// ErrUnknownCorrelation возвращается, если await вызван для незарегистрированного id.
	ErrUnknownCorrelation = errors.New("unknown correlation id")
	// ErrMalformedMessage — сообщение из брокера не удалось разобрать по схеме.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrBrokerUnavailable — брокер недоступен при публикации; ошибка retryable.
	ErrBrokerUnavailable = errors.New("message broker unavailable")
	// ErrOrderRejected — хотя бы один участник отклонил заказ.
	ErrOrderRejected = errors.New("order rejected by validation")
	// ErrValidationTimedOut — кворум ответов не собран до дедлайна (fail closed).
	ErrValidationTimedOut = errors.New("order validation timed out")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при попытке сохранить заказ с занятым ID.
	ErrOrderExists = errors.New("order already exists")
)

// IsBrokerUnavailable проверяет, является ли ошибка недоступностью брокера.
func IsBrokerUnavailable(err error) bool {
	return errors.Is(err, ErrBrokerUnavailable)
}
