package domain

// ParticipantKind идентифицирует участника протокола валидации.
type ParticipantKind string

const (
	// ParticipantCustomer — участник, проверяющий существование клиента.
	ParticipantCustomer ParticipantKind = "customer"
	// ParticipantProduct — участник, проверяющий товар и остатки на складе.
	ParticipantProduct ParticipantKind = "product"
)

// Outcome — вердикт одного участника по одному запросу.
type Outcome string

const (
	// OutcomeValid — участник подтвердил ссылку.
	OutcomeValid Outcome = "valid"
	// OutcomeInvalid — участник отклонил ссылку.
	OutcomeInvalid Outcome = "invalid"
)

// Verdict — итоговое решение по заказу после агрегации ответов.
type Verdict string

const (
	// VerdictApproved — все участники ответили valid до дедлайна.
	VerdictApproved Verdict = "approved"
	// VerdictRejected — хотя бы один участник ответил invalid.
	VerdictRejected Verdict = "rejected"
	// VerdictTimedOut — кворум не собран до дедлайна; считается отказом (fail closed).
	VerdictTimedOut Verdict = "timed_out"
)

// CustomerRef — предмет проверки для customer-участника.
type CustomerRef struct {
	CustomerID int64
}

// ProductRef — предмет проверки для product-участника: товар и требуемое количество.
type ProductRef struct {
	ProductID int64
	Qty       int32
}

// ValidationRequest — запрос на проверку одной ссылки заказа.
// Неизменяем после публикации; correlation id связывает его с ответом.
type ValidationRequest struct {
	CorrelationID string
	ReplyTo       string
	Kind          ParticipantKind
	Customer      *CustomerRef
	Product       *ProductRef
}

// Validate проверяет согласованность запроса: kind должен соответствовать заполненному subject.
func (r ValidationRequest) Validate() error {
	if r.CorrelationID == "" {
		return ErrCorrelationIDRequired
	}
	if r.ReplyTo == "" {
		return ErrReplyToRequired
	}
	switch r.Kind {
	case ParticipantCustomer:
		if r.Customer == nil || r.Product != nil {
			return ErrSubjectMismatch
		}
	case ParticipantProduct:
		if r.Product == nil || r.Customer != nil {
			return ErrSubjectMismatch
		}
	default:
		return ErrUnknownParticipant
	}
	return nil
}

// ValidationResponse — ответ участника, помеченный тем же correlation id.
type ValidationResponse struct {
	CorrelationID string
	Participant   ParticipantKind
	Outcome       Outcome
}

// Validate проверяет, что ответ полностью заполнен известными значениями.
func (r ValidationResponse) Validate() error {
	if r.CorrelationID == "" {
		return ErrCorrelationIDRequired
	}
	if r.Participant != ParticipantCustomer && r.Participant != ParticipantProduct {
		return ErrUnknownParticipant
	}
	if r.Outcome != OutcomeValid && r.Outcome != OutcomeInvalid {
		return ErrUnknownOutcome
	}
	return nil
}

// ValidationResult — результат ожидания кворума по одному correlation id.
type ValidationResult struct {
	Verdict Verdict
	// Responses — дедуплицированный по участнику набор полученных ответов.
	Responses []ValidationResponse
	// Complete — true, если получены ответы всех ожидаемых участников.
	Complete bool
}
