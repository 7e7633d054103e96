package domain

import "context"

// OutboundMessage — сообщение для публикации в брокер.
// CorrelationID и ReplyTo передаются заголовками, Payload — сериализованное тело.
type OutboundMessage struct {
	Key           string
	CorrelationID string
	ReplyTo       string
	Payload       []byte
}

// InboundMessage — сообщение, полученное из брокера, в транспортно-нейтральном виде.
type InboundMessage struct {
	Topic         string
	Key           string
	CorrelationID string
	ReplyTo       string
	Payload       []byte
}

// MessageHandler обрабатывает одно входящее сообщение. Ненулевая ошибка означает,
// что сообщение можно попробовать обработать повторно; разобранные, но
// некорректные сообщения обработчик обязан отбрасывать сам, возвращая nil.
type MessageHandler func(ctx context.Context, msg InboundMessage) error

// MessagePublisher публикует сообщения в именованные очереди брокера.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, msg OutboundMessage) error
}

// CustomerLookup — авторитетный источник данных о клиентах.
type CustomerLookup interface {
	// Exists сообщает, существует ли клиент с данным ID.
	Exists(ctx context.Context, customerID int64) (bool, error)
}

// ProductLookup — авторитетный источник данных о товарах и остатках.
type ProductLookup interface {
	// Exists сообщает, существует ли товар с данным ID.
	Exists(ctx context.Context, productID int64) (bool, error)
	// HasStock сообщает, достаточно ли остатка товара под требуемое количество.
	HasStock(ctx context.Context, productID int64, qty int32) (bool, error)
}

// OrderRepository хранит заказы, прошедшие валидацию.
type OrderRepository interface {
	Create(order Order) error
	Get(id string) (Order, error)
	ListByCustomer(customerID int64, limit int) ([]Order, error)
}

// ValidationDispatcher публикует запросы валидации и регистрирует correlation id.
type ValidationDispatcher interface {
	// Dispatch отправляет по одному запросу каждому участнику и возвращает
	// общий correlation id. Сама отправка не ждёт ответов.
	Dispatch(ctx context.Context, order Order) (string, error)
}

// ValidationAwaiter блокирует вызывающего до кворума ответов или дедлайна.
type ValidationAwaiter interface {
	Await(ctx context.Context, correlationID string) (ValidationResult, error)
}
