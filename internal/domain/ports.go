package domain

import "time"

// GatewayIntent — платёжное намерение, открытое у внешнего шлюза.
type GatewayIntent struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
}

// GatewayPayment — запись о платеже, полученная от шлюза.
type GatewayPayment struct {
	ID     string
	Status string
	// AmountMinor может быть нулевым, если шлюз не вернул сумму.
	AmountMinor int64
}

// Статусы платежа на стороне шлюза, которые считаются успешными.
const (
	GatewayPaymentCaptured   = "captured"
	GatewayPaymentAuthorized = "authorized"
)

// PaymentGateway описывает взаимодействие с внешним платёжным провайдером.
// Реализация конструируется один раз на старте процесса из явной
// конфигурации и передаётся в компоненты как зависимость.
type PaymentGateway interface {
	// OpenIntent открывает платёжное намерение под заказ.
	OpenIntent(orderID string, amountMinor int64, currency string) (GatewayIntent, error)
	// FetchPayment возвращает авторитетную запись о платеже.
	FetchPayment(paymentID string) (GatewayPayment, error)
	// KeyID возвращает публичный ключ шлюза для клиентского виджета.
	KeyID() string
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
