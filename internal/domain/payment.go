package domain

import "time"

// PaymentMethod определяет способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodGateway — онлайн-оплата через внешний платёжный шлюз.
	PaymentMethodGateway PaymentMethod = "gateway"
	// PaymentMethodCOD — оплата наличными при получении.
	PaymentMethodCOD PaymentMethod = "cod"
)

// Valid проверяет, что способ оплаты поддерживается.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodGateway || m == PaymentMethodCOD
}

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusPending — оплата инициирована, но не подтверждена.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted — оплата подтверждена (для COD — сразу при создании).
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — шлюз отклонил платёж или он не был захвачен.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment — платёжная часть заказа.
type Payment struct {
	Method PaymentMethod
	// GatewayOrderID — идентификатор платёжного намерения на стороне шлюза.
	GatewayOrderID string
	// GatewayPaymentID и GatewaySignature заполняются после подтверждения оплаты.
	GatewayPaymentID string
	GatewaySignature string
	Status           PaymentStatus
	UpdatedAt        time.Time
}

// InitialPaymentStatus возвращает стартовый статус оплаты для способа:
// COD считается оплаченным при получении, шлюзовые платежи ждут подтверждения.
func InitialPaymentStatus(method PaymentMethod) PaymentStatus {
	if method == PaymentMethodCOD {
		return PaymentStatusCompleted
	}
	return PaymentStatusPending
}
