package payment

import "github.com/vladislavdragonenkov/storefront/internal/domain"

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	IntentID      string
	OpenIntentErr error
	PaymentStatus string
	FetchErr      error
	Key           string

	OpenIntentCalls   int
	FetchPaymentCalls int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		IntentID:      "order_mock_1",
		PaymentStatus: domain.GatewayPaymentCaptured,
		Key:           "rzp_test_mock",
	}
}

// OpenIntent возвращает заранее настроенный результат и считает вызовы.
func (m *MockGateway) OpenIntent(orderID string, amountMinor int64, currency string) (domain.GatewayIntent, error) {
	m.OpenIntentCalls++
	if m.OpenIntentErr != nil {
		return domain.GatewayIntent{}, m.OpenIntentErr
	}
	return domain.GatewayIntent{
		GatewayOrderID: m.IntentID,
		AmountMinor:    amountMinor,
		Currency:       currency,
	}, nil
}

// FetchPayment возвращает настроенный статус платежа и считает вызовы.
func (m *MockGateway) FetchPayment(paymentID string) (domain.GatewayPayment, error) {
	m.FetchPaymentCalls++
	if m.FetchErr != nil {
		return domain.GatewayPayment{}, m.FetchErr
	}
	return domain.GatewayPayment{ID: paymentID, Status: m.PaymentStatus}, nil
}

// KeyID возвращает настроенный публичный ключ.
func (m *MockGateway) KeyID() string { return m.Key }

var _ domain.PaymentGateway = (*MockGateway)(nil)
