package payment

import (
	"encoding/json"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// RazorpayGateway — адаптер платёжного шлюза Razorpay.
// Клиент конструируется один раз на старте процесса из явной
// конфигурации; пустые учётные данные дают ErrGatewayNotConfigured
// на первом использовании, а не при создании.
type RazorpayGateway struct {
	client    *razorpay.Client
	keyID     string
	keySecret string
}

// NewRazorpayGateway создаёт адаптер из учётных данных.
func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	g := &RazorpayGateway{keyID: keyID, keySecret: keySecret}
	if keyID != "" && keySecret != "" {
		g.client = razorpay.NewClient(keyID, keySecret)
	}
	return g
}

// Configured сообщает, заданы ли учётные данные шлюза.
func (g *RazorpayGateway) Configured() bool { return g.client != nil }

// KeyID возвращает публичный ключ для клиентского виджета оплаты.
func (g *RazorpayGateway) KeyID() string { return g.keyID }

// Secret возвращает общий секрет для верификации подписей.
func (g *RazorpayGateway) Secret() string { return g.keySecret }

// OpenIntent открывает платёжное намерение под заказ. Сумма уже
// выражена в минимальных единицах валюты; суммы ниже минимума шлюза
// отклоняются до какого-либо сетевого вызова.
func (g *RazorpayGateway) OpenIntent(orderID string, amountMinor int64, currency string) (domain.GatewayIntent, error) {
	if g.client == nil {
		return domain.GatewayIntent{}, domain.ErrGatewayNotConfigured
	}
	if amountMinor < 1 {
		return domain.GatewayIntent{}, domain.ErrAmountTooSmall
	}

	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  orderID,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return domain.GatewayIntent{}, &domain.GatewayError{Op: "create order", Err: err}
	}

	gatewayOrderID, ok := body["id"].(string)
	if !ok || gatewayOrderID == "" {
		return domain.GatewayIntent{}, &domain.GatewayError{
			Op:  "create order",
			Err: fmt.Errorf("response has no order id"),
		}
	}

	return domain.GatewayIntent{
		GatewayOrderID: gatewayOrderID,
		AmountMinor:    amountMinor,
		Currency:       currency,
	}, nil
}

// FetchPayment возвращает авторитетную запись о платеже со стороны шлюза.
func (g *RazorpayGateway) FetchPayment(paymentID string) (domain.GatewayPayment, error) {
	if g.client == nil {
		return domain.GatewayPayment{}, domain.ErrGatewayNotConfigured
	}

	body, err := g.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return domain.GatewayPayment{}, &domain.GatewayError{Op: "fetch payment", Err: err}
	}

	payment := domain.GatewayPayment{ID: paymentID}
	if status, ok := body["status"].(string); ok {
		payment.Status = status
	}
	payment.AmountMinor = amountFromBody(body["amount"])

	return payment, nil
}

// amountFromBody достаёт сумму из ответа шлюза; JSON-декодер может
// вернуть её как float64 или json.Number.
func amountFromBody(raw interface{}) int64 {
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	case int64:
		return v
	default:
		return 0
	}
}

var _ domain.PaymentGateway = (*RazorpayGateway)(nil)
