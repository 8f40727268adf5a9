package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Событийные типы верификации, попадающие в transactional outbox.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
)

// Signature вычисляет ожидаемую подпись платежа: HMAC-SHA256 от
// "gatewayOrderID|gatewayPaymentID" на общем секрете шлюза, hex.
func Signature(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyInput — данные подтверждения оплаты, присланные клиентом.
type VerifyInput struct {
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Verifier подтверждает оплату заказа: сверяет клиентскую подпись
// и авторитетный статус платежа на стороне шлюза.
type Verifier struct {
	orders  domain.OrderRepository
	carts   domain.CartRepository
	outbox  domain.OutboxRepository
	gateway domain.PaymentGateway
	secret  string
	logger  *log.Entry
	metrics *metrics.CheckoutMetrics
	now     func() time.Time
}

// NewVerifier создаёт верификатор оплаты.
func NewVerifier(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	outbox domain.OutboxRepository,
	gateway domain.PaymentGateway,
	secret string,
	logger *log.Entry,
) *Verifier {
	if logger == nil {
		logger = log.WithField("component", "payment-verifier")
	}
	return &Verifier{
		orders:  orders,
		carts:   carts,
		outbox:  outbox,
		gateway: gateway,
		secret:  secret,
		logger:  logger,
		metrics: metrics.NewCheckoutMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewVerifierWithoutMetrics создаёт верификатор без метрик (для тестов).
func NewVerifierWithoutMetrics(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	outbox domain.OutboxRepository,
	gateway domain.PaymentGateway,
	secret string,
	logger *log.Entry,
) *Verifier {
	v := NewVerifier(orders, carts, outbox, gateway, secret, logger)
	v.metrics = nil
	return v
}

// Verify подтверждает оплату заказа.
//
// Несовпадение подписи отклоняется немедленно и без обращения к шлюзу:
// поддельный запрос не должен получать информацию о поведении
// верификации. Статус оплаты при этом остаётся pending — клиент с
// корректной подписью может повторить подтверждение.
func (v *Verifier) Verify(identity domain.Identity, input VerifyInput) (domain.Order, error) {
	order, err := v.orders.Get(input.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	// Авторизованный вызов против чужого заказа отклоняется; у гостевых
	// заказов нет владельца в смысле авторизации, проверка пропускается.
	if identity.IsUser() && order.UserID != "" && order.UserID != identity.UserID {
		return domain.Order{}, domain.ErrOrderAccessDenied
	}

	if order.Payment.Status == domain.PaymentStatusCompleted {
		return domain.Order{}, domain.ErrPaymentAlreadyVerified
	}

	if v.secret == "" {
		return domain.Order{}, domain.ErrGatewayNotConfigured
	}

	expected := Signature(v.secret, input.GatewayOrderID, input.GatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(input.Signature)) {
		v.recordRejected()
		v.logger.WithField("order_id", order.ID).Warn("payment signature mismatch")
		return domain.Order{}, domain.ErrSignatureMismatch
	}

	remote, err := v.gateway.FetchPayment(input.GatewayPaymentID)
	if err != nil {
		v.recordRejected()
		return domain.Order{}, err
	}

	if remote.Status != domain.GatewayPaymentCaptured && remote.Status != domain.GatewayPaymentAuthorized {
		v.recordRejected()
		v.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"status":   remote.Status,
		}).Warn("gateway reports payment not captured")

		order.Payment.Status = domain.PaymentStatusFailed
		order.Payment.GatewayPaymentID = input.GatewayPaymentID
		order.Payment.UpdatedAt = v.now()
		order.UpdatedAt = order.Payment.UpdatedAt
		if saveErr := v.orders.Save(order); saveErr != nil {
			v.logger.WithError(saveErr).WithField("order_id", order.ID).Error("failed to persist failed payment")
		}
		v.emitEvent(&order, EventPaymentFailed, map[string]interface{}{
			"gateway_status": remote.Status,
		})
		return domain.Order{}, domain.ErrPaymentNotCaptured
	}

	order.Payment.Status = domain.PaymentStatusCompleted
	order.Payment.GatewayOrderID = input.GatewayOrderID
	order.Payment.GatewayPaymentID = input.GatewayPaymentID
	order.Payment.GatewaySignature = input.Signature
	order.Payment.UpdatedAt = v.now()
	// Статус исполнения не меняется: заказ подтверждён и ждёт сборки.
	order.UpdatedAt = order.Payment.UpdatedAt

	if err := v.orders.Save(order); err != nil {
		return domain.Order{}, err
	}
	order.Version++

	v.clearOrderCart(&order)
	v.emitEvent(&order, EventPaymentCompleted, map[string]interface{}{
		"gateway_payment_id": input.GatewayPaymentID,
		"amount_minor":       order.AmountMinor,
	})
	if v.metrics != nil {
		v.metrics.RecordVerificationOK()
	}

	v.logger.WithFields(log.Fields{
		"order_id":           order.ID,
		"gateway_payment_id": input.GatewayPaymentID,
	}).Info("payment verified")

	return order, nil
}

// Status возвращает пару статусов оплаты и исполнения заказа.
func (v *Verifier) Status(identity domain.Identity, orderID string) (domain.PaymentStatus, domain.OrderStatus, error) {
	order, err := v.orders.Get(orderID)
	if err != nil {
		return "", "", err
	}
	if !order.BelongsTo(identity) {
		return "", "", domain.ErrOrderAccessDenied
	}
	return order.Payment.Status, order.Status, nil
}

// clearOrderCart очищает корзину, породившую заказ: пользовательскую —
// по id пользователя, гостевую — по токену, сохранённому на заказе.
// Очистка best-effort: её отказ не отменяет подтверждённую оплату.
func (v *Verifier) clearOrderCart(order *domain.Order) {
	var identity domain.Identity
	switch {
	case order.UserID != "":
		identity = domain.Identity{UserID: order.UserID}
	case order.GuestCartToken.Valid():
		identity = domain.Identity{Guest: order.GuestCartToken}
	default:
		return
	}

	cart, err := v.carts.Get(identity)
	if err != nil {
		if !errors.Is(err, domain.ErrCartNotFound) {
			v.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to load cart for clearing")
		}
		return
	}

	cart.Items = nil
	cart.Touch(v.now())
	if err := v.carts.Save(cart); err != nil {
		v.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to clear cart after payment")
	}
}

func (v *Verifier) recordRejected() {
	if v.metrics != nil {
		v.metrics.RecordVerificationRejected()
	}
}

func (v *Verifier) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if v.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["ts"] = v.now().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		v.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := v.outbox.Enqueue(msg); err != nil {
		v.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
		return
	}
	if v.metrics != nil {
		v.metrics.RecordOutboxEvent()
	}
}
