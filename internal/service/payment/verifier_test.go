package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

const testSecret = "rzp_test_secret"

type verifierFixture struct {
	verifier *Verifier
	orders   domain.OrderRepository
	carts    domain.CartRepository
	outbox   domain.OutboxRepository
	gateway  *MockGateway
}

func newVerifierFixture(t *testing.T, secret string) *verifierFixture {
	t.Helper()

	f := &verifierFixture{
		orders:  memory.NewOrderRepository(),
		carts:   memory.NewCartRepository(),
		outbox:  memory.NewOutboxRepository(),
		gateway: NewMockGateway(),
	}
	f.verifier = NewVerifierWithoutMetrics(f.orders, f.carts, f.outbox, f.gateway, secret, nil)
	return f
}

func (f *verifierFixture) seedOrder(t *testing.T, order domain.Order) domain.Order {
	t.Helper()

	now := time.Now().UTC()
	if order.ID == "" {
		order.ID = "order-1"
	}
	order.Status = domain.OrderStatusPending
	order.Currency = "INR"
	if len(order.Items) == 0 {
		order.Items = []domain.OrderItem{
			{ID: "item-1", ProductID: "p1", Qty: 2, PriceMinor: 100, CreatedAt: now},
		}
	}
	order.AmountMinor = 0
	for _, item := range order.Items {
		order.AmountMinor += int64(item.Qty) * item.PriceMinor
	}
	order.Address = domain.ShippingAddress{
		Line1:      "ул. Ленина, 1",
		City:       "Мумбаи",
		PostalCode: "400001",
		Country:    "IN",
	}
	if order.Payment.Method == "" {
		order.Payment = domain.Payment{
			Method:         domain.PaymentMethodGateway,
			GatewayOrderID: "gw_order_1",
			Status:         domain.PaymentStatusPending,
		}
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	require.NoError(t, f.orders.Create(order))
	return order
}

func TestVerifier_Verify_Success(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	order := f.seedOrder(t, domain.Order{UserID: "user-1"})

	now := time.Now().UTC()
	require.NoError(t, f.carts.Save(domain.Cart{
		ID:     "cart-user-1",
		UserID: "user-1",
		Items: []domain.CartItem{
			{ID: "line-1", ProductID: "p1", Qty: 2, AddedAt: now},
		},
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	verified, err := f.verifier.Verify(domain.Identity{UserID: "user-1"}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        Signature(testSecret, "gw_order_1", "pay_1"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.gateway.FetchPaymentCalls)

	require.Equal(t, domain.PaymentStatusCompleted, verified.Payment.Status)
	require.Equal(t, "pay_1", verified.Payment.GatewayPaymentID)
	// Подтверждение оплаты не двигает статус исполнения заказа.
	require.Equal(t, domain.OrderStatusPending, verified.Status)

	// Породившая заказ корзина очищена.
	cart, err := f.carts.Get(domain.Identity{UserID: "user-1"})
	require.NoError(t, err)
	require.True(t, cart.IsEmpty())

	pending, err := f.outbox.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, EventPaymentCompleted, pending[0].EventType)
}

func TestVerifier_Verify_SignatureMismatch(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	order := f.seedOrder(t, domain.Order{UserID: "user-1"})

	// Подпись посчитана над чужим идентификатором платежа.
	_, err := f.verifier.Verify(domain.Identity{UserID: "user-1"}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        Signature(testSecret, "gw_order_1", "pay_other"),
	})
	require.ErrorIs(t, err, domain.ErrSignatureMismatch)

	// Шлюз не опрашивался, оплата осталась pending и допускает повтор.
	require.Zero(t, f.gateway.FetchPaymentCalls)
	stored, getErr := f.orders.Get(order.ID)
	require.NoError(t, getErr)
	require.Equal(t, domain.PaymentStatusPending, stored.Payment.Status)
}

func TestVerifier_Verify_PaymentNotCaptured(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	f.gateway.PaymentStatus = "failed"
	order := f.seedOrder(t, domain.Order{UserID: "user-1"})

	_, err := f.verifier.Verify(domain.Identity{UserID: "user-1"}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        Signature(testSecret, "gw_order_1", "pay_1"),
	})
	require.ErrorIs(t, err, domain.ErrPaymentNotCaptured)

	stored, getErr := f.orders.Get(order.ID)
	require.NoError(t, getErr)
	require.Equal(t, domain.PaymentStatusFailed, stored.Payment.Status)

	pending, pullErr := f.outbox.PullPending(10)
	require.NoError(t, pullErr)
	require.Len(t, pending, 1)
	require.Equal(t, EventPaymentFailed, pending[0].EventType)
}

func TestVerifier_Verify_AuthorizedCountsAsCaptured(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	f.gateway.PaymentStatus = domain.GatewayPaymentAuthorized
	order := f.seedOrder(t, domain.Order{UserID: "user-1"})

	verified, err := f.verifier.Verify(domain.Identity{UserID: "user-1"}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        Signature(testSecret, "gw_order_1", "pay_1"),
	})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusCompleted, verified.Payment.Status)
}

func TestVerifier_Verify_AlreadyVerified(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	order := f.seedOrder(t, domain.Order{
		UserID: "user-1",
		Payment: domain.Payment{
			Method:         domain.PaymentMethodGateway,
			GatewayOrderID: "gw_order_1",
			Status:         domain.PaymentStatusCompleted,
		},
	})

	_, err := f.verifier.Verify(domain.Identity{UserID: "user-1"}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        Signature(testSecret, "gw_order_1", "pay_1"),
	})
	require.ErrorIs(t, err, domain.ErrPaymentAlreadyVerified)
	require.Zero(t, f.gateway.FetchPaymentCalls)
}

func TestVerifier_Verify_ForeignUserRejected(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	order := f.seedOrder(t, domain.Order{UserID: "owner"})

	_, err := f.verifier.Verify(domain.Identity{UserID: "stranger"}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        Signature(testSecret, "gw_order_1", "pay_1"),
	})
	require.ErrorIs(t, err, domain.ErrOrderAccessDenied)
	require.Zero(t, f.gateway.FetchPaymentCalls)
}

func TestVerifier_Verify_GuestOrderClearsGuestCart(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	token := domain.GuestToken("guest-token-42")
	order := f.seedOrder(t, domain.Order{
		GuestCartToken: token,
		GuestContact:   domain.GuestContact{Email: "guest@example.com", Name: "Гость"},
	})

	now := time.Now().UTC()
	require.NoError(t, f.carts.Save(domain.Cart{
		ID:         "cart-guest",
		GuestToken: token,
		Items: []domain.CartItem{
			{ID: "line-1", ProductID: "p1", Qty: 2, AddedAt: now},
		},
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	_, err := f.verifier.Verify(domain.Identity{Guest: token}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        Signature(testSecret, "gw_order_1", "pay_1"),
	})
	require.NoError(t, err)

	cart, err := f.carts.Get(domain.Identity{Guest: token})
	require.NoError(t, err)
	require.True(t, cart.IsEmpty())
}

func TestVerifier_Verify_EmptySecret(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, "")
	order := f.seedOrder(t, domain.Order{UserID: "user-1"})

	_, err := f.verifier.Verify(domain.Identity{UserID: "user-1"}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        "whatever",
	})
	require.ErrorIs(t, err, domain.ErrGatewayNotConfigured)
}

func TestVerifier_Verify_GatewayFetchError(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	f.gateway.FetchErr = errors.New("gateway timeout")
	order := f.seedOrder(t, domain.Order{UserID: "user-1"})

	_, err := f.verifier.Verify(domain.Identity{UserID: "user-1"}, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        Signature(testSecret, "gw_order_1", "pay_1"),
	})
	require.ErrorIs(t, err, f.gateway.FetchErr)

	// Транспортная ошибка не помечает оплату как проваленную.
	stored, getErr := f.orders.Get(order.ID)
	require.NoError(t, getErr)
	require.Equal(t, domain.PaymentStatusPending, stored.Payment.Status)
}

func TestVerifier_Status(t *testing.T) {
	t.Parallel()

	f := newVerifierFixture(t, testSecret)
	order := f.seedOrder(t, domain.Order{UserID: "user-1"})

	payStatus, orderStatus, err := f.verifier.Status(domain.Identity{UserID: "user-1"}, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPending, payStatus)
	require.Equal(t, domain.OrderStatusPending, orderStatus)

	_, _, err = f.verifier.Status(domain.Identity{UserID: "stranger"}, order.ID)
	require.ErrorIs(t, err, domain.ErrOrderAccessDenied)

	_, _, err = f.verifier.Status(domain.Identity{UserID: "user-1"}, "no-such-order")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestSignature_Deterministic(t *testing.T) {
	t.Parallel()

	a := Signature("secret", "gw_order", "pay")
	b := Signature("secret", "gw_order", "pay")
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	require.NotEqual(t, a, Signature("other-secret", "gw_order", "pay"))
	require.NotEqual(t, a, Signature("secret", "gw_order", "other-pay"))
}
