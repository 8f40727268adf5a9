package checkout

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type checkoutFixture struct {
	svc      *Service
	products domain.ProductRepository
	carts    domain.CartRepository
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	gateway  *payment.MockGateway
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	f := &checkoutFixture{
		products: memory.NewProductRepository(),
		carts:    memory.NewCartRepository(),
		orders:   memory.NewOrderRepository(),
		outbox:   memory.NewOutboxRepository(),
		gateway:  payment.NewMockGateway(),
	}
	f.svc = NewServiceWithoutMetrics(f.carts, f.products, f.orders, f.outbox, f.gateway, nil)
	return f
}

func (f *checkoutFixture) seedProduct(t *testing.T, id string, priceMinor int64, stock int32) {
	t.Helper()

	err := f.products.Create(domain.Product{
		ID:         id,
		Name:       "Товар " + id,
		PriceMinor: priceMinor,
		Currency:   "INR",
		Stock:      stock,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func (f *checkoutFixture) seedCart(t *testing.T, identity domain.Identity, lines map[string]int32) {
	t.Helper()

	now := time.Now().UTC()
	cart := domain.Cart{
		ID:           "cart-" + identity.UserID + string(identity.Guest),
		UserID:       identity.UserID,
		GuestToken:   identity.Guest,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for productID, qty := range lines {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        "line-" + productID,
			ProductID: productID,
			Qty:       qty,
			AddedAt:   now,
		})
	}
	require.NoError(t, f.carts.Save(cart))
}

func testAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		Line1:      "ул. Ленина, 1",
		City:       "Мумбаи",
		PostalCode: "400001",
		Country:    "IN",
		Phone:      "+910000000000",
	}
}

func TestService_PlaceOrder_COD(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 5)
	identity := domain.Identity{UserID: "user-1"}
	f.seedCart(t, identity, map[string]int32{"p1": 2})

	order, err := f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
		Method:   domain.PaymentMethodCOD,
	})
	require.NoError(t, err)

	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, int64(200), order.AmountMinor)
	require.Equal(t, "INR", order.Currency)
	require.Len(t, order.Items, 1)
	require.Equal(t, int64(100), order.Items[0].PriceMinor)
	// COD считается оплаченным при получении.
	require.Equal(t, domain.PaymentStatusCompleted, order.Payment.Status)

	product, err := f.products.Get("p1")
	require.NoError(t, err)
	require.Equal(t, int32(3), product.Stock)

	// Корзина очищена после durable-записи заказа.
	cart, err := f.carts.Get(identity)
	require.NoError(t, err)
	require.True(t, cart.IsEmpty())

	stored, err := f.orders.Get(order.ID)
	require.NoError(t, err)
	require.Equal(t, order.AmountMinor, stored.AmountMinor)

	pending, err := f.outbox.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, EventOrderCreated, pending[0].EventType)
	require.Equal(t, order.ID, pending[0].AggregateID)
}

func TestService_PlaceOrder_StockShortfall(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 1)
	identity := domain.Identity{UserID: "user-1"}
	f.seedCart(t, identity, map[string]int32{"p1": 2})

	_, err := f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
		Method:   domain.PaymentMethodCOD,
	})

	var shortfall *domain.StockShortfallError
	require.ErrorAs(t, err, &shortfall)
	require.Equal(t, "p1", shortfall.ProductID)
	require.Equal(t, int32(1), shortfall.Available)
	require.Equal(t, int32(2), shortfall.Requested)

	// Нехватка обнаружена до первой мутации: остаток и корзина целы.
	product, err := f.products.Get("p1")
	require.NoError(t, err)
	require.Equal(t, int32(1), product.Stock)

	cart, err := f.carts.Get(identity)
	require.NoError(t, err)
	require.False(t, cart.IsEmpty())

	orders, err := f.orders.ListByUser("user-1", 10)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestService_OpenGatewayCheckout_IntentFailureRollsBack(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 5)
	f.gateway.OpenIntentErr = errors.New("gateway unavailable")
	identity := domain.Identity{UserID: "user-1"}
	f.seedCart(t, identity, map[string]int32{"p1": 2})

	_, _, err := f.svc.OpenGatewayCheckout(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
	})
	require.ErrorIs(t, err, f.gateway.OpenIntentErr)

	// Компенсации вернули остаток и удалили заказ.
	product, err := f.products.Get("p1")
	require.NoError(t, err)
	require.Equal(t, int32(5), product.Stock)

	orders, err := f.orders.ListByUser("user-1", 10)
	require.NoError(t, err)
	require.Empty(t, orders)

	// Корзина не тронута и готова к повторной попытке.
	cart, err := f.carts.Get(identity)
	require.NoError(t, err)
	require.False(t, cart.IsEmpty())
}

func TestService_OpenGatewayCheckout_Success(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 250, 5)
	identity := domain.Identity{Guest: domain.GuestToken("guest-42")}
	f.seedCart(t, identity, map[string]int32{"p1": 2})

	order, intent, err := f.svc.OpenGatewayCheckout(PlaceOrderInput{
		Identity:     identity,
		Address:      testAddress(),
		GuestContact: domain.GuestContact{Email: "guest@example.com", Name: "Гость"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.gateway.OpenIntentCalls)
	require.Equal(t, f.gateway.IntentID, intent.GatewayOrderID)
	require.Equal(t, int64(500), intent.AmountMinor)

	require.Equal(t, domain.PaymentMethodGateway, order.Payment.Method)
	require.Equal(t, domain.PaymentStatusPending, order.Payment.Status)
	require.Equal(t, f.gateway.IntentID, order.Payment.GatewayOrderID)
	require.Equal(t, identity.Guest, order.GuestCartToken)

	// Корзина остаётся нетронутой до подтверждения оплаты.
	cart, err := f.carts.Get(identity)
	require.NoError(t, err)
	require.False(t, cart.IsEmpty())

	stored, err := f.orders.Get(order.ID)
	require.NoError(t, err)
	require.Equal(t, f.gateway.IntentID, stored.Payment.GatewayOrderID)
}

func TestService_PlaceOrder_GuestContactRequired(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 5)
	identity := domain.Identity{Guest: domain.GuestToken("guest-nameless")}
	f.seedCart(t, identity, map[string]int32{"p1": 1})

	_, err := f.svc.PlaceOrder(PlaceOrderInput{
		Identity:     identity,
		Address:      testAddress(),
		Method:       domain.PaymentMethodCOD,
		GuestContact: domain.GuestContact{Email: "guest@example.com"},
	})
	require.ErrorIs(t, err, domain.ErrGuestContactRequired)
}

func TestService_PlaceOrder_Validation(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 5)
	identity := domain.Identity{UserID: "user-1"}
	f.seedCart(t, identity, map[string]int32{"p1": 1})

	_, err := f.svc.PlaceOrder(PlaceOrderInput{
		Address: testAddress(),
		Method:  domain.PaymentMethodCOD,
	})
	require.ErrorIs(t, err, domain.ErrIdentityRequired)

	_, err = f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
		Method:   domain.PaymentMethod("crypto"),
	})
	require.ErrorIs(t, err, domain.ErrPaymentMethodInvalid)

	_, err = f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  domain.ShippingAddress{Line1: "только улица"},
		Method:   domain.PaymentMethodCOD,
	})
	require.ErrorIs(t, err, domain.ErrAddressIncomplete)
}

func TestService_PlaceOrder_EmptyCart(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	identity := domain.Identity{UserID: "user-empty"}

	// Корзины нет вовсе.
	_, err := f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
		Method:   domain.PaymentMethodCOD,
	})
	require.ErrorIs(t, err, domain.ErrCartEmpty)

	// Корзина есть, но пустая.
	f.seedCart(t, identity, nil)
	_, err = f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
		Method:   domain.PaymentMethodCOD,
	})
	require.ErrorIs(t, err, domain.ErrCartEmpty)
}

func TestService_PlaceOrder_PriceSnapshotSurvivesCatalogEdits(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 10)
	identity := domain.Identity{UserID: "user-snap"}
	f.seedCart(t, identity, map[string]int32{"p1": 3})

	order, err := f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
		Method:   domain.PaymentMethodCOD,
	})
	require.NoError(t, err)
	require.Equal(t, int64(300), order.AmountMinor)

	// Снапшот цены в заказе не зависит от дальнейшей жизни каталога.
	stored, err := f.orders.Get(order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), stored.Items[0].PriceMinor)
	require.Empty(t, stored.ValidateInvariants())
}

func TestService_GetOrder_AccessControl(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 5)
	owner := domain.Identity{UserID: "owner"}
	f.seedCart(t, owner, map[string]int32{"p1": 1})

	order, err := f.svc.PlaceOrder(PlaceOrderInput{
		Identity: owner,
		Address:  testAddress(),
		Method:   domain.PaymentMethodCOD,
	})
	require.NoError(t, err)

	got, err := f.svc.GetOrder(owner, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)

	_, err = f.svc.GetOrder(domain.Identity{UserID: "stranger"}, order.ID)
	require.ErrorIs(t, err, domain.ErrOrderAccessDenied)

	_, err = f.svc.GetOrder(domain.Identity{Guest: domain.GuestToken("guest")}, order.ID)
	require.ErrorIs(t, err, domain.ErrOrderAccessDenied)

	_, err = f.svc.GetOrder(owner, "no-such-order")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestService_UpdateStatus(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 5)
	identity := domain.Identity{UserID: "user-status"}
	f.seedCart(t, identity, map[string]int32{"p1": 1})

	order, err := f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
		Method:   domain.PaymentMethodCOD,
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(order.ID, domain.OrderStatusPacked)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPacked, updated.Status)

	updated, err = f.svc.UpdateStatus(order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusShipped, updated.Status)

	// Прыжок через этап запрещён.
	_, err = f.svc.UpdateStatus(order.ID, domain.OrderStatusPending)
	var transition *domain.StatusTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, domain.OrderStatusShipped, transition.From)
	require.Equal(t, domain.OrderStatusPending, transition.To)

	updated, err = f.svc.UpdateStatus(order.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusDelivered, updated.Status)

	// Доставленный заказ — терминальное состояние.
	_, err = f.svc.UpdateStatus(order.ID, domain.OrderStatusCancelled)
	require.ErrorAs(t, err, &transition)
}

func TestService_UpdateStatus_EmitsCancelledEvent(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 5)
	identity := domain.Identity{UserID: "user-cancel"}
	f.seedCart(t, identity, map[string]int32{"p1": 1})

	order, err := f.svc.PlaceOrder(PlaceOrderInput{
		Identity: identity,
		Address:  testAddress(),
		Method:   domain.PaymentMethodCOD,
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)

	pending, err := f.outbox.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	types := []string{pending[0].EventType, pending[1].EventType}
	require.Contains(t, types, EventOrderCreated)
	require.Contains(t, types, EventOrderCancelled)
}

func TestService_ListOrders(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.seedProduct(t, "p1", 100, 10)
	identity := domain.Identity{UserID: "user-list"}

	for i := 0; i < 3; i++ {
		f.seedCart(t, identity, map[string]int32{"p1": 1})
		_, err := f.svc.PlaceOrder(PlaceOrderInput{
			Identity: identity,
			Address:  testAddress(),
			Method:   domain.PaymentMethodCOD,
		})
		require.NoError(t, err)
	}

	orders, err := f.svc.ListOrders("user-list", 0)
	require.NoError(t, err)
	require.Len(t, orders, 3)

	orders, err = f.svc.ListOrders("user-list", 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	_, err = f.svc.ListOrders("", 10)
	require.ErrorIs(t, err, domain.ErrIdentityRequired)
}
