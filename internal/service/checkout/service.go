package checkout

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const defaultCurrency = "INR"

// Событийные типы, попадающие в transactional outbox.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderRolledBack    = "order.rolled_back"
)

// PlaceOrderInput — входные данные оформления заказа.
type PlaceOrderInput struct {
	Identity     domain.Identity
	Address      domain.ShippingAddress
	Method       domain.PaymentMethod
	GuestContact domain.GuestContact
}

// Service превращает изменяемую корзину в неизменяемый заказ.
// Последовательность шагов фиксирована: валидация → списание остатков →
// запись заказа → (для шлюзовых платежей) открытие платёжного намерения.
// Очистка корзины никогда не выполняется раньше durable-записи заказа.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	gateway  domain.PaymentGateway
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
	now      func() time.Time
}

// NewService создаёт сервис оформления заказов.
func NewService(
	carts domain.CartRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	gateway domain.PaymentGateway,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	return &Service{
		carts:    carts,
		products: products,
		orders:   orders,
		outbox:   outbox,
		gateway:  gateway,
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	carts domain.CartRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	gateway domain.PaymentGateway,
	logger *log.Entry,
) *Service {
	svc := NewService(carts, products, orders, outbox, gateway, logger)
	svc.metrics = nil
	return svc
}

// PlaceOrder оформляет заказ без участия платёжного шлюза (COD).
// Корзина очищается только после durable-записи заказа.
func (s *Service) PlaceOrder(input PlaceOrderInput) (domain.Order, error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	order, err := s.prepareOrder(input)
	if err != nil {
		s.recordFailed()
		return domain.Order{}, err
	}

	completed := 0
	steps := s.stockAndPersistSteps(&order, &completed)

	if err := NewSaga(s.logger, steps...).Execute(); err != nil {
		s.recordFailed()
		if completed > 0 {
			s.recordRolledBack(&order)
		}
		return domain.Order{}, err
	}

	s.clearCart(input.Identity)
	s.emitOrderCreated(&order)
	if s.metrics != nil {
		s.metrics.RecordOrderPlaced()
	}

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"amount_minor": order.AmountMinor,
		"method":       string(order.Payment.Method),
	}).Info("order placed")

	return order, nil
}

// OpenGatewayCheckout оформляет заказ с онлайн-оплатой: к шагам
// оформления добавляется открытие платёжного намерения у шлюза.
// Отказ намерения компенсирует запись заказа и списанные остатки;
// вызывающий всегда получает исходную ошибку шлюза. Корзина здесь
// не очищается: это делает верификация оплаты, чтобы откат не мог
// воскресить уже очищенную корзину.
func (s *Service) OpenGatewayCheckout(input PlaceOrderInput) (domain.Order, domain.GatewayIntent, error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	if s.gateway == nil {
		s.recordFailed()
		return domain.Order{}, domain.GatewayIntent{}, domain.ErrGatewayNotConfigured
	}

	input.Method = domain.PaymentMethodGateway
	order, err := s.prepareOrder(input)
	if err != nil {
		s.recordFailed()
		return domain.Order{}, domain.GatewayIntent{}, err
	}

	var intent domain.GatewayIntent
	completed := 0
	steps := s.stockAndPersistSteps(&order, &completed)
	steps = append(steps, Step{
		Name: "open-gateway-intent",
		Run: func() error {
			opened, err := s.gateway.OpenIntent(order.ID, order.AmountMinor, order.Currency)
			if err != nil {
				return err
			}
			intent = opened
			order.Payment.GatewayOrderID = opened.GatewayOrderID
			order.UpdatedAt = s.now()
			if err := s.orders.Save(order); err != nil {
				return err
			}
			order.Version++
			completed++
			return nil
		},
	})

	if err := NewSaga(s.logger, steps...).Execute(); err != nil {
		s.recordFailed()
		if completed > 0 {
			s.recordRolledBack(&order)
		}
		return domain.Order{}, domain.GatewayIntent{}, err
	}

	s.emitOrderCreated(&order)
	if s.metrics != nil {
		s.metrics.RecordOrderPlaced()
	}

	s.logger.WithFields(log.Fields{
		"order_id":         order.ID,
		"gateway_order_id": intent.GatewayOrderID,
		"amount_minor":     order.AmountMinor,
	}).Info("gateway checkout opened")

	return order, intent, nil
}

// GetOrder возвращает заказ, проверяя принадлежность идентичности запроса.
func (s *Service) GetOrder(identity domain.Identity, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.BelongsTo(identity) {
		return domain.Order{}, domain.ErrOrderAccessDenied
	}
	return order, nil
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *Service) ListOrders(userID string, limit int) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrIdentityRequired
	}
	return s.orders.ListByUser(userID, limit)
}

// UpdateStatus выполняет переход статуса исполнения заказа.
// Конфликты версий разрешаются повторной загрузкой с backoff.
func (s *Service) UpdateStatus(orderID string, next domain.OrderStatus) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if !next.Valid() || !order.Status.CanTransitionTo(next) {
		return domain.Order{}, &domain.StatusTransitionError{From: order.Status, To: next}
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order.Status = next
		order.UpdatedAt = s.now()

		err := s.orders.Save(order)
		if err == nil {
			order.Version++
			eventType := EventOrderStatusChanged
			if next == domain.OrderStatusCancelled {
				eventType = EventOrderCancelled
			}
			s.emitEvent(&order, eventType, map[string]interface{}{
				"status": string(next),
			})
			return order, nil
		}

		if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
			s.logger.WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Warn("version conflict detected, retrying")

			fresh, loadErr := s.orders.Get(order.ID)
			if loadErr != nil {
				return domain.Order{}, loadErr
			}
			if !fresh.Status.CanTransitionTo(next) {
				return domain.Order{}, &domain.StatusTransitionError{From: fresh.Status, To: next}
			}
			order = fresh
			time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
			continue
		}

		return domain.Order{}, err
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

// prepareOrder выполняет входные валидации и собирает заказ:
// перечитывает живые товары, проверяет остатки и снапшотит цены.
func (s *Service) prepareOrder(input PlaceOrderInput) (domain.Order, error) {
	identity := input.Identity
	if identity.IsZero() {
		return domain.Order{}, domain.ErrIdentityRequired
	}
	if !input.Method.Valid() {
		return domain.Order{}, domain.ErrPaymentMethodInvalid
	}
	if identity.IsGuest() && (input.GuestContact.Email == "" || input.GuestContact.Name == "") {
		return domain.Order{}, domain.ErrGuestContactRequired
	}
	if !input.Address.Complete() {
		return domain.Order{}, domain.ErrAddressIncomplete
	}

	cart, err := s.carts.Get(identity)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return domain.Order{}, domain.ErrCartEmpty
		}
		return domain.Order{}, err
	}
	if cart.IsEmpty() {
		return domain.Order{}, domain.ErrCartEmpty
	}

	now := s.now()
	currency := defaultCurrency
	items := make([]domain.OrderItem, 0, len(cart.Items))
	var total int64

	// Предварительная проверка остатков: при любой нехватке вся
	// операция прерывается до первой мутации, без частичного заказа.
	for _, line := range cart.Items {
		product, err := s.products.Get(line.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		if product.Stock < line.Qty {
			return domain.Order{}, &domain.StockShortfallError{
				ProductID: line.ProductID,
				Available: product.Stock,
				Requested: line.Qty,
			}
		}
		if product.Currency != "" {
			currency = product.Currency
		}

		items = append(items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: product.PriceMinor,
			CreatedAt:  now,
		})
		total += int64(line.Qty) * product.PriceMinor
	}

	order := domain.Order{
		ID:          uuid.NewString(),
		UserID:      identity.UserID,
		Status:      domain.OrderStatusPending,
		Currency:    currency,
		AmountMinor: total,
		Items:       items,
		Address:     input.Address,
		Payment: domain.Payment{
			Method: input.Method,
			Status: domain.InitialPaymentStatus(input.Method),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if identity.IsGuest() {
		order.GuestCartToken = identity.Guest
		order.GuestContact = input.GuestContact
	}

	if violations := order.ValidateInvariants(); len(violations) > 0 {
		return domain.Order{}, violations[0]
	}

	return order, nil
}

// stockAndPersistSteps собирает шаги списания остатков и записи заказа.
func (s *Service) stockAndPersistSteps(order *domain.Order, completed *int) []Step {
	steps := make([]Step, 0, len(order.Items)+1)

	for _, item := range order.Items {
		item := item
		steps = append(steps, Step{
			Name: "decrement-stock",
			Run: func() error {
				if err := s.products.DecrementStock(item.ProductID, item.Qty); err != nil {
					return err
				}
				*completed++
				return nil
			},
			Compensate: func() error {
				return s.products.RestoreStock(item.ProductID, item.Qty)
			},
		})
	}

	steps = append(steps, Step{
		Name: "persist-order",
		Run: func() error {
			if err := s.orders.Create(*order); err != nil {
				return err
			}
			*completed++
			return nil
		},
		Compensate: func() error {
			return s.orders.Delete(order.ID)
		},
	})

	return steps
}

// clearCart опустошает корзину после durable-записи заказа.
// Ошибка очистки не отменяет уже созданный заказ.
func (s *Service) clearCart(identity domain.Identity) {
	cart, err := s.carts.Get(identity)
	if err != nil {
		if !errors.Is(err, domain.ErrCartNotFound) {
			s.logger.WithError(err).Warn("failed to load cart for clearing")
		}
		return
	}

	cart.Items = nil
	cart.Touch(s.now())
	if err := s.carts.Save(cart); err != nil {
		s.logger.WithError(err).Warn("failed to clear cart after order")
	}
}

func (s *Service) recordFailed() {
	if s.metrics != nil {
		s.metrics.RecordOrderFailed()
	}
}

func (s *Service) recordRolledBack(order *domain.Order) {
	if s.metrics != nil {
		s.metrics.RecordOrderRolledBack()
	}
	s.emitEvent(order, EventOrderRolledBack, map[string]interface{}{
		"amount_minor": order.AmountMinor,
	})
}

func (s *Service) emitOrderCreated(order *domain.Order) {
	s.emitEvent(order, EventOrderCreated, map[string]interface{}{
		"amount_minor": order.AmountMinor,
		"currency":     order.Currency,
		"method":       string(order.Payment.Method),
		"items_count":  len(order.Items),
	})
}

func (s *Service) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["ts"] = s.now().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
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
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}
