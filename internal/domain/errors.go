package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// Ошибка отрицательного остатка.
	ErrProductStockNegative = errors.New("product stock must be non-negative")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartNotFound возвращается, если корзина не найдена в хранилище.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartEmpty — попытка оформить заказ из пустой или отсутствующей корзины.
	ErrCartEmpty = errors.New("cart is empty")
	// Ошибка корзины, привязанной и к пользователю, и к гостевому токену.
	ErrCartIdentityAmbiguous = errors.New("cart cannot belong to both user and guest")
	// Ошибка непустой корзины без какой-либо идентичности.
	ErrCartIdentityRequired = errors.New("cart with items requires an identity")
	// Ошибка строки корзины без ссылки на товар.
	ErrCartProductRequired = errors.New("cart item requires a product reference")
	// ErrIdentityRequired — мутация корзины без пользователя и без гостевого токена.
	ErrIdentityRequired = errors.New("user or guest identity is required")
	// Ошибка количества, не являющегося положительным целым.
	ErrQuantityInvalid = errors.New("quantity must be a positive integer")
	// Ошибка отсутствующих контактов гостевого заказа.
	ErrGuestContactRequired = errors.New("guestEmail and guestName are required for guest orders")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка неполного адреса доставки.
	ErrAddressIncomplete = errors.New("shipping address is incomplete")
	// Ошибка неподдерживаемого способа оплаты.
	ErrPaymentMethodInvalid = errors.New("unsupported payment method")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderAccessDenied — заказ принадлежит другой идентичности.
	ErrOrderAccessDenied = errors.New("order belongs to a different identity")
	// ErrGatewayNotConfigured — не заданы учётные данные платёжного шлюза.
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	// ErrAmountTooSmall — сумма ниже минимума шлюза (1 минимальная единица).
	ErrAmountTooSmall = errors.New("amount is below the gateway minimum")
	// ErrSignatureMismatch — клиентская подпись платежа не сошлась с ожидаемой.
	ErrSignatureMismatch = errors.New("invalid payment signature")
	// ErrPaymentNotCaptured — шлюз сообщил статус, отличный от captured/authorized.
	ErrPaymentNotCaptured = errors.New("payment is not captured or authorized")
	// ErrPaymentAlreadyVerified — повторная верификация уже подтверждённого платежа.
	ErrPaymentAlreadyVerified = errors.New("payment is already verified")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// StockShortfallError сообщает о нехватке остатка и несёт доступное
// количество, чтобы клиент увидел сколько реально можно купить.
type StockShortfallError struct {
	ProductID string
	Available int32
	Requested int32
}

func (e *StockShortfallError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// IsStockShortfall извлекает StockShortfallError из цепочки ошибок.
func IsStockShortfall(err error) (*StockShortfallError, bool) {
	var shortfall *StockShortfallError
	if errors.As(err, &shortfall) {
		return shortfall, true
	}
	return nil, false
}

// CartLineNotFoundError сообщает об отсутствующей строке корзины и несёт
// список валидных идентификаторов для диагностики.
type CartLineNotFoundError struct {
	LineID       string
	ValidLineIDs []string
}

func (e *CartLineNotFoundError) Error() string {
	return fmt.Sprintf("cart item %s not found; valid item ids: [%s]",
		e.LineID, strings.Join(e.ValidLineIDs, ", "))
}

// StatusTransitionError сообщает о недопустимом переходе статуса исполнения.
type StatusTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *StatusTransitionError) Error() string {
	allowed := e.From.AllowedTransitions()
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return fmt.Sprintf("cannot transition order from %s to %s; allowed: [%s]",
		e.From, e.To, strings.Join(names, ", "))
}

// GatewayError оборачивает ошибку удалённого вызова платёжного шлюза.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
