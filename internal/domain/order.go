package domain

import "time"

// OrderStatus описывает этап исполнения заказа.
// Статус заказа отделён от статуса оплаты: подтверждённый платёж
// оставляет заказ в pending до начала сборки.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ждёт сборки.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPacked — заказ собран на складе.
	OrderStatusPacked OrderStatus = "packed"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ вручён покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до вручения.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// fulfillmentTransitions задаёт допустимые переходы статуса исполнения.
var fulfillmentTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPacked, OrderStatusCancelled},
	OrderStatusPacked:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// AllowedTransitions возвращает статусы, в которые разрешён переход.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	return fulfillmentTransitions[s]
}

// CanTransitionTo проверяет допустимость перехода статуса исполнения.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range fulfillmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := fulfillmentTransitions[s]
	return ok
}

// OrderItem — позиция заказа со снапшотом цены на момент оформления.
// Последующие изменения цены в каталоге не трогают историю заказов.
type OrderItem struct {
	ID        string
	ProductID string
	Qty       int32
	// PriceMinor — цена за единицу на момент создания заказа.
	PriceMinor int64
	CreatedAt  time.Time
}

// ShippingAddress — адрес доставки, денормализованный в заказ.
type ShippingAddress struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// Complete проверяет, что обязательные поля адреса заполнены.
func (a ShippingAddress) Complete() bool {
	return a.Line1 != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// GuestContact — контактные данные гостевого заказа; у гостя нет
// учётной записи, поэтому email и имя обязательны на входе.
type GuestContact struct {
	Email string
	Name  string
}

// Order агрегирует неизменяемый снапшот оформленного заказа.
// После создания меняются только Status и вложенный Payment.Status.
type Order struct {
	ID     string
	UserID string
	// GuestCartToken сохраняется при гостевом оформлении, чтобы
	// подтверждение оплаты могло найти и очистить исходную корзину.
	// Наружу не отдаётся.
	GuestCartToken GuestToken
	GuestContact   GuestContact
	Status         OrderStatus
	Currency       string
	// AmountMinor — сумма заказа; инвариант: равна сумме qty*price по позициям.
	AmountMinor int64
	Items       []OrderItem
	Address     ShippingAddress
	Payment     Payment
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsGuestOrder сообщает, что заказ оформлен без учётной записи.
func (o *Order) IsGuestOrder() bool { return o.UserID == "" }

// BelongsTo проверяет принадлежность заказа идентичности запроса.
// У гостевых заказов нет владельца в смысле авторизации; доступ по
// совпадению гостевого токена разрешён для чтения.
func (o *Order) BelongsTo(identity Identity) bool {
	if o.UserID != "" {
		return identity.IsUser() && identity.UserID == o.UserID
	}
	if o.GuestCartToken.Valid() {
		return identity.IsGuest() && identity.Guest == o.GuestCartToken
	}
	return false
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" && o.GuestContact.Email == "" {
		errs = append(errs, ErrGuestContactRequired)
	}
	if o.UserID != "" && o.GuestCartToken.Valid() {
		errs = append(errs, ErrCartIdentityAmbiguous)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.Address.Complete() {
		errs = append(errs, ErrAddressIncomplete)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
