package domain

import "time"

// CartItem представляет одну строку корзины.
type CartItem struct {
	// ID строки нужен для адресации при изменении количества и удалении.
	ID        string
	ProductID string
	Qty       int32
	AddedAt   time.Time
}

// Cart агрегирует строки корзины одного покупателя.
// Идентичность корзины — либо пользователь, либо гостевой токен,
// но никогда оба сразу. На каждую идентичность существует не более
// одной корзины (разреженная уникальность по каждому ключу отдельно).
type Cart struct {
	ID         string
	UserID     string
	GuestToken GuestToken
	Items      []CartItem
	// LastActivity обновляется при каждой мутации; по нему reaper
	// находит брошенные гостевые корзины.
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity возвращает идентичность владельца корзины.
func (c *Cart) Identity() Identity {
	return ResolveIdentity(c.UserID, c.GuestToken)
}

// Line возвращает строку корзины по идентификатору.
func (c *Cart) Line(lineID string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == lineID {
			return item, true
		}
	}
	return CartItem{}, false
}

// LineIDs возвращает идентификаторы всех строк (для диагностики в ошибках).
func (c *Cart) LineIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// LineByProduct ищет строку с указанным товаром.
func (c *Cart) LineByProduct(productID string) (int, bool) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

// IsEmpty сообщает, что в корзине нет строк.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Touch обновляет отметку активности.
func (c *Cart) Touch(now time.Time) {
	c.LastActivity = now
	c.UpdatedAt = now
}

// ValidateInvariants проверяет инварианты корзины и возвращает список замечаний.
func (c *Cart) ValidateInvariants() []error {
	var errs []error

	if c.UserID != "" && c.GuestToken.Valid() {
		errs = append(errs, ErrCartIdentityAmbiguous)
	}
	if c.UserID == "" && !c.GuestToken.Valid() && len(c.Items) > 0 {
		errs = append(errs, ErrCartIdentityRequired)
	}
	for _, item := range c.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrCartProductRequired)
		}
		if item.Qty < 1 {
			errs = append(errs, ErrQuantityInvalid)
		}
	}

	return errs
}
