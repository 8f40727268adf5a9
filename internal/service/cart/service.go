package cart

import (
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ItemView — строка корзины, обогащённая живыми данными каталога.
// Остаток — свойство товара, а не корзины, поэтому аннотации
// пересчитываются при каждом чтении.
type ItemView struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	PriceMinor     int64  `json:"priceMinor"`
	Currency       string `json:"currency"`
	Qty            int32  `json:"quantity"`
	LineTotalMinor int64  `json:"lineTotalMinor"`
	AvailableStock int32  `json:"availableStock"`
	IsOutOfStock   bool   `json:"isOutOfStock"`
	CanAddMore     bool   `json:"canAddMore"`
}

// View — корзина в том виде, в котором её получает клиент.
type View struct {
	ID         string     `json:"id,omitempty"`
	Items      []ItemView `json:"items"`
	TotalMinor int64      `json:"totalMinor"`
	UpdatedAt  time.Time  `json:"updatedAt,omitempty"`
}

// Service реализует операции над корзиной покупателя.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис корзины.
func NewService(carts domain.CartRepository, products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	return &Service{
		carts:    carts,
		products: products,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCart возвращает корзину идентичности, лениво создавая пустую.
// Полностью анонимный запрос получает пустую непersisted-корзину:
// анонимный просмотр не должен порождать записей в хранилище.
func (s *Service) GetCart(identity domain.Identity) (View, error) {
	if identity.IsZero() {
		return emptyView(), nil
	}

	cart, err := s.loadOrCreate(identity)
	if err != nil {
		return View{}, err
	}

	return s.view(cart)
}

// AddItem добавляет товар в корзину или увеличивает количество
// существующей строки. Проверка остатка выполняется против
// итогового количества строки, а не против добавляемой дельты.
func (s *Service) AddItem(identity domain.Identity, productID string, qty int32) (View, error) {
	if identity.IsZero() {
		return View{}, domain.ErrIdentityRequired
	}
	if qty < 1 {
		return View{}, domain.ErrQuantityInvalid
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return View{}, err
	}

	cart, err := s.loadOrCreate(identity)
	if err != nil {
		return View{}, err
	}

	resulting := qty
	idx, found := cart.LineByProduct(productID)
	if found {
		resulting += cart.Items[idx].Qty
	}
	if resulting > product.Stock {
		return View{}, &domain.StockShortfallError{
			ProductID: productID,
			Available: product.Stock,
			Requested: resulting,
		}
	}

	now := s.now()
	if found {
		cart.Items[idx].Qty = resulting
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        uuid.NewString(),
			ProductID: productID,
			Qty:       qty,
			AddedAt:   now,
		})
	}
	cart.Touch(now)

	if err := s.carts.Save(cart); err != nil {
		return View{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"qty":        qty,
	}).Debug("cart item added")

	return s.view(cart)
}

// SetItemQuantity выставляет количество существующей строки.
func (s *Service) SetItemQuantity(identity domain.Identity, lineID string, qty int32) (View, error) {
	if identity.IsZero() {
		return View{}, domain.ErrIdentityRequired
	}
	if qty < 1 {
		return View{}, domain.ErrQuantityInvalid
	}

	cart, err := s.carts.Get(identity)
	if err != nil {
		return View{}, err
	}

	line, ok := cart.Line(lineID)
	if !ok {
		return View{}, &domain.CartLineNotFoundError{LineID: lineID, ValidLineIDs: cart.LineIDs()}
	}

	product, err := s.products.Get(line.ProductID)
	if err != nil {
		return View{}, err
	}
	if qty > product.Stock {
		return View{}, &domain.StockShortfallError{
			ProductID: line.ProductID,
			Available: product.Stock,
			Requested: qty,
		}
	}

	for i := range cart.Items {
		if cart.Items[i].ID == lineID {
			cart.Items[i].Qty = qty
			break
		}
	}
	cart.Touch(s.now())

	if err := s.carts.Save(cart); err != nil {
		return View{}, err
	}

	return s.view(cart)
}

// RemoveItem удаляет строку из корзины.
func (s *Service) RemoveItem(identity domain.Identity, lineID string) (View, error) {
	if identity.IsZero() {
		return View{}, domain.ErrIdentityRequired
	}

	cart, err := s.carts.Get(identity)
	if err != nil {
		return View{}, err
	}

	if _, ok := cart.Line(lineID); !ok {
		return View{}, &domain.CartLineNotFoundError{LineID: lineID, ValidLineIDs: cart.LineIDs()}
	}

	items := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ID != lineID {
			items = append(items, item)
		}
	}
	cart.Items = items
	cart.Touch(s.now())

	if err := s.carts.Save(cart); err != nil {
		return View{}, err
	}

	return s.view(cart)
}

// Clear опустошает корзину, не удаляя саму запись.
func (s *Service) Clear(identity domain.Identity) (View, error) {
	if identity.IsZero() {
		return View{}, domain.ErrIdentityRequired
	}

	cart, err := s.carts.Get(identity)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return emptyView(), nil
		}
		return View{}, err
	}

	cart.Items = nil
	cart.Touch(s.now())

	if err := s.carts.Save(cart); err != nil {
		return View{}, err
	}

	return s.view(cart)
}

func (s *Service) loadOrCreate(identity domain.Identity) (domain.Cart, error) {
	cart, err := s.carts.Get(identity)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, err
	}

	now := s.now()
	cart = domain.Cart{
		ID:           uuid.NewString(),
		UserID:       identity.UserID,
		GuestToken:   identity.Guest,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.carts.Save(cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// view перечитывает товары каждой строки и собирает аннотации остатка.
func (s *Service) view(cart domain.Cart) (View, error) {
	result := View{
		ID:        cart.ID,
		Items:     make([]ItemView, 0, len(cart.Items)),
		UpdatedAt: cart.UpdatedAt,
	}

	for _, item := range cart.Items {
		iv := ItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Qty:       item.Qty,
		}

		product, err := s.products.Get(item.ProductID)
		switch {
		case err == nil:
			iv.Name = product.Name
			iv.PriceMinor = product.PriceMinor
			iv.Currency = product.Currency
			iv.LineTotalMinor = int64(item.Qty) * product.PriceMinor
			iv.AvailableStock = product.Stock
			iv.IsOutOfStock = product.Stock <= 0
			iv.CanAddMore = product.Stock > item.Qty
		case errors.Is(err, domain.ErrProductNotFound):
			// Товар исчез из каталога: строка остаётся видимой,
			// но помечается как недоступная.
			iv.IsOutOfStock = true
		default:
			return View{}, err
		}

		result.TotalMinor += iv.LineTotalMinor
		result.Items = append(result.Items, iv)
	}

	return result, nil
}

func emptyView() View {
	return View{Items: []ItemView{}}
}
