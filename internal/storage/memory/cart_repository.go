package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory хранит корзины с двумя независимыми разреженными
// индексами: по пользователю и по гостевому токену.
type cartRepositoryInMemory struct {
	mu      sync.RWMutex
	byUser  map[string]domain.Cart
	byGuest map[domain.GuestToken]domain.Cart
}

// NewCartRepository возвращает in-memory реализацию CartRepository.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		byUser:  make(map[string]domain.Cart),
		byGuest: make(map[domain.GuestToken]domain.Cart),
	}
}

// Get возвращает корзину идентичности или ErrCartNotFound.
func (r *cartRepositoryInMemory) Get(identity domain.Identity) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		cart domain.Cart
		ok   bool
	)
	switch {
	case identity.IsUser():
		cart, ok = r.byUser[identity.UserID]
	case identity.IsGuest():
		cart, ok = r.byGuest[identity.Guest]
	}
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

// Save создаёт или перезаписывает корзину целиком (upsert по идентичности).
func (r *cartRepositoryInMemory) Save(cart domain.Cart) error {
	if violations := cart.ValidateInvariants(); len(violations) > 0 {
		return violations[0]
	}

	identity := cart.Identity()
	if identity.IsZero() {
		return domain.ErrIdentityRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}

	switch {
	case identity.IsUser():
		if existing, ok := r.byUser[identity.UserID]; ok {
			cart.ID = existing.ID
			cart.CreatedAt = existing.CreatedAt
		}
		r.byUser[identity.UserID] = cloneCart(cart)
	case identity.IsGuest():
		if existing, ok := r.byGuest[identity.Guest]; ok {
			cart.ID = existing.ID
			cart.CreatedAt = existing.CreatedAt
		}
		r.byGuest[identity.Guest] = cloneCart(cart)
	}
	return nil
}

// Delete удаляет корзину идентичности; отсутствие корзины не ошибка.
func (r *cartRepositoryInMemory) Delete(identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case identity.IsUser():
		delete(r.byUser, identity.UserID)
	case identity.IsGuest():
		delete(r.byGuest, identity.Guest)
	}
	return nil
}

// DeleteStaleGuestCarts удаляет гостевые корзины, неактивные с before
// или без отметки активности вовсе.
func (r *cartRepositoryInMemory) DeleteStaleGuestCarts(before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, cart := range r.byGuest {
		if !cart.LastActivity.IsZero() && cart.LastActivity.After(before) {
			continue
		}

		delete(r.byGuest, token)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}

	return removed, nil
}

// cloneCart копирует корзину вместе со строками, чтобы избежать
// непредсказуемых мутаций извне.
func cloneCart(src domain.Cart) domain.Cart {
	dst := src
	dst.Items = make([]domain.CartItem, len(src.Items))
	copy(dst.Items, src.Items)
	return dst
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
