package domain

import "time"

// ProductRepository описывает требования к хранилищу каталога.
// Мутация остатка выражена единственным условным примитивом: отдельной
// пары "прочитал-проверил-записал" у вызывающего кода быть не должно.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ошибку, если ID уже занят.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
	// DecrementStock атомарно уменьшает остаток, только если stock >= qty.
	// При нехватке возвращает StockShortfallError с доступным количеством.
	DecrementStock(id string, qty int32) error
	// RestoreStock возвращает остаток на место (компенсация отката).
	RestoreStock(id string, qty int32) error
}

// CartRepository описывает требования к хранилищу корзин.
// На каждого пользователя и на каждый гостевой токен — не более одной
// корзины; уникальность по каждому ключу независимая и разреженная.
type CartRepository interface {
	// Get возвращает корзину идентичности или ErrCartNotFound.
	Get(identity Identity) (Cart, error)
	// Save создаёт или перезаписывает корзину целиком (upsert по идентичности).
	Save(cart Cart) error
	// Delete удаляет корзину идентичности; отсутствие корзины не ошибка.
	Delete(identity Identity) error
	// DeleteStaleGuestCarts удаляет гостевые корзины, неактивные с before
	// (или вовсе без отметки активности), порциями до limit. Возвращает
	// количество удалённых корзин.
	DeleteStaleGuestCarts(before time.Time, limit int) (int, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByUser возвращает заказы пользователя с опциональным ограничением на количество.
	ListByUser(userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// Delete удаляет заказ (компенсация при неудачном открытии платёжного намерения).
	Delete(id string) error
}
