package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) Get(identity domain.Identity) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, COALESCE(user_id, ''), COALESCE(guest_token, ''), last_activity, created_at, updated_at
		FROM carts
	`
	var row *sql.Row
	switch {
	case identity.IsUser():
		row = r.db.QueryRowContext(ctx, query+` WHERE user_id = $1`, identity.UserID)
	case identity.IsGuest():
		row = r.db.QueryRowContext(ctx, query+` WHERE guest_token = $1`, string(identity.Guest))
	default:
		return domain.Cart{}, domain.ErrCartNotFound
	}

	var (
		cart         domain.Cart
		guestToken   string
		lastActivity sql.NullTime
	)
	err := row.Scan(&cart.ID, &cart.UserID, &guestToken, &lastActivity, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}
	cart.GuestToken = domain.GuestToken(guestToken)
	if lastActivity.Valid {
		cart.LastActivity = lastActivity.Time
	}

	items, err := r.loadItems(ctx, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Items = items

	return cart, nil
}

// Save перезаписывает корзину целиком: upsert строки carts и полная
// замена cart_items в одной транзакции.
func (r *cartRepository) Save(cart domain.Cart) error {
	if violations := cart.ValidateInvariants(); len(violations) > 0 {
		return violations[0]
	}

	identity := cart.Identity()
	if identity.IsZero() {
		return domain.ErrIdentityRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existingID, err := r.findIDTx(ctx, tx, identity)
	if err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		return err
	}

	if existingID == "" {
		if cart.ID == "" {
			cart.ID = uuid.NewString()
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO carts (id, user_id, guest_token, last_activity, created_at, updated_at)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6)
		`,
			cart.ID, cart.UserID, string(cart.GuestToken),
			nullableTime(cart.LastActivity), cart.CreatedAt, cart.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert cart: %w", err)
		}
	} else {
		cart.ID = existingID
		if _, err = tx.ExecContext(ctx, `
			UPDATE carts
			SET last_activity = $2,
			    updated_at = $3
			WHERE id = $1
		`, cart.ID, nullableTime(cart.LastActivity), cart.UpdatedAt); err != nil {
			return fmt.Errorf("update cart: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
			return fmt.Errorf("clear cart items: %w", err)
		}
	}

	for _, item := range cart.Items {
		itemID := item.ID
		if itemID == "" {
			itemID = uuid.NewString()
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, cart_id, product_id, qty, added_at)
			VALUES ($1,$2,$3,$4,$5)
		`, itemID, cart.ID, item.ProductID, item.Qty, item.AddedAt); err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save cart: %w", err)
	}

	return nil
}

func (r *cartRepository) Delete(identity domain.Identity) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var err error
	switch {
	case identity.IsUser():
		_, err = r.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, identity.UserID)
	case identity.IsGuest():
		_, err = r.db.ExecContext(ctx, `DELETE FROM carts WHERE guest_token = $1`, string(identity.Guest))
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (r *cartRepository) DeleteStaleGuestCarts(before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM carts
		WHERE id IN (
			SELECT id FROM carts
			WHERE guest_token IS NOT NULL
			  AND (last_activity IS NULL OR last_activity <= $1)
			LIMIT $2
		)
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("delete stale guest carts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(affected), nil
}

func (r *cartRepository) loadItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, qty, added_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY added_at ASC, id ASC
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Qty, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}

	return items, nil
}

func (r *cartRepository) findIDTx(ctx context.Context, tx *sql.Tx, identity domain.Identity) (string, error) {
	var (
		id  string
		err error
	)
	switch {
	case identity.IsUser():
		err = tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, identity.UserID).Scan(&id)
	case identity.IsGuest():
		err = tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE guest_token = $1`, string(identity.Guest)).Scan(&id)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrCartNotFound
		}
		return "", fmt.Errorf("find cart id: %w", err)
	}
	return id, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

var _ domain.CartRepository = (*cartRepository)(nil)
