package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newProduct() domain.Product {
	now := time.Now().UTC()
	return domain.Product{
		ID:         "prod-1",
		Name:       "Ceramic Mug",
		PriceMinor: 100,
		Currency:   "INR",
		Stock:      5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestProductRepository_CreateGet(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()

	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 5 {
		t.Fatalf("expected stock 5, got %d", stored.Stock)
	}
}

func TestProductRepository_GetMissing(t *testing.T) {
	repo := memory.NewProductRepository()

	if _, err := repo.Get("nope"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_DecrementStock(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.DecrementStock("prod-1", 2); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}

	stored, err := repo.Get("prod-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", stored.Stock)
	}
}

func TestProductRepository_DecrementStockShortfall(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := repo.DecrementStock("prod-1", 6)
	shortfall, ok := domain.IsStockShortfall(err)
	if !ok {
		t.Fatalf("expected StockShortfallError, got %v", err)
	}
	if shortfall.Available != 5 || shortfall.Requested != 6 {
		t.Fatalf("unexpected shortfall detail: %+v", shortfall)
	}

	// Остаток не тронут.
	stored, err := repo.Get("prod-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 5 {
		t.Fatalf("expected stock 5, got %d", stored.Stock)
	}
}

func TestProductRepository_RestoreStock(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.DecrementStock("prod-1", 5); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if err := repo.RestoreStock("prod-1", 5); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	stored, err := repo.Get("prod-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", stored.Stock)
	}
}
