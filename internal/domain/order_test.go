package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func validOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          "order-1",
		UserID:      "user-1",
		Status:      domain.OrderStatusPending,
		Currency:    "INR",
		AmountMinor: 300,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "prod-1", Qty: 3, PriceMinor: 100, CreatedAt: now},
		},
		Address: domain.ShippingAddress{
			Line1:      "221B Baker Street",
			City:       "Mumbai",
			PostalCode: "400001",
			Country:    "IN",
		},
		Payment:   domain.Payment{Method: domain.PaymentMethodCOD, Status: domain.PaymentStatusCompleted},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrder_ValidateInvariants_OK(t *testing.T) {
	order := validOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestOrder_ValidateInvariants_AmountMismatch(t *testing.T) {
	order := validOrder()
	order.AmountMinor = 299

	errs := order.ValidateInvariants()
	if len(errs) == 0 {
		t.Fatal("expected amount mismatch violation")
	}
	found := false
	for _, err := range errs {
		if errors.Is(err, domain.ErrAmountMismatch) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ErrAmountMismatch, got %v", errs)
	}
}

func TestOrder_ValidateInvariants_GuestContactRequired(t *testing.T) {
	order := validOrder()
	order.UserID = ""
	order.GuestCartToken = "guest-token"

	errs := order.ValidateInvariants()
	found := false
	for _, err := range errs {
		if errors.Is(err, domain.ErrGuestContactRequired) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ErrGuestContactRequired, got %v", errs)
	}
}

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		allowed  bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusPacked, true},
		{domain.OrderStatusPacked, domain.OrderStatusShipped, true},
		{domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{domain.OrderStatusDelivered, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPending, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrder_BelongsTo(t *testing.T) {
	order := validOrder()

	if !order.BelongsTo(domain.ResolveIdentity("user-1", "")) {
		t.Fatal("owner must have access")
	}
	if order.BelongsTo(domain.ResolveIdentity("user-2", "")) {
		t.Fatal("other user must not have access")
	}

	guest := validOrder()
	guest.UserID = ""
	guest.GuestCartToken = "tok-1"
	guest.GuestContact = domain.GuestContact{Email: "g@example.com", Name: "Guest"}

	if !guest.BelongsTo(domain.ResolveIdentity("", "tok-1")) {
		t.Fatal("guest with matching token must have access")
	}
	if guest.BelongsTo(domain.ResolveIdentity("", "tok-2")) {
		t.Fatal("guest with different token must not have access")
	}
}
