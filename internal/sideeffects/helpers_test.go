package sideeffects

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memClaims struct {
	mu        sync.Mutex
	claimed   map[string]bool
	released  []string
	completed []string
	err       error
}

func newMemClaims() *memClaims {
	return &memClaims{claimed: map[string]bool{}}
}

func (m *memClaims) Claim(_ context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := consumer + ":" + eventID.String()
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *memClaims) Complete(_ context.Context, consumer string, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, consumer)
	return nil
}

func (m *memClaims) Release(_ context.Context, consumer string, eventID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, consumer+":"+eventID.String())
	m.released = append(m.released, consumer)
	return nil
}

type stubEffect struct {
	name  string
	mu    sync.Mutex
	calls int
	err   error
	panic bool
}

func (s *stubEffect) Name() string { return s.name }

func (s *stubEffect) Run(context.Context, payloads.OrderCreatedEvent) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panic {
		panic("effect exploded")
	}
	return s.err
}

func (s *stubEffect) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errBoom = errors.New("boom")

func sampleEvent() payloads.OrderCreatedEvent {
	variant := "v-red"
	return payloads.OrderCreatedEvent{
		OrderID:     uuid.MustParse("4f1c3c1e-8f5a-4a57-9a43-0c7f6a2b9d11"),
		OrderNumber: 1876543210987,
		UserID:      uuid.MustParse("0b8e3c55-1d1e-4a77-8f0e-5d0c5a6f7e21"),
		Customer: models.UserSnapshot{
			UID:       "0b8e3c55-1d1e-4a77-8f0e-5d0c5a6f7e21",
			FirstName: "Ana",
			LastName:  "Pérez",
			Email:     "ana@example.com",
		},
		Items: []models.OrderItem{
			{
				ProductID:   uuid.MustParse("9a0e5b7c-3f2d-4c1a-8e6b-7d5c4b3a2f10"),
				VariantID:   &variant,
				ProductName: "Camiseta",
				Quantity:    2,
				UnitPrice:   decimal.RequireFromString("25"),
				TotalPrice:  decimal.RequireFromString("50"),
			},
		},
		Totals: models.OrderTotals{
			Subtotal:      decimal.RequireFromString("50"),
			TaxAmount:     decimal.RequireFromString("8"),
			TaxPercentage: decimal.RequireFromString("16"),
			ShippingCost:  decimal.Zero,
			Total:         decimal.RequireFromString("58"),
			ItemCount:     2,
		},
		DeliveryMethod: enums.DeliveryPickup,
		PaymentMethod:  "cash",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
