package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"detention-service/internal/model"
	"detention-service/internal/repository/memory"
)

var baseTime = time.Date(2024, 11, 4, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newPrincipal() model.Principal {
	id := uuid.New()
	return model.Principal{UserID: id, Email: id.String()[:8] + "@carrier.test"}
}

func newEventServiceFor(store *memory.Store) *EventService {
	return newEventService(store.Events(), store, store)
}

func newEventService(events EventStore, store *memory.Store, tx Transactor) *EventService {
	svc := NewEventService(events, store.Fleets(), store.Members(), tx, BillingDefaults{
		HourlyRate:         decimal.NewFromInt(75),
		GracePeriodMinutes: 120,
	}, zerolog.Nop())
	svc.now = clockAt(baseTime)
	return svc
}

func newInvoiceServiceFor(store *memory.Store, tx Transactor, renderer DocumentRenderer, mailer Mailer) *InvoiceService {
	svc := NewInvoiceService(store.Events(), store.Invoices(), store.Contacts(), tx, renderer, mailer, InvoiceSettings{
		NumberPrefix:   "INV",
		NumberAttempts: 5,
	}, zerolog.Nop())
	svc.now = clockAt(baseTime.Add(24 * time.Hour))
	return svc
}

// completedEvent stores a completed event of owner that waited elapsed
// minutes against a two hour grace period at $75/h.
func completedEvent(t *testing.T, store *memory.Store, owner model.Principal, elapsed int) model.DetentionEvent {
	t.Helper()

	svc := newEventServiceFor(store)
	arrival := baseTime
	event, err := svc.Start(context.Background(), owner, StartEventInput{
		FacilityID:  uuid.New(),
		ArrivalTime: &arrival,
	})
	if err != nil {
		t.Fatalf("start event: %v", err)
	}
	departure := arrival.Add(time.Duration(elapsed) * time.Minute)
	event, err = svc.Complete(context.Background(), owner, event.ID, &departure)
	if err != nil {
		t.Fatalf("complete event: %v", err)
	}
	return *event
}

func storedEvent(t *testing.T, store *memory.Store, id uuid.UUID) model.DetentionEvent {
	t.Helper()
	event, err := store.Events().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get event %s: %v", id, err)
	}
	return *event
}
