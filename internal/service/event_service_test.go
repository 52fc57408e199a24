package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"detention-service/internal/billing"
	"detention-service/internal/model"
	"detention-service/internal/repository/memory"
)

func TestEventService_StartResolvesTerms(t *testing.T) {
	ctx := context.Background()

	t.Run("configured defaults", func(t *testing.T) {
		store := memory.NewStore()
		svc := newEventServiceFor(store)

		event, err := svc.Start(ctx, newPrincipal(), StartEventInput{FacilityID: uuid.New()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !event.HourlyRate.Equal(dec("75")) || event.GracePeriodMinutes != 120 {
			t.Fatalf("expected defaults, got rate %v grace %d", event.HourlyRate, event.GracePeriodMinutes)
		}
		if event.Status != model.EventStatusActive || event.DepartureTime != nil {
			t.Fatalf("expected active event without departure, got %+v", event)
		}
		if !event.ArrivalTime.Equal(baseTime) {
			t.Fatalf("expected arrival at now, got %v", event.ArrivalTime)
		}
	})

	t.Run("fleet default then member override then request", func(t *testing.T) {
		store := memory.NewStore()
		svc := newEventServiceFor(store)
		owner := newPrincipal()
		driver := newPrincipal()

		fleetRate, fleetGrace := dec("90"), 60
		fleet := &model.Fleet{OwnerID: owner.UserID, Name: "North", DefaultHourlyRate: &fleetRate, DefaultGracePeriodMinutes: &fleetGrace}
		if err := store.Fleets().Create(ctx, fleet); err != nil {
			t.Fatalf("create fleet: %v", err)
		}
		overrideGrace := 30
		if err := store.Members().Create(ctx, &model.FleetMember{
			FleetID:             fleet.ID,
			UserID:              driver.UserID,
			Role:                model.FleetRoleDriver,
			Status:              model.MemberStatusActive,
			GracePeriodOverride: &overrideGrace,
		}); err != nil {
			t.Fatalf("create member: %v", err)
		}

		event, err := svc.Start(ctx, driver, StartEventInput{FacilityID: uuid.New(), FleetID: &fleet.ID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !event.HourlyRate.Equal(dec("90")) || event.GracePeriodMinutes != 30 {
			t.Fatalf("expected fleet rate and member grace, got rate %v grace %d", event.HourlyRate, event.GracePeriodMinutes)
		}

		requested := dec("110")
		event, err = svc.Start(ctx, driver, StartEventInput{FacilityID: uuid.New(), FleetID: &fleet.ID, HourlyRate: &requested})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !event.HourlyRate.Equal(dec("110")) {
			t.Fatalf("expected requested rate, got %v", event.HourlyRate)
		}
	})

	t.Run("non member of fleet", func(t *testing.T) {
		store := memory.NewStore()
		svc := newEventServiceFor(store)
		fleet := &model.Fleet{OwnerID: uuid.New(), Name: "South"}
		if err := store.Fleets().Create(ctx, fleet); err != nil {
			t.Fatalf("create fleet: %v", err)
		}

		_, err := svc.Start(ctx, newPrincipal(), StartEventInput{FacilityID: uuid.New(), FleetID: &fleet.ID})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})
}

func TestEventService_StartValidation(t *testing.T) {
	svc := newEventServiceFor(memory.NewStore())
	zero := decimal.Zero
	negative := -5

	tests := []struct {
		name  string
		input StartEventInput
	}{
		{name: "missing facility", input: StartEventInput{}},
		{name: "zero rate", input: StartEventInput{FacilityID: uuid.New(), HourlyRate: &zero}},
		{name: "negative grace", input: StartEventInput{FacilityID: uuid.New(), GracePeriodMinutes: &negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Start(context.Background(), newPrincipal(), tt.input)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestEventService_Complete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner := newPrincipal()

	event := completedEvent(t, store, owner, 150)
	if event.TotalElapsedMinutes != 150 || event.DetentionMinutes != 30 || !event.TotalAmount.Equal(dec("37.50")) {
		t.Fatalf("unexpected calculation %+v", event)
	}

	stored := storedEvent(t, store, event.ID)
	if stored.Status != model.EventStatusCompleted || stored.DepartureTime == nil || !stored.TotalAmount.Equal(dec("37.50")) {
		t.Fatalf("calculation not persisted: %+v", stored)
	}

	svc := newEventServiceFor(store)
	_, err := svc.Complete(ctx, owner, event.ID, nil)
	var transitionErr *billing.TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if transitionErr.Current != "completed" || transitionErr.Requested != "completed" {
		t.Fatalf("unexpected transition error %+v", transitionErr)
	}

	log := store.Events().StatusLog(ctx, event.ID)
	if len(log) != 2 || log[1].NewStatus != model.EventStatusCompleted {
		t.Fatalf("expected arrival and completion history, got %+v", log)
	}
}

func TestEventService_CompleteClampsClockSkew(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newEventServiceFor(store)
	owner := newPrincipal()

	event, err := svc.Start(ctx, owner, StartEventInput{FacilityID: uuid.New()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	before := baseTime.Add(-10 * time.Minute)
	event, err = svc.Complete(ctx, owner, event.ID, &before)
	if err != nil {
		t.Fatalf("clock skew must not fail completion: %v", err)
	}
	if event.TotalElapsedMinutes != 0 || !event.TotalAmount.IsZero() {
		t.Fatalf("expected clamped calculation, got %+v", event)
	}
}

func TestEventService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("active event gets a departure", func(t *testing.T) {
		store := memory.NewStore()
		svc := newEventServiceFor(store)
		owner := newPrincipal()

		event, err := svc.Start(ctx, owner, StartEventInput{FacilityID: uuid.New()})
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		svc.now = clockAt(baseTime.Add(3 * time.Hour))

		event, err = svc.Cancel(ctx, owner, event.ID, " wrong facility ")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if event.Status != model.EventStatusCancelled || event.DepartureTime == nil || event.CancelReason != "wrong facility" {
			t.Fatalf("unexpected cancelled event %+v", event)
		}
		if event.TotalElapsedMinutes != 180 || event.DetentionMinutes != 60 || !event.TotalAmount.Equal(dec("75")) {
			t.Fatalf("expected accrued totals up to cancellation, got %d / %d / %s",
				event.TotalElapsedMinutes, event.DetentionMinutes, event.TotalAmount)
		}
		if stored := storedEvent(t, store, event.ID); !stored.TotalAmount.Equal(dec("75")) {
			t.Fatalf("expected stored amount 75, got %s", stored.TotalAmount)
		}
	})

	t.Run("completed event", func(t *testing.T) {
		store := memory.NewStore()
		owner := newPrincipal()
		event := completedEvent(t, store, owner, 200)

		cancelled, err := newEventServiceFor(store).Cancel(ctx, owner, event.ID, "")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if !cancelled.DepartureTime.Equal(*event.DepartureTime) {
			t.Fatal("cancel must keep the captured departure")
		}
	})

	t.Run("invoiced event", func(t *testing.T) {
		store := memory.NewStore()
		owner := newPrincipal()
		event := completedEvent(t, store, owner, 200)
		if _, err := newInvoiceServiceFor(store, store, nil, nil).Create(ctx, owner, CreateInvoiceInput{EventIDs: []uuid.UUID{event.ID}}); err != nil {
			t.Fatalf("create invoice: %v", err)
		}

		_, err := newEventServiceFor(store).Cancel(ctx, owner, event.ID, "")
		if !errors.Is(err, billing.ErrInvalidStateTransition) {
			t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
		}
	})

	t.Run("paid event", func(t *testing.T) {
		store := memory.NewStore()
		owner := newPrincipal()
		event := completedEvent(t, store, owner, 200)
		invoices := newInvoiceServiceFor(store, store, nil, nil)
		invoice, err := invoices.Create(ctx, owner, CreateInvoiceInput{EventIDs: []uuid.UUID{event.ID}})
		if err != nil {
			t.Fatalf("create invoice: %v", err)
		}
		if _, err := invoices.MarkPaid(ctx, owner, invoice.ID); err != nil {
			t.Fatalf("mark paid: %v", err)
		}

		_, err = newEventServiceFor(store).Cancel(ctx, owner, event.ID, "")
		if !errors.Is(err, billing.ErrInvalidStateTransition) {
			t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
		}
		if storedEvent(t, store, event.ID).Status != model.EventStatusPaid {
			t.Fatal("paid event must stay paid")
		}
	})
}

func TestEventService_Get(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newEventServiceFor(store)
	owner := newPrincipal()

	event, err := svc.Start(ctx, owner, StartEventInput{FacilityID: uuid.New()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	svc.now = clockAt(baseTime.Add(4 * time.Hour))
	view, err := svc.Get(ctx, owner, event.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !view.Live || view.DetentionMinutes != 120 || !view.TotalAmount.Equal(dec("150")) {
		t.Fatalf("unexpected live view %+v", view)
	}

	if _, err := svc.Get(ctx, newPrincipal(), event.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
	if _, err := svc.Get(ctx, owner, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventService_ListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner := newPrincipal()
	completedEvent(t, store, owner, 180)

	svc := newEventServiceFor(store)
	if _, err := svc.Start(ctx, owner, StartEventInput{FacilityID: uuid.New()}); err != nil {
		t.Fatalf("start: %v", err)
	}
	completedEvent(t, store, newPrincipal(), 180)

	views, err := svc.List(ctx, owner, ListEventsOptions{Statuses: []model.EventStatus{model.EventStatusCompleted}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].Event.Status != model.EventStatusCompleted || views[0].Live {
		t.Fatalf("unexpected list %+v", views)
	}

	all, _ := svc.List(ctx, owner, ListEventsOptions{})
	if len(all) != 2 {
		t.Fatalf("expected both events of the owner, got %d", len(all))
	}
}

var errHistoryUnavailable = errors.New("log table unavailable")

// brokenEventHistory rejects every status log write.
type brokenEventHistory struct {
	EventStore
}

func (brokenEventHistory) LogStatusChange(context.Context, *model.EventStatusLog) error {
	return errHistoryUnavailable
}

func countEvents(t *testing.T, store *memory.Store, owner model.Principal) int {
	t.Helper()
	events, err := store.Events().List(context.Background(), model.EventFilter{UserID: owner.UserID})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return len(events)
}

func TestEventService_HistoryFailureRollsBackInTransaction(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner := newPrincipal()

	event, err := newEventServiceFor(store).Start(ctx, owner, StartEventInput{FacilityID: uuid.New()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	broken := newEventService(brokenEventHistory{store.Events()}, store, store)
	departure := baseTime.Add(3 * time.Hour)
	if _, err := broken.Complete(ctx, owner, event.ID, &departure); !errors.Is(err, errHistoryUnavailable) {
		t.Fatalf("expected history error, got %v", err)
	}
	if got := storedEvent(t, store, event.ID); got.Status != model.EventStatusActive || got.DepartureTime != nil {
		t.Fatalf("failed completion must leave the event active, got %+v", got)
	}

	if _, err := newEventServiceFor(store).Complete(ctx, owner, event.ID, &departure); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}

	before := countEvents(t, store, owner)
	if _, err := broken.Start(ctx, owner, StartEventInput{FacilityID: uuid.New()}); !errors.Is(err, errHistoryUnavailable) {
		t.Fatalf("expected history error on start, got %v", err)
	}
	if after := countEvents(t, store, owner); after != before {
		t.Fatalf("failed start must not store an event, had %d now %d", before, after)
	}
}

func TestEventService_HistoryFailureKeepsStatusWithoutTransaction(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner := newPrincipal()
	svc := newEventService(brokenEventHistory{store.Events()}, store, nil)

	event, err := svc.Start(ctx, owner, StartEventInput{FacilityID: uuid.New()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := countEvents(t, store, owner); got != 1 {
		t.Fatalf("expected one stored event, got %d", got)
	}

	departure := baseTime.Add(3 * time.Hour)
	if _, err := svc.Complete(ctx, owner, event.ID, &departure); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := storedEvent(t, store, event.ID); got.Status != model.EventStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}
