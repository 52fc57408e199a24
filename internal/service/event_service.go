package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"detention-service/internal/billing"
	"detention-service/internal/model"
	"detention-service/internal/repository"
)

// BillingDefaults apply when neither the request, the fleet member nor the
// fleet carries a rate or grace period.
type BillingDefaults struct {
	HourlyRate         decimal.Decimal
	GracePeriodMinutes int
}

type EventService struct {
	events  EventStore
	fleets  FleetStore
	members MemberStore

	defaults BillingDefaults
	runner   atomicRunner
	log      zerolog.Logger
	now      func() time.Time
}

// NewEventService wires the event lifecycle. With a nil tx a status change is
// kept even when its history entry cannot be written.
func NewEventService(
	events EventStore,
	fleets FleetStore,
	members MemberStore,
	tx Transactor,
	defaults BillingDefaults,
	log zerolog.Logger,
) *EventService {
	log = log.With().Str("component", "event_service").Logger()
	return &EventService{
		events:   events,
		fleets:   fleets,
		members:  members,
		defaults: defaults,
		runner:   atomicRunner{tx: tx, log: log},
		log:      log,
		now:      time.Now,
	}
}

type StartEventInput struct {
	FacilityID         uuid.UUID
	FleetID            *uuid.UUID
	ArrivalTime        *time.Time
	HourlyRate         *decimal.Decimal
	GracePeriodMinutes *int
	Notes              string
}

func (s *EventService) Start(ctx context.Context, principal model.Principal, input StartEventInput) (*model.DetentionEvent, error) {
	if input.FacilityID == uuid.Nil {
		return nil, invalidInput("facility_id is required")
	}

	rate, grace, err := s.resolveTerms(ctx, principal, input)
	if err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, invalidInput("hourly rate must be positive")
	}
	if grace < 0 {
		return nil, invalidInput("grace period must not be negative")
	}

	arrival := s.now().UTC()
	if input.ArrivalTime != nil {
		arrival = input.ArrivalTime.UTC()
	}

	event := &model.DetentionEvent{
		ID:                 uuid.New(),
		UserID:             principal.UserID,
		FleetID:            input.FleetID,
		FacilityID:         input.FacilityID,
		ArrivalTime:        arrival,
		GracePeriodMinutes: grace,
		HourlyRate:         rate,
		Status:             model.EventStatusActive,
		Notes:              strings.TrimSpace(input.Notes),
	}

	u := &unit{name: "start event " + event.ID.String()}
	u.add("create event",
		func(ctx context.Context) error {
			return s.events.Create(ctx, event)
		},
		nil,
	)
	u.record(func(ctx context.Context) error {
		return s.events.LogStatusChange(ctx, &model.EventStatusLog{
			EventID:   event.ID,
			NewStatus: model.EventStatusActive,
			Note:      "arrival captured",
			ChangedBy: &principal.UserID,
		})
	})
	if err := s.runner.run(ctx, u); err != nil {
		return nil, err
	}
	return event, nil
}

// resolveTerms picks rate and grace from the request, then the caller's
// member overrides, then the fleet defaults, then the configured defaults.
func (s *EventService) resolveTerms(ctx context.Context, principal model.Principal, input StartEventInput) (decimal.Decimal, int, error) {
	rate := s.defaults.HourlyRate
	grace := s.defaults.GracePeriodMinutes

	if input.FleetID != nil {
		fleet, err := s.fleets.GetByID(ctx, *input.FleetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return decimal.Zero, 0, ErrNotFound
			}
			return decimal.Zero, 0, err
		}

		var member *model.FleetMember
		if fleet.OwnerID != principal.UserID {
			member, err = s.members.Get(ctx, fleet.ID, principal.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return decimal.Zero, 0, ErrPermissionDenied
				}
				return decimal.Zero, 0, err
			}
			if !member.IsActive() {
				return decimal.Zero, 0, ErrPermissionDenied
			}
		}

		if fleet.DefaultHourlyRate != nil {
			rate = *fleet.DefaultHourlyRate
		}
		if fleet.DefaultGracePeriodMinutes != nil {
			grace = *fleet.DefaultGracePeriodMinutes
		}
		if member != nil {
			if member.HourlyRateOverride != nil {
				rate = *member.HourlyRateOverride
			}
			if member.GracePeriodOverride != nil {
				grace = *member.GracePeriodOverride
			}
		}
	}

	if input.HourlyRate != nil {
		rate = *input.HourlyRate
	}
	if input.GracePeriodMinutes != nil {
		grace = *input.GracePeriodMinutes
	}
	return rate, grace, nil
}

// Complete captures departure on an active event and stores the final
// calculation. A nil departure means now.
func (s *EventService) Complete(ctx context.Context, principal model.Principal, eventID uuid.UUID, departure *time.Time) (*model.DetentionEvent, error) {
	event, err := s.getOwned(ctx, principal, eventID)
	if err != nil {
		return nil, err
	}
	if err := billing.CheckEventTransition(event.Status, model.EventStatusCompleted); err != nil {
		return nil, err
	}

	end := s.now().UTC()
	if departure != nil {
		end = departure.UTC()
	}

	calc := billing.Calculate(billing.CalculationInput{
		ArrivalTime:        event.ArrivalTime,
		DepartureTime:      &end,
		GracePeriodMinutes: event.GracePeriodMinutes,
		HourlyRate:         event.HourlyRate,
	}, end)
	if calc.ClockSkew {
		s.log.Warn().
			Str("event_id", event.ID.String()).
			Time("arrival_time", event.ArrivalTime).
			Time("departure_time", end).
			Msg("departure precedes arrival, elapsed time clamped to zero")
	}

	event.Status = model.EventStatusCompleted
	event.DepartureTime = &end
	event.TotalElapsedMinutes = calc.TotalElapsedMinutes
	event.DetentionMinutes = calc.DetentionMinutes
	event.TotalAmount = calc.TotalAmount

	if err := s.transition(ctx, event, model.EventStatusActive, principal.UserID, "departure captured"); err != nil {
		return nil, err
	}
	return event, nil
}

// Cancel moves an active or completed event to cancelled. An active event is
// closed at the cancellation time and keeps the amount accrued up to then,
// though a cancelled event can never be invoiced.
func (s *EventService) Cancel(ctx context.Context, principal model.Principal, eventID uuid.UUID, reason string) (*model.DetentionEvent, error) {
	event, err := s.getOwned(ctx, principal, eventID)
	if err != nil {
		return nil, err
	}
	if err := billing.CheckEventTransition(event.Status, model.EventStatusCancelled); err != nil {
		return nil, err
	}
	if event.InvoiceID != nil {
		return nil, &billing.TransitionError{
			Entity:    "detention event",
			Current:   string(event.Status),
			Requested: string(model.EventStatusCancelled),
			Guard:     "event is referenced by invoice " + event.InvoiceID.String(),
		}
	}

	previous := event.Status
	if event.DepartureTime == nil {
		now := s.now().UTC()
		event.DepartureTime = &now
		calc := billing.Calculate(billing.CalculationInput{
			ArrivalTime:        event.ArrivalTime,
			DepartureTime:      &now,
			GracePeriodMinutes: event.GracePeriodMinutes,
			HourlyRate:         event.HourlyRate,
		}, now)
		event.TotalElapsedMinutes = calc.TotalElapsedMinutes
		event.DetentionMinutes = calc.DetentionMinutes
		event.TotalAmount = calc.TotalAmount
	}
	event.Status = model.EventStatusCancelled
	event.CancelReason = strings.TrimSpace(reason)

	if err := s.transition(ctx, event, previous, principal.UserID, event.CancelReason); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) Get(ctx context.Context, principal model.Principal, eventID uuid.UUID) (*model.EventView, error) {
	event, err := s.getOwned(ctx, principal, eventID)
	if err != nil {
		return nil, err
	}
	view := s.view(*event)
	return &view, nil
}

type ListEventsOptions struct {
	FleetID  *uuid.UUID
	Statuses []model.EventStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

func (s *EventService) List(ctx context.Context, principal model.Principal, opts ListEventsOptions) ([]model.EventView, error) {
	events, err := s.events.List(ctx, model.EventFilter{
		UserID:   principal.UserID,
		FleetID:  opts.FleetID,
		Statuses: opts.Statuses,
		DateFrom: opts.DateFrom,
		DateTo:   opts.DateTo,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
	if err != nil {
		return nil, err
	}

	views := make([]model.EventView, 0, len(events))
	for _, event := range events {
		views = append(views, s.view(event))
	}
	return views, nil
}

func (s *EventService) view(event model.DetentionEvent) model.EventView {
	if event.Status != model.EventStatusActive {
		return model.EventView{
			Event:               event,
			TotalElapsedMinutes: event.TotalElapsedMinutes,
			DetentionMinutes:    event.DetentionMinutes,
			TotalAmount:         event.TotalAmount,
		}
	}
	calc := billing.Calculate(billing.CalculationInput{
		ArrivalTime:        event.ArrivalTime,
		GracePeriodMinutes: event.GracePeriodMinutes,
		HourlyRate:         event.HourlyRate,
	}, s.now().UTC())
	return model.EventView{
		Event:               event,
		TotalElapsedMinutes: calc.TotalElapsedMinutes,
		DetentionMinutes:    calc.DetentionMinutes,
		TotalAmount:         calc.TotalAmount,
		Live:                true,
	}
}

func (s *EventService) getOwned(ctx context.Context, principal model.Principal, eventID uuid.UUID) (*model.DetentionEvent, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !event.BelongsTo(principal.UserID) {
		return nil, ErrNotFound
	}
	return event, nil
}

// transition stores the event's new status together with its history entry.
func (s *EventService) transition(ctx context.Context, event *model.DetentionEvent, expected model.EventStatus, actor uuid.UUID, note string) error {
	u := &unit{name: "event " + event.ID.String() + " " + string(expected) + " -> " + string(event.Status)}
	u.add("update event",
		func(ctx context.Context) error {
			err := s.events.UpdateTransition(ctx, event, expected)
			if errors.Is(err, repository.ErrStaleState) {
				return fmt.Errorf("%w: event %s is no longer %s", ErrConflict, event.ID, expected)
			}
			return err
		},
		nil,
	)
	u.record(eventHistory(s.events, event.ID, expected, event.Status, note, actor))
	return s.runner.run(ctx, u)
}
