package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"detention-service/internal/model"
	"detention-service/internal/repository"
)

type EventRepository struct {
	s *Store
}

func (r *EventRepository) Create(ctx context.Context, event *model.DetentionEvent) error {
	defer r.s.lock(ctx)()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if _, exists := r.s.st.events[event.ID]; exists {
		return repository.ErrDuplicateKey
	}
	now := r.s.timestamp()
	event.CreatedAt = now
	event.UpdatedAt = now
	r.s.st.events[event.ID] = *event
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DetentionEvent, error) {
	defer r.s.lock(ctx)()

	event, ok := r.s.st.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &event, nil
}

func (r *EventRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.DetentionEvent, error) {
	defer r.s.lock(ctx)()

	events := make([]model.DetentionEvent, 0, len(ids))
	for _, id := range ids {
		if event, ok := r.s.st.events[id]; ok {
			events = append(events, event)
		}
	}
	return events, nil
}

func (r *EventRepository) List(ctx context.Context, filter model.EventFilter) ([]model.DetentionEvent, error) {
	defer r.s.lock(ctx)()

	var events []model.DetentionEvent
	for _, event := range r.s.st.events {
		if filter.UserID != uuid.Nil && event.UserID != filter.UserID {
			continue
		}
		if filter.FleetID != nil && (event.FleetID == nil || *event.FleetID != *filter.FleetID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, event.Status) {
			continue
		}
		if filter.DateFrom != nil && event.ArrivalTime.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && event.ArrivalTime.After(*filter.DateTo) {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].ArrivalTime.After(events[j].ArrivalTime)
	})
	return paginate(events, filter.Limit, filter.Offset), nil
}

func (r *EventRepository) UpdateTransition(ctx context.Context, event *model.DetentionEvent, expected model.EventStatus) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.st.events[event.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleState
	}
	stored.Status = event.Status
	stored.DepartureTime = event.DepartureTime
	stored.InvoiceID = event.InvoiceID
	stored.TotalElapsedMinutes = event.TotalElapsedMinutes
	stored.DetentionMinutes = event.DetentionMinutes
	stored.TotalAmount = event.TotalAmount
	stored.CancelReason = event.CancelReason
	stored.UpdatedAt = r.s.timestamp()
	r.s.st.events[event.ID] = stored
	event.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *EventRepository) LogStatusChange(ctx context.Context, entry *model.EventStatusLog) error {
	defer r.s.lock(ctx)()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.s.timestamp()
	r.s.st.eventLogs = append(r.s.st.eventLogs, *entry)
	return nil
}

// StatusLog returns the recorded transitions of an event in write order.
func (r *EventRepository) StatusLog(ctx context.Context, eventID uuid.UUID) []model.EventStatusLog {
	defer r.s.lock(ctx)()

	var out []model.EventStatusLog
	for _, entry := range r.s.st.eventLogs {
		if entry.EventID == eventID {
			out = append(out, entry)
		}
	}
	return out
}

func containsStatus[S comparable](statuses []S, status S) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
