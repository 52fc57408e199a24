package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"detention-service/internal/model"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *model.DetentionEvent) error {
	return translate(conn(ctx, r.db).Create(event).Error)
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DetentionEvent, error) {
	var event model.DetentionEvent
	if err := conn(ctx, r.db).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (r *EventRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.DetentionEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var events []model.DetentionEvent
	if err := conn(ctx, r.db).Where("id IN ?", ids).Find(&events).Error; err != nil {
		return nil, translate(err)
	}
	return events, nil
}

func (r *EventRepository) List(ctx context.Context, filter model.EventFilter) ([]model.DetentionEvent, error) {
	query := conn(ctx, r.db).Model(&model.DetentionEvent{})

	if filter.UserID != uuid.Nil {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.FleetID != nil {
		query = query.Where("fleet_id = ?", *filter.FleetID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.DateFrom != nil {
		query = query.Where("arrival_time >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("arrival_time <= ?", *filter.DateTo)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	} else {
		query = query.Limit(200)
	}

	var events []model.DetentionEvent
	if err := query.Order("arrival_time DESC").Find(&events).Error; err != nil {
		return nil, translate(err)
	}
	return events, nil
}

// UpdateTransition writes the mutable fields of event only while the stored
// status still equals expected.
func (r *EventRepository) UpdateTransition(ctx context.Context, event *model.DetentionEvent, expected model.EventStatus) error {
	result := conn(ctx, r.db).
		Model(&model.DetentionEvent{}).
		Where("id = ? AND status = ?", event.ID, expected).
		Updates(map[string]interface{}{
			"status":                event.Status,
			"departure_time":        nullable(event.DepartureTime),
			"invoice_id":            nullable(event.InvoiceID),
			"total_elapsed_minutes": event.TotalElapsedMinutes,
			"detention_minutes":     event.DetentionMinutes,
			"total_amount":          event.TotalAmount,
			"cancel_reason":         event.CancelReason,
		})
	return expectOne(result)
}

func (r *EventRepository) LogStatusChange(ctx context.Context, entry *model.EventStatusLog) error {
	return translate(conn(ctx, r.db).Create(entry).Error)
}
